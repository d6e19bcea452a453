package attendance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Int
		wantErr bool
	}{
		{"number", `7`, 7, false},
		{"numeric string", `"7"`, 7, false},
		{"padded string", `" 12 "`, 12, false},
		{"integral float", `7.0`, 7, false},
		{"exponent", `1e3`, 1000, false},
		{"negative", `"-2"`, -2, false},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"fraction", `7.5`, 0, true},
		{"word", `"tujuh"`, 0, true},
		{"bool", `true`, 0, true},
		{"nan string", `"NaN"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Int
			err := json.Unmarshal([]byte(tt.raw), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestFloatUnmarshal(t *testing.T) {
	var p LaporanKepsekParams
	require.NoError(t, json.Unmarshal([]byte(`{"threshold_kehadiran":"75.5","tingkat":"11"}`), &p))
	require.NotNil(t, p.Threshold)
	assert.InDelta(t, 75.5, float64(*p.Threshold), 0.0001)
	assert.Equal(t, Int(11), p.Tingkat)

	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"tinggi"`), &f))
}

func TestParamsAcceptLooseIntegers(t *testing.T) {
	var p RekapParams
	require.NoError(t, json.Unmarshal([]byte(`{"siswa_id":"4","bulan":2.0,"tahun":"2026"}`), &p))
	assert.Equal(t, Int(4), p.SiswaID)
	assert.Equal(t, Int(2), p.Bulan)
	assert.Equal(t, Int(2026), p.Tahun)
}
