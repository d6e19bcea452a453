package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{"hadir", StatusHadir, true},
		{"ALFA", StatusAlfa, true},
		{" Sakit ", StatusSakit, true},
		{"terlambat", StatusTerlambat, true},
		{"bolos", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRekapIgnoresStatusCase(t *testing.T) {
	var r Rekap
	for _, s := range []Status{"hadir", "Hadir", "HADIR", "alfa", "Sakit", "izin"} {
		r.Add(s)
	}
	assert.Equal(t, 3, r.Hadir)
	assert.Equal(t, 1, r.Alfa)
	assert.Equal(t, 1, r.Sakit)
	assert.Equal(t, 1, r.Izin)
	assert.Equal(t, 6, r.Total)
	assert.InDelta(t, 50.0, r.PersenHadir(), 0.001)
}

func TestRekapEmpty(t *testing.T) {
	assert.Zero(t, Rekap{}.PersenHadir())
}

func TestProblemJSON(t *testing.T) {
	data, err := json.Marshal(Problemf("Kelas dengan nama '%s' tidak ditemukan", "X RPL"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"error":"Kelas dengan nama 'X RPL' tidak ditemukan"}`, string(data))
}

func TestHaversineMeters(t *testing.T) {
	assert.Zero(t, HaversineMeters(0.0617, 111.4953, 0.0617, 111.4953))
	// One hundredth of a degree of latitude is about 1.11 km.
	assert.InDelta(t, 1112, HaversineMeters(0, 111.4953, 0.01, 111.4953), 2)
}

func TestFormatTanggal(t *testing.T) {
	assert.Equal(t, "5 Maret 2026", FormatTanggal(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Desember", NamaBulan(time.December))
	assert.Equal(t, "", NamaBulan(0))
}

func TestProblemIsError(t *testing.T) {
	var err error = Problemf("Harus menyertakan %s", "kelas_id atau nama_kelas")
	var p Problem
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &p)
	assert.Equal(t, "Harus menyertakan kelas_id atau nama_kelas", p.Message)
	assert.Equal(t, "Senin", NamaHari(time.Monday))
}
