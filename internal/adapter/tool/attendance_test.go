package tool

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/adapter/store"
	"absensi-ai/internal/domain"
	"absensi-ai/internal/usecase/attendance"
)

func newAttendanceRegistry(t *testing.T) (*Registry, *store.SQLStore) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "absensi.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	k := domain.Kelas{Nama: "X RPL 1", Tingkat: 10, Jurusan: "RPL"}
	require.NoError(t, st.CreateKelas(ctx, &k))
	for _, v := range []domain.Siswa{
		{Nama: "Budi Santoso", NIS: "1001", KelasID: k.ID},
		{Nama: "Siti Aminah", NIS: "1002", KelasID: k.ID},
	} {
		require.NoError(t, st.CreateSiswa(ctx, &v))
	}

	svc := attendance.NewService(st, nil, attendance.Config{Location: time.UTC}, nopLogger())
	reg := NewRegistry(nopLogger())
	require.NoError(t, RegisterAttendanceTools(reg, svc, nopLogger()))
	return reg, st
}

func TestRegisterAttendanceToolsNamesAndOrder(t *testing.T) {
	reg, _ := newAttendanceRegistry(t)

	want := []string{
		NameCariSiswa, NameGetSiswaByKelas, NameGetAbsensiBySiswa, NameGetAbsensiByKelas,
		NameGetSiswaTidakHadir, NameGetRekapAbsensi, NameGetRekapAbsensiBulanan,
		NameGetPersentaseKehadiran, NameBuatSuratPeringatanAlfa, NameBuatLaporanAlfa,
		NameGetAttendanceTrends, NameGetGeolocationAnalysis, NameCompareClassAttendance,
		NameGetRingkasanHarian, NameGetRingkasanRange, NameGetRekapKelasRange,
		NameGetTopSiswaAbsensi, NameGetAnalisisMetodeAbsen, NameGetAnomaliAbsensi,
		NameGetStatistikWaktuAbsen, NameGetLaporanKepsekRange, NameGetLaporanGuruHarian,
	}
	assert.Equal(t, want, reg.Names())

	for _, s := range reg.Schemas() {
		assert.NotEmpty(t, s.Description, s.Name)
		var doc schemaDoc
		require.NoError(t, json.Unmarshal(s.Parameters, &doc), s.Name)
		assert.Equal(t, "object", doc.Type, s.Name)
	}
}

func TestRegisterAttendanceToolsTwiceFails(t *testing.T) {
	reg, st := newAttendanceRegistry(t)
	svc := attendance.NewService(st, nil, attendance.Config{}, nopLogger())
	err := RegisterAttendanceTools(reg, svc, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestAttendanceSchemas(t *testing.T) {
	reg, _ := newAttendanceRegistry(t)

	cari, err := reg.Get(NameCariSiswa)
	require.NoError(t, err)
	var doc schemaDoc
	require.NoError(t, json.Unmarshal(cari.Schema().Parameters, &doc))
	assert.Equal(t, []string{"nama"}, doc.Required)

	bySiswa, err := reg.Get(NameGetAbsensiBySiswa)
	require.NoError(t, err)
	doc = schemaDoc{}
	require.NoError(t, json.Unmarshal(bySiswa.Schema().Parameters, &doc))
	assert.Empty(t, doc.Required)
	for _, prop := range []string{"siswa_id", "nama_siswa", "tanggal_mulai", "tanggal_akhir"} {
		assert.Contains(t, doc.Properties, prop)
	}
}

func TestAttendanceToolExecute(t *testing.T) {
	reg, _ := newAttendanceRegistry(t)
	ctx := context.Background()

	cari, err := reg.Get(NameCariSiswa)
	require.NoError(t, err)
	res, err := cari.Execute(ctx, json.RawMessage(`{"nama": "budi"}`))
	require.NoError(t, err)

	var items []attendance.SiswaItem
	require.NoError(t, json.Unmarshal([]byte(res.Content), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Budi Santoso", items[0].Nama)
	assert.Equal(t, "X RPL 1", items[0].Kelas)

	byKelas, err := reg.Get(NameGetSiswaByKelas)
	require.NoError(t, err)
	res, err = byKelas.Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Harus menyertakan kelas_id atau nama_kelas"}`, res.Content)

	res, err = byKelas.Execute(ctx, json.RawMessage(`{"nama_kelas": "rpl"}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(res.Content), &items))
	assert.Len(t, items, 2)
}

func TestAttendanceToolStoreFailureIsGoError(t *testing.T) {
	reg, st := newAttendanceRegistry(t)
	require.NoError(t, st.Close())

	cari, err := reg.Get(NameCariSiswa)
	require.NoError(t, err)
	res, err := cari.Execute(context.Background(), json.RawMessage(`{"nama": "budi"}`))
	assert.Nil(t, res)
	assert.Error(t, err)
}

func TestAttendanceToolLooseNumericArgs(t *testing.T) {
	reg, _ := newAttendanceRegistry(t)
	rekap, err := reg.Get(NameGetRekapAbsensi)
	require.NoError(t, err)

	tests := []struct {
		name string
		args string
		want string
	}{
		{"number", `{"siswa_id": 1}`, `null`},
		{"numeric string", `{"siswa_id": "1"}`, `null`},
		{"integral float", `{"siswa_id": 1.0}`, `null`},
		{"string month and year", `{"nama_siswa": "Budi", "bulan": "3", "tahun": "2025"}`, `null`},
		{"string month out of range", `{"siswa_id": "1", "bulan": "13"}`, `{"error": "Bulan harus antara 1 sampai 12"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := rekap.Execute(context.Background(), json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, res.Content)
		})
	}

	_, err = rekap.Execute(context.Background(), json.RawMessage(`{"siswa_id": "satu"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAttendanceSchemasKeepIntegerTypes(t *testing.T) {
	reg, _ := newAttendanceRegistry(t)
	rekap, err := reg.Get(NameGetRekapAbsensi)
	require.NoError(t, err)

	var doc schemaDoc
	require.NoError(t, json.Unmarshal(rekap.Schema().Parameters, &doc))
	for _, prop := range []string{"siswa_id", "bulan", "tahun"} {
		assert.Equal(t, "integer", doc.Properties[prop]["type"], prop)
	}
	assert.EqualValues(t, 12, doc.Properties["bulan"]["maximum"])
}
