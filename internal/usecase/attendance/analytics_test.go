package attendance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
)

func TestTrendDirection(t *testing.T) {
	pts := func(vals ...float64) []TrendPoint {
		out := make([]TrendPoint, len(vals))
		for i, v := range vals {
			out[i].Nilai = v
		}
		return out
	}
	tests := []struct {
		name   string
		points []TrendPoint
		want   string
	}{
		{"empty", nil, TrenStabil},
		{"single", pts(80), TrenStabil},
		{"rising", pts(70, 60, 80), TrenNaik},
		{"falling", pts(90, 84.9), TrenTurun},
		{"within threshold", pts(80, 85), TrenStabil},
		{"exactly minus five", pts(80, 75), TrenStabil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendDirection(tt.points))
		})
	}
}

func TestGetAttendanceTrends(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})
	ctx := context.Background()

	r, err := svc.GetAttendanceTrends(ctx, TrendsParams{SiswaRef: SiswaRef{NamaSiswa: "Hartono"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.SiswaID)
	assert.Equal(t, "2025-10-01 s/d 2026-03-10", r.Periode)
	require.Len(t, r.DataPoints, 2)
	assert.Equal(t, "2026-01-01", r.DataPoints[0].Tanggal)
	assert.Equal(t, "Januari 2026", r.DataPoints[0].Label)
	assert.Equal(t, TrenStabil, r.Tren)
	assert.Contains(t, r.Ringkasan, "relatif stabil")

	r, err = svc.GetAttendanceTrends(ctx, TrendsParams{KelasRef: KelasRef{KelasID: 1}, Months: 1})
	require.NoError(t, err)
	require.Len(t, r.DataPoints, 1)
	assert.InDelta(t, 62.5, r.DataPoints[0].Nilai, 0.001)

	_, err = svc.GetAttendanceTrends(ctx, TrendsParams{})
	requireProblem(t, err, "Harus menyertakan siswa_id/nama_siswa atau kelas_id/nama_kelas")
}

func TestGetGeolocationAnalysis(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})
	ctx := context.Background()

	r, err := svc.GetGeolocationAnalysis(ctx, GeolocationParams{Tanggal: "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalRecords)
	assert.Equal(t, 0, r.ValidLocations)
	assert.Equal(t, 2, r.Suspicious)
	require.Len(t, r.DetailAnomali, 2)

	bySiswa := map[string]Anomaly{}
	for _, a := range r.DetailAnomali {
		bySiswa[a.NamaSiswa] = a
	}
	assert.Equal(t, SeverityHigh, bySiswa["Budi Santoso"].Severity, "computed distance is about 1.1 km")
	assert.Equal(t, SeverityMedium, bySiswa["Budi Hartono"].Severity, "stored 150 m is within three radii")

	r, err = svc.GetGeolocationAnalysis(ctx, GeolocationParams{KelasRef: KelasRef{NamaKelas: "RPL"}})
	require.NoError(t, err)
	assert.Equal(t, "X RPL 1", r.Kelas)
	assert.Equal(t, 2, r.TotalRecords)
	assert.Equal(t, 1, r.ValidLocations)
	assert.InDelta(t, 50.0, r.PersentaseValid, 0.001)
}

func TestCompareClassAttendance(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})

	r, err := svc.CompareClassAttendance(context.Background(), CompareParams{})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-09 s/d 2026-03-10", r.Periode)
	require.Len(t, r.DataPerbandingan, 2)
	first, second := r.DataPerbandingan[0], r.DataPerbandingan[1]
	assert.Equal(t, "X RPL 1", first.NamaKelas)
	assert.Equal(t, 1, first.Peringkat)
	assert.InDelta(t, 62.5, first.RataRataKehadiran, 0.001)
	assert.Equal(t, "XI TKJ 1", second.NamaKelas)
	assert.InDelta(t, 33.33, second.RataRataKehadiran, 0.001)
	assert.Equal(t, 4, second.TotalAlfa)
	assert.Equal(t, 3, second.JumlahSiswa)
	assert.Equal(t, "X RPL 1", r.KelasTerbaik)
	assert.Equal(t, "XI TKJ 1", r.KelasPerluPerhatian)

	r, err = svc.CompareClassAttendance(context.Background(), CompareParams{Tingkat: 11, Jurusan: "tkj"})
	require.NoError(t, err)
	require.Len(t, r.DataPerbandingan, 1)
	assert.Equal(t, "XI TKJ 1", r.KelasTerbaik)
	assert.Empty(t, r.KelasPerluPerhatian)
}

func TestGetTopSiswaAbsensi(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})
	ctx := context.Background()

	r, err := svc.GetTopSiswaAbsensi(ctx, TopSiswaParams{})
	require.NoError(t, err)
	assert.Equal(t, "paling_sering_alfa", r.Kategori)
	require.Len(t, r.Data, 2)
	assert.Equal(t, "Rudi Hermawan", r.Data[0].NamaSiswa)
	assert.Equal(t, 4, r.Data[0].Jumlah)
	assert.Equal(t, "Budi Santoso", r.Data[1].NamaSiswa)
	assert.Equal(t, 2, r.Data[1].Peringkat)

	r, err = svc.GetTopSiswaAbsensi(ctx, TopSiswaParams{Status: "hadir", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "terrajin", r.Kategori)
	require.Len(t, r.Data, 2)
	assert.Equal(t, "Budi Hartono", r.Data[0].NamaSiswa)
	assert.InDelta(t, 100.0, *r.Data[0].Persentase, 0.001)
	assert.Equal(t, "Siti Aminah", r.Data[1].NamaSiswa)

	_, err = svc.GetTopSiswaAbsensi(ctx, TopSiswaParams{Status: "bolos"})
	requireProblem(t, err, "Status 'bolos' tidak valid")
}

func TestGetAnalisisMetodeAbsen(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})

	r, err := svc.GetAnalisisMetodeAbsen(context.Background(), RangeFilterParams{})
	require.NoError(t, err)
	assert.Equal(t, 7, r.TotalRecords)
	assert.Equal(t, "gps", r.MetodeTerpopuler)
	require.Len(t, r.Distribusi, 4)
	assert.Equal(t, 3, r.Distribusi[0].TotalPenggunaan)
	assert.InDelta(t, 42.86, r.Distribusi[0].Persentase, 0.001)
	assert.Equal(t, "qr_code", r.Distribusi[1].Metode)
	assert.Contains(t, r.Rekomendasi, "sudah baik")

	r, err = svc.GetAnalisisMetodeAbsen(context.Background(), RangeFilterParams{
		DateRange: DateRange{TanggalMulai: "2026-01-01", TanggalAkhir: "2026-01-31"},
	})
	require.NoError(t, err)
	assert.Zero(t, r.TotalRecords)
	assert.Equal(t, "Belum ada data metode absensi pada periode ini.", r.Rekomendasi)
}

func TestGetAnomaliAbsensi(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})

	r, err := svc.GetAnomaliAbsensi(context.Background(), RangeFilterParams{})
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalAnomali)
	assert.Equal(t, 1, r.AnomaliTinggi)
	assert.Equal(t, 3, r.AnomaliSedang)
	assert.Equal(t, 0, r.AnomaliRendah)
	assert.Equal(t, map[string]int{"lokasi_jauh": 2, "waktu_tidak_wajar": 1, "pola_mencurigakan": 1}, r.PerJenis)
	assert.Len(t, r.Rekomendasi, 3)

	first := r.DaftarAnomali[0]
	assert.Equal(t, "pola_mencurigakan", first.Jenis)
	assert.Equal(t, "Rudi Hermawan", first.NamaSiswa)
	assert.Equal(t, "2026-03-02", first.Tanggal)
	assert.Equal(t, 3, first.Data["jumlah_hari"])
}

func TestAlfaStreaksResetOnAttendance(t *testing.T) {
	store := fixtureStore()
	rows, err := store.ListAbsensi(context.Background(), domain.AbsensiFilter{SiswaID: 4})
	require.NoError(t, err)
	streaks := alfaStreaks(rows)
	require.Len(t, streaks, 1, "the single alfa after a hadir is not a streak")
	assert.Equal(t, "2026-03-04", streaks[0].Data["tanggal_akhir"])
}

func TestGetStatistikWaktuAbsen(t *testing.T) {
	svc := newTestService(fixtureStore(), &fakeRenderer{})
	ctx := context.Background()

	r, err := svc.GetStatistikWaktuAbsen(ctx, WaktuParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, r.TotalRecords)
	assert.Equal(t, "06:40:00", r.RataRataMasuk)
	assert.Equal(t, "06:30-07:00", r.PuncakKehadiran)
	assert.Equal(t, 2, r.JumlahTerlambat)
	require.Len(t, r.DistribusiWaktu, 4)
	assert.Equal(t, "04:30-05:00", r.DistribusiWaktu[0].Jam)
	require.Len(t, r.SiswaPalingLambat, 2)
	assert.Equal(t, "07:30:00", r.SiswaPalingLambat[0].WaktuAbsen)
	assert.Equal(t, "Rudi Hermawan", r.SiswaPalingLambat[0].NamaSiswa)

	r, err = svc.GetStatistikWaktuAbsen(ctx, WaktuParams{JamTelat: "07:00"})
	require.NoError(t, err)
	assert.Equal(t, "07:00:00", r.JamTelat)
	assert.Equal(t, 2, r.JumlahTerlambat, "07:00:00 itself is on time")

	_, err = svc.GetStatistikWaktuAbsen(ctx, WaktuParams{JamTelat: "7.15"})
	requireProblem(t, err, "Format jam_telat tidak valid: '7.15'. Gunakan format HH:MM:SS")
}
