package tool

import (
	"context"
	"log/slog"

	"absensi-ai/internal/usecase/attendance"
)

// Operation names exposed to the model.
const (
	NameCariSiswa               = "cari_siswa"
	NameGetSiswaByKelas         = "get_siswa_by_kelas"
	NameGetAbsensiBySiswa       = "get_absensi_by_siswa"
	NameGetAbsensiByKelas       = "get_absensi_by_kelas"
	NameGetSiswaTidakHadir      = "get_siswa_tidak_hadir"
	NameGetRekapAbsensi         = "get_rekap_absensi"
	NameGetRekapAbsensiBulanan  = "get_rekap_absensi_bulanan"
	NameGetPersentaseKehadiran  = "get_persentase_kehadiran"
	NameBuatSuratPeringatanAlfa = "buat_surat_peringatan_alfa"
	NameBuatLaporanAlfa         = "buat_laporan_alfa"
	NameGetAttendanceTrends     = "get_attendance_trends"
	NameGetGeolocationAnalysis  = "get_geolocation_analysis"
	NameCompareClassAttendance  = "compare_class_attendance"
	NameGetRingkasanHarian      = "get_ringkasan_absensi_harian"
	NameGetRingkasanRange       = "get_ringkasan_absensi_range"
	NameGetRekapKelasRange      = "get_rekap_absensi_kelas_range"
	NameGetTopSiswaAbsensi      = "get_top_siswa_absensi"
	NameGetAnalisisMetodeAbsen  = "get_analisis_metode_absen"
	NameGetAnomaliAbsensi       = "get_anomali_absensi"
	NameGetStatistikWaktuAbsen  = "get_statistik_waktu_absen"
	NameGetLaporanKepsekRange   = "get_laporan_kepsek_range"
	NameGetLaporanGuruHarian    = "get_laporan_guru_harian"
)

// RegisterAttendanceTools registers every attendance operation of svc.
// The first failure aborts registration.
func RegisterAttendanceTools(reg *Registry, svc *attendance.Service, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	steps := []func() error{
		func() error {
			return register(reg, logger, NameCariSiswa,
				"Mencari data siswa berdasarkan nama (pencarian parsial). Gunakan ini ketika user menyebut nama siswa dan kamu perlu mencari ID-nya.",
				svc.CariSiswa)
		},
		func() error {
			return register(reg, logger, NameGetSiswaByKelas,
				"Mengambil daftar semua siswa dalam satu kelas. Bisa menggunakan ID kelas atau nama kelas.",
				svc.GetSiswaByKelas)
		},
		func() error {
			return register(reg, logger, NameGetAbsensiBySiswa,
				"Mengambil data absensi/kehadiran berdasarkan siswa. Bisa menggunakan ID siswa atau nama siswa.",
				svc.GetAbsensiBySiswa)
		},
		func() error {
			return register(reg, logger, NameGetAbsensiByKelas,
				"Mengambil data absensi seluruh siswa dalam satu kelas pada tanggal tertentu. Bisa menggunakan ID kelas atau nama kelas.",
				svc.GetAbsensiByKelas)
		},
		func() error {
			return register(reg, logger, NameGetSiswaTidakHadir,
				"Mengambil daftar siswa yang tidak hadir (alfa/sakit/izin) pada hari tertentu",
				svc.GetSiswaTidakHadir)
		},
		func() error {
			return register(reg, logger, NameGetRekapAbsensi,
				"Menghitung rekap/ringkasan absensi siswa (total hadir, sakit, izin, alfa). Bisa menggunakan ID siswa atau nama siswa.",
				svc.GetRekapAbsensi)
		},
		func() error {
			return register(reg, logger, NameGetRekapAbsensiBulanan,
				"Menampilkan rekap absensi siswa yang dikelompokkan per bulan (hadir, sakit, izin, alfa, persentase kehadiran tiap bulan). Bisa menggunakan ID siswa atau nama siswa.",
				svc.GetRekapAbsensiBulanan)
		},
		func() error {
			return register(reg, logger, NameGetPersentaseKehadiran,
				"Menghitung persentase kehadiran siswa atau seluruh kelas dalam periode tertentu. Bisa menggunakan ID siswa, nama siswa, ID kelas, atau nama kelas.",
				svc.GetPersentaseKehadiran)
		},
		func() error {
			return register(reg, logger, NameBuatSuratPeringatanAlfa,
				"Membuat surat peringatan dalam bentuk PDF untuk siswa yang alfa (tidak hadir tanpa keterangan). Surat berisi kop sekolah, data siswa, daftar tanggal alfa, rekap kehadiran, dan tanda tangan kepala sekolah.",
				svc.BuatSuratPeringatanAlfa)
		},
		func() error {
			return register(reg, logger, NameBuatLaporanAlfa,
				"Membuat laporan PDF daftar semua siswa yang alfa (tidak hadir tanpa keterangan) pada tanggal tertentu. Berisi kop sekolah, tabel daftar siswa alfa, dan tanda tangan.",
				svc.BuatLaporanAlfa)
		},
		func() error {
			return register(reg, logger, NameGetAttendanceTrends,
				"Analyze attendance trends for a student or class over multiple months to identify patterns and improvements/deteriorations",
				svc.GetAttendanceTrends)
		},
		func() error {
			return register(reg, logger, NameGetGeolocationAnalysis,
				"Analyze geolocation data for attendance validation and detect anomalies in student locations",
				svc.GetGeolocationAnalysis)
		},
		func() error {
			return register(reg, logger, NameCompareClassAttendance,
				"Compare attendance rates between different classes to identify patterns and performance differences",
				svc.CompareClassAttendance)
		},
		func() error {
			return register(reg, logger, NameGetRingkasanHarian,
				"Ringkasan absensi satu hari: jumlah hadir, sakit, izin, alfa, dan terlambat untuk seluruh sekolah atau satu kelas, beserta rincian per kelas.",
				svc.GetRingkasanAbsensiHarian)
		},
		func() error {
			return register(reg, logger, NameGetRingkasanRange,
				"Ringkasan absensi per hari dalam rentang tanggal untuk seluruh sekolah atau satu kelas. Wajib menyertakan tanggal_mulai dan tanggal_akhir.",
				svc.GetRingkasanAbsensiRange)
		},
		func() error {
			return register(reg, logger, NameGetRekapKelasRange,
				"Rekap absensi setiap siswa dalam satu kelas pada rentang tanggal, lengkap dengan persentase kehadiran dan rata-rata kelas.",
				svc.GetRekapAbsensiKelasRange)
		},
		func() error {
			return register(reg, logger, NameGetTopSiswaAbsensi,
				"Peringkat siswa berdasarkan status absensi: paling sering alfa, sakit, izin, terlambat, atau siswa paling rajin (Hadir).",
				svc.GetTopSiswaAbsensi)
		},
		func() error {
			return register(reg, logger, NameGetAnalisisMetodeAbsen,
				"Analisis distribusi metode absensi (gps, manual, qr_code, face_recognition) beserta rekomendasi.",
				svc.GetAnalisisMetodeAbsen)
		},
		func() error {
			return register(reg, logger, NameGetAnomaliAbsensi,
				"Mendeteksi anomali absensi: lokasi terlalu jauh dari sekolah, jam absen tidak wajar, dan pola alfa berturut-turut.",
				svc.GetAnomaliAbsensi)
		},
		func() error {
			return register(reg, logger, NameGetStatistikWaktuAbsen,
				"Statistik jam kedatangan siswa: sebaran per 30 menit, rata-rata jam masuk, jumlah terlambat, dan siswa yang paling lambat datang.",
				svc.GetStatistikWaktuAbsen)
		},
		func() error {
			return register(reg, logger, NameGetLaporanKepsekRange,
				"Laporan kehadiran untuk kepala sekolah pada rentang tanggal: persentase sekolah, rekap per kelas, dan kelas di bawah target kehadiran.",
				svc.GetLaporanKepsekRange)
		},
		func() error {
			return register(reg, logger, NameGetLaporanGuruHarian,
				"Laporan harian untuk wali kelas: status absensi setiap siswa di kelas pada satu tanggal, termasuk siswa yang belum tercatat.",
				svc.GetLaporanGuruHarian)
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	logger.Info("attendance tools registered", "count", len(steps))
	return nil
}

func register[P, R any](
	reg *Registry,
	logger *slog.Logger,
	name, description string,
	fn func(ctx context.Context, p P) (R, error),
) error {
	op, err := NewOperation(name, description, fn, logger)
	if err != nil {
		return err
	}
	return reg.Register(op)
}
