package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"absensi-ai/internal/domain"
)

// RekapParams are the parameters of get_rekap_absensi.
type RekapParams struct {
	SiswaRef
	Bulan Int `json:"bulan,omitempty" jsonschema:"minimum=1,maximum=12,description=Bulan (1-12)\\, opsional"`
	Tahun Int `json:"tahun,omitempty" jsonschema:"description=Tahun (contoh: 2026)\\, opsional"`
}

// RekapResult totals one student's attendance.
type RekapResult struct {
	NamaSiswa      string `json:"nama_siswa"`
	NIS            string `json:"nis"`
	TotalHadir     int    `json:"total_hadir"`
	TotalSakit     int    `json:"total_sakit"`
	TotalIzin      int    `json:"total_izin"`
	TotalAlfa      int    `json:"total_alfa"`
	TotalTerlambat int    `json:"total_terlambat"`
	TotalHari      int    `json:"total_hari"`
}

// GetRekapAbsensi totals a student's statuses, optionally within a month
// and/or year. It returns nil when the student has no matching rows or
// the siswa_id is unknown.
func (s *Service) GetRekapAbsensi(ctx context.Context, p RekapParams) (*RekapResult, error) {
	if err := monthYear(int(p.Bulan), int(p.Tahun)); err != nil {
		return nil, err
	}
	v, err := s.siswaOrNone(ctx, p.SiswaRef)
	if err != nil || v == nil {
		return nil, err
	}
	f := domain.AbsensiFilter{SiswaID: v.ID}
	yearRange(&f, int(p.Tahun))
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}
	rows = filterMonth(rows, int(p.Bulan))
	if len(rows) == 0 {
		return nil, nil
	}
	r := rekapOf(rows)
	return &RekapResult{
		NamaSiswa:      v.Nama,
		NIS:            v.NIS,
		TotalHadir:     r.Hadir,
		TotalSakit:     r.Sakit,
		TotalIzin:      r.Izin,
		TotalAlfa:      r.Alfa,
		TotalTerlambat: r.Terlambat,
		TotalHari:      r.Total,
	}, nil
}

// RekapBulananParams are the parameters of get_rekap_absensi_bulanan.
type RekapBulananParams struct {
	SiswaRef
	Tahun Int `json:"tahun,omitempty" jsonschema:"description=Filter tahun tertentu (contoh: 2026)\\, opsional"`
}

// SiswaInfo is the student header of per-student reports.
type SiswaInfo struct {
	ID    int64  `json:"id"`
	Nama  string `json:"nama"`
	NIS   string `json:"nis"`
	Kelas string `json:"kelas"`
}

// RekapBulan is one month of a student's attendance.
type RekapBulan struct {
	Tahun       int     `json:"tahun"`
	Bulan       int     `json:"bulan"`
	NamaBulan   string  `json:"nama_bulan"`
	Hadir       int     `json:"hadir"`
	Sakit       int     `json:"sakit"`
	Izin        int     `json:"izin"`
	Alfa        int     `json:"alfa"`
	Terlambat   int     `json:"terlambat"`
	TotalHari   int     `json:"total_hari"`
	PersenHadir float64 `json:"persen_hadir"`
}

// RekapBulananResult groups a student's attendance per month.
type RekapBulananResult struct {
	Siswa         SiswaInfo    `json:"siswa"`
	RekapPerBulan []RekapBulan `json:"rekap_per_bulan"`
}

// GetRekapAbsensiBulanan returns per-month totals in calendar order.
func (s *Service) GetRekapAbsensiBulanan(ctx context.Context, p RekapBulananParams) (*RekapBulananResult, error) {
	if err := monthYear(0, int(p.Tahun)); err != nil {
		return nil, err
	}
	v, err := s.resolveSiswa(ctx, p.SiswaRef)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{SiswaID: v.ID}
	yearRange(&f, int(p.Tahun))
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}

	buckets := groupByMonth(rows)
	out := &RekapBulananResult{
		Siswa:         SiswaInfo{ID: v.ID, Nama: v.Nama, NIS: v.NIS, Kelas: v.Kelas},
		RekapPerBulan: make([]RekapBulan, 0, len(buckets)),
	}
	for _, b := range buckets {
		out.RekapPerBulan = append(out.RekapPerBulan, RekapBulan{
			Tahun:       b.month.Year(),
			Bulan:       int(b.month.Month()),
			NamaBulan:   domain.NamaBulan(b.month.Month()),
			Hadir:       b.rekap.Hadir,
			Sakit:       b.rekap.Sakit,
			Izin:        b.rekap.Izin,
			Alfa:        b.rekap.Alfa,
			Terlambat:   b.rekap.Terlambat,
			TotalHari:   b.rekap.Total,
			PersenHadir: round(b.rekap.PersenHadir(), 1),
		})
	}
	return out, nil
}

type monthBucket struct {
	month time.Time
	rekap domain.Rekap
}

// groupByMonth buckets rows by calendar month in ascending order.
func groupByMonth(rows []domain.Absensi) []monthBucket {
	idx := make(map[time.Time]int)
	var out []monthBucket
	for _, a := range rows {
		m := time.Date(a.Tanggal.Year(), a.Tanggal.Month(), 1, 0, 0, 0, 0, time.UTC)
		i, ok := idx[m]
		if !ok {
			i = len(out)
			idx[m] = i
			out = append(out, monthBucket{month: m})
		}
		out[i].rekap.Add(a.Status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].month.Before(out[j].month) })
	return out
}

// PersentaseParams are the parameters of get_persentase_kehadiran.
type PersentaseParams struct {
	SiswaRef
	KelasRef
	Bulan Int `json:"bulan,omitempty" jsonschema:"minimum=1,maximum=12,description=Bulan (1-12)"`
	Tahun Int `json:"tahun,omitempty" jsonschema:"description=Tahun (contoh: 2026)"`
}

// PersentaseResult is the hadir percentage of a student or a class.
// Persentase is null when there are no rows.
type PersentaseResult struct {
	NamaSiswa  string   `json:"nama_siswa,omitempty"`
	Kelas      string   `json:"kelas,omitempty"`
	TotalHari  int      `json:"total_hari"`
	TotalHadir int      `json:"total_hadir"`
	Persentase *float64 `json:"persentase_kehadiran"`
}

// GetPersentaseKehadiran computes the hadir percentage to two decimals.
// A student reference wins over a class reference.
func (s *Service) GetPersentaseKehadiran(ctx context.Context, p PersentaseParams) (*PersentaseResult, error) {
	if err := monthYear(int(p.Bulan), int(p.Tahun)); err != nil {
		return nil, err
	}
	var (
		f   domain.AbsensiFilter
		out PersentaseResult
	)
	switch {
	case p.SiswaRef.given():
		v, err := s.siswaOrNone(ctx, p.SiswaRef)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return &out, nil
		}
		f.SiswaID = v.ID
		out.NamaSiswa = v.Nama
	case p.KelasRef.given():
		k, err := s.resolveKelas(ctx, p.KelasRef)
		if err != nil {
			return nil, err
		}
		f.KelasID = k.ID
		out.Kelas = k.Nama
	default:
		return nil, domain.Problemf("Harus menyertakan siswa_id atau kelas_id")
	}

	yearRange(&f, int(p.Tahun))
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}
	r := rekapOf(filterMonth(rows, int(p.Bulan)))
	out.TotalHari, out.TotalHadir = r.Total, r.Hadir
	if r.Total > 0 {
		out.Persentase = new(round(r.PersenHadir(), 2))
	}
	return &out, nil
}

// KelasRangeParams are the parameters of get_rekap_absensi_kelas_range.
type KelasRangeParams struct {
	KelasRef
	DateRange
}

// SiswaRekap is one student's totals inside a class report.
type SiswaRekap struct {
	SiswaID    int64   `json:"siswa_id"`
	NamaSiswa  string  `json:"nama_siswa"`
	NIS        string  `json:"nis"`
	Counts     Counts  `json:"rekap"`
	Persentase float64 `json:"persentase_kehadiran"`
}

// KelasRangeResult is a per-student recap of one class over a range.
type KelasRangeResult struct {
	Kelas             string       `json:"kelas"`
	WaliKelas         string       `json:"wali_kelas"`
	Periode           string       `json:"periode"`
	JumlahSiswa       int          `json:"jumlah_siswa"`
	Siswa             []SiswaRekap `json:"siswa"`
	Total             Counts       `json:"total"`
	RataRataKehadiran float64      `json:"rata_rata_kehadiran"`
}

// GetRekapAbsensiKelasRange recaps every student actively placed in the
// class, including those without rows in the range.
func (s *Service) GetRekapAbsensiKelasRange(ctx context.Context, p KelasRangeParams) (*KelasRangeResult, error) {
	from, to, err := requiredRange(p.DateRange)
	if err != nil {
		return nil, err
	}
	k, err := s.resolveKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	students, err := s.store.ListSiswaByKelas(ctx, k.ID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{KelasID: k.ID, From: from, To: to})
	if err != nil {
		return nil, err
	}

	per := make(map[int64]*domain.Rekap, len(students))
	for _, v := range students {
		per[v.ID] = &domain.Rekap{}
	}
	var total domain.Rekap
	for _, a := range rows {
		total.Add(a.Status)
		if r, ok := per[a.SiswaID]; ok {
			r.Add(a.Status)
		}
	}

	out := &KelasRangeResult{
		Kelas:             k.Nama,
		WaliKelas:         k.WaliKelas,
		Periode:           periode(from, to),
		JumlahSiswa:       len(students),
		Siswa:             make([]SiswaRekap, 0, len(students)),
		Total:             countsOf(total),
		RataRataKehadiran: round(total.PersenHadir(), 2),
	}
	for _, v := range students {
		r := per[v.ID]
		out.Siswa = append(out.Siswa, SiswaRekap{
			SiswaID:    v.ID,
			NamaSiswa:  v.Nama,
			NIS:        v.NIS,
			Counts:     countsOf(*r),
			Persentase: round(r.PersenHadir(), 2),
		})
	}
	return out, nil
}

// LaporanKepsekParams are the parameters of get_laporan_kepsek_range.
type LaporanKepsekParams struct {
	DateRange
	Tingkat   Int    `json:"tingkat,omitempty" jsonschema:"enum=10,enum=11,enum=12,description=Tingkat kelas (opsional)"`
	Jurusan   string `json:"jurusan,omitempty" jsonschema:"description=Jurusan\\, misal RPL atau TKJ (opsional)"`
	Threshold *Float `json:"threshold_kehadiran,omitempty" jsonschema:"minimum=0,maximum=100,description=Batas minimal persentase kehadiran (default 85)"`
}

// KelasRekap is one class row of the principal's report.
type KelasRekap struct {
	KelasID     int64   `json:"kelas_id"`
	NamaKelas   string  `json:"nama_kelas"`
	WaliKelas   string  `json:"wali_kelas"`
	JumlahSiswa int     `json:"jumlah_siswa"`
	Counts      Counts  `json:"rekap"`
	Persentase  float64 `json:"persentase_kehadiran"`
}

// LaporanKepsekResult is the school-wide report for the principal.
type LaporanKepsekResult struct {
	Periode            string       `json:"periode"`
	Threshold          float64      `json:"threshold_kehadiran"`
	TotalSekolah       Counts       `json:"total_sekolah"`
	PersentaseSekolah  float64      `json:"persentase_kehadiran_sekolah"`
	DataPerKelas       []KelasRekap `json:"data_per_kelas"`
	KelasDibawahTarget []KelasRekap `json:"kelas_di_bawah_threshold"`
	Ringkasan          string       `json:"ringkasan"`
}

// GetLaporanKepsekRange recaps every class over a range and flags classes
// below the attendance threshold.
func (s *Service) GetLaporanKepsekRange(ctx context.Context, p LaporanKepsekParams) (*LaporanKepsekResult, error) {
	from, to, err := requiredRange(p.DateRange)
	if err != nil {
		return nil, err
	}
	threshold := 85.0
	if p.Threshold != nil {
		threshold = float64(*p.Threshold)
	}
	if threshold < 0 || threshold > 100 {
		return nil, domain.Problemf("threshold_kehadiran harus antara 0 dan 100")
	}

	classes, err := s.store.ListKelas(ctx, int(p.Tingkat), p.Jurusan)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{From: from, To: to, Tingkat: int(p.Tingkat), Jurusan: p.Jurusan})
	if err != nil {
		return nil, err
	}
	per := make(map[int64]*domain.Rekap, len(classes))
	var total domain.Rekap
	for _, a := range rows {
		r, ok := per[a.KelasID]
		if !ok {
			r = &domain.Rekap{}
			per[a.KelasID] = r
		}
		r.Add(a.Status)
		total.Add(a.Status)
	}

	out := &LaporanKepsekResult{
		Periode:            periode(from, to),
		Threshold:          threshold,
		TotalSekolah:       countsOf(total),
		PersentaseSekolah:  round(total.PersenHadir(), 2),
		DataPerKelas:       make([]KelasRekap, 0, len(classes)),
		KelasDibawahTarget: []KelasRekap{},
	}
	for _, k := range classes {
		r := per[k.ID]
		if r == nil {
			r = &domain.Rekap{}
		}
		item := KelasRekap{
			KelasID:     k.ID,
			NamaKelas:   k.Nama,
			WaliKelas:   k.WaliKelas,
			JumlahSiswa: k.JumlahSiswa,
			Counts:      countsOf(*r),
			Persentase:  round(r.PersenHadir(), 2),
		}
		out.DataPerKelas = append(out.DataPerKelas, item)
		if r.Total > 0 && item.Persentase < threshold {
			out.KelasDibawahTarget = append(out.KelasDibawahTarget, item)
		}
	}

	switch {
	case total.Total == 0:
		out.Ringkasan = "Tidak ada data absensi pada periode ini."
	case len(out.KelasDibawahTarget) == 0:
		out.Ringkasan = fmt.Sprintf("Kehadiran sekolah %.2f%%. Semua kelas memenuhi target %.0f%%.", out.PersentaseSekolah, threshold)
	default:
		out.Ringkasan = fmt.Sprintf("Kehadiran sekolah %.2f%%. %d dari %d kelas berada di bawah target %.0f%%.",
			out.PersentaseSekolah, len(out.KelasDibawahTarget), len(classes), threshold)
	}
	return out, nil
}
