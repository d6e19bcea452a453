package attendance

import (
	"context"
	"sort"
	"time"

	"absensi-ai/internal/domain"
)

// HarianParams are the parameters of get_ringkasan_absensi_harian.
type HarianParams struct {
	KelasRef
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal dalam format YYYY-MM-DD. Default: hari ini"`
}

// KelasCounts is the status distribution of one class.
type KelasCounts struct {
	Kelas  string `json:"kelas"`
	Counts Counts `json:"rekap"`
}

// HarianResult is the status distribution of one day.
type HarianResult struct {
	Tanggal    string        `json:"tanggal"`
	Hari       string        `json:"hari"`
	Kelas      string        `json:"kelas,omitempty"`
	Distribusi Counts        `json:"distribusi"`
	Persentase float64       `json:"persentase_kehadiran"`
	PerKelas   []KelasCounts `json:"per_kelas"`
}

// GetRingkasanAbsensiHarian summarizes one day, overall and per class.
func (s *Service) GetRingkasanAbsensiHarian(ctx context.Context, p HarianParams) (*HarianResult, error) {
	day, err := s.dayOrToday(p.Tanggal)
	if err != nil {
		return nil, err
	}
	k, err := s.optionalKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{From: day, To: day}
	out := &HarianResult{Tanggal: day.Format(domain.DateLayout), Hari: domain.NamaHari(day.Weekday())}
	if k != nil {
		f.KelasID, out.Kelas = k.ID, k.Nama
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}

	total := rekapOf(rows)
	out.Distribusi = countsOf(total)
	out.Persentase = round(total.PersenHadir(), 2)
	out.PerKelas = perKelas(rows)
	return out, nil
}

// perKelas groups rows by class name in alphabetical order.
func perKelas(rows []domain.Absensi) []KelasCounts {
	per := make(map[string]*domain.Rekap)
	for _, a := range rows {
		r, ok := per[a.NamaKelas]
		if !ok {
			r = &domain.Rekap{}
			per[a.NamaKelas] = r
		}
		r.Add(a.Status)
	}
	out := make([]KelasCounts, 0, len(per))
	for name, r := range per {
		out = append(out, KelasCounts{Kelas: name, Counts: countsOf(*r)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kelas < out[j].Kelas })
	return out
}

// RangeSummaryParams are the parameters of get_ringkasan_absensi_range.
type RangeSummaryParams struct {
	DateRange
	KelasRef
}

// DayCounts is the distribution of one day inside a range.
type DayCounts struct {
	Tanggal    string  `json:"tanggal"`
	Hari       string  `json:"hari"`
	Counts     Counts  `json:"rekap"`
	Persentase float64 `json:"persentase_kehadiran"`
}

// RangeSummaryResult is a per-day distribution with totals.
type RangeSummaryResult struct {
	Periode    string      `json:"periode"`
	Kelas      string      `json:"kelas,omitempty"`
	JumlahHari int         `json:"jumlah_hari_tercatat"`
	PerHari    []DayCounts `json:"per_hari"`
	Total      Counts      `json:"total"`
	Persentase float64     `json:"persentase_kehadiran"`
}

// GetRingkasanAbsensiRange summarizes each recorded day of a range.
func (s *Service) GetRingkasanAbsensiRange(ctx context.Context, p RangeSummaryParams) (*RangeSummaryResult, error) {
	from, to, err := requiredRange(p.DateRange)
	if err != nil {
		return nil, err
	}
	k, err := s.optionalKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{From: from, To: to}
	out := &RangeSummaryResult{Periode: periode(from, to), PerHari: []DayCounts{}}
	if k != nil {
		f.KelasID, out.Kelas = k.ID, k.Nama
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}

	var (
		total domain.Rekap
		cur   time.Time
		day   domain.Rekap
	)
	flush := func() {
		if day.Total == 0 {
			return
		}
		out.PerHari = append(out.PerHari, DayCounts{
			Tanggal:    cur.Format(domain.DateLayout),
			Hari:       domain.NamaHari(cur.Weekday()),
			Counts:     countsOf(day),
			Persentase: round(day.PersenHadir(), 2),
		})
	}
	for _, a := range rows {
		if !a.Tanggal.Equal(cur) {
			flush()
			cur, day = a.Tanggal, domain.Rekap{}
		}
		day.Add(a.Status)
		total.Add(a.Status)
	}
	flush()

	out.JumlahHari = len(out.PerHari)
	out.Total = countsOf(total)
	out.Persentase = round(total.PersenHadir(), 2)
	return out, nil
}

// GuruHarianParams are the parameters of get_laporan_guru_harian.
type GuruHarianParams struct {
	KelasRef
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal dalam format YYYY-MM-DD. Default: hari ini"`
}

// SiswaHarian is one student's status on the day. Status is null when the
// student has no record.
type SiswaHarian struct {
	SiswaID    int64   `json:"siswa_id"`
	NamaSiswa  string  `json:"nama_siswa"`
	NIS        string  `json:"nis"`
	Status     *string `json:"status"`
	WaktuAbsen string  `json:"waktu_absen,omitempty"`
	Metode     string  `json:"metode,omitempty"`
	Keterangan string  `json:"keterangan,omitempty"`
}

// MissingRecord is a placed student without a row for the day.
type MissingRecord struct {
	SiswaID   int64  `json:"siswa_id"`
	NamaSiswa string `json:"nama_siswa"`
	NIS       string `json:"nis"`
}

// GuruHarianResult is the homeroom teacher's daily class report.
type GuruHarianResult struct {
	Kelas          string          `json:"kelas"`
	WaliKelas      string          `json:"wali_kelas"`
	Tanggal        string          `json:"tanggal"`
	Hari           string          `json:"hari"`
	JumlahSiswa    int             `json:"jumlah_siswa"`
	DaftarAbsensi  []SiswaHarian   `json:"daftar_absensi"`
	Ringkasan      Counts          `json:"ringkasan"`
	BelumTercatat  int             `json:"belum_tercatat"`
	MissingRecords []MissingRecord `json:"missing_records"`
}

// GetLaporanGuruHarian lists each student of the class with the day's
// status and flags students without a record.
func (s *Service) GetLaporanGuruHarian(ctx context.Context, p GuruHarianParams) (*GuruHarianResult, error) {
	k, err := s.resolveKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	day, err := s.dayOrToday(p.Tanggal)
	if err != nil {
		return nil, err
	}
	students, err := s.store.ListSiswaByKelas(ctx, k.ID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{KelasID: k.ID, From: day, To: day})
	if err != nil {
		return nil, err
	}
	bySiswa := make(map[int64]domain.Absensi, len(rows))
	for _, a := range rows {
		bySiswa[a.SiswaID] = a
	}

	out := &GuruHarianResult{
		Kelas:          k.Nama,
		WaliKelas:      k.WaliKelas,
		Tanggal:        day.Format(domain.DateLayout),
		Hari:           domain.NamaHari(day.Weekday()),
		JumlahSiswa:    len(students),
		DaftarAbsensi:  make([]SiswaHarian, 0, len(students)),
		MissingRecords: []MissingRecord{},
	}
	var rekap domain.Rekap
	for _, v := range students {
		item := SiswaHarian{SiswaID: v.ID, NamaSiswa: v.Nama, NIS: v.NIS}
		a, ok := bySiswa[v.ID]
		if !ok {
			out.MissingRecords = append(out.MissingRecords, MissingRecord{SiswaID: v.ID, NamaSiswa: v.Nama, NIS: v.NIS})
			out.DaftarAbsensi = append(out.DaftarAbsensi, item)
			continue
		}
		rekap.Add(a.Status)
		item.Status = new(string(a.Status))
		item.WaktuAbsen, item.Metode, item.Keterangan = a.WaktuAbsen, a.Metode, a.Keterangan
		out.DaftarAbsensi = append(out.DaftarAbsensi, item)
	}
	out.Ringkasan = countsOf(rekap)
	out.BelumTercatat = len(out.MissingRecords)
	return out, nil
}
