package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"absensi-ai/internal/domain"
)

// Trend directions.
const (
	TrenNaik   = "naik"
	TrenTurun  = "turun"
	TrenStabil = "stabil"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const trendThreshold = 5.0

// TrendsParams are the parameters of get_attendance_trends.
type TrendsParams struct {
	SiswaRef
	KelasRef
	Months Int `json:"months,omitempty" jsonschema:"minimum=1,maximum=24,description=Jumlah bulan yang dianalisis (default: 6)"`
}

// TrendPoint is the hadir percentage of one month.
type TrendPoint struct {
	Tanggal   string  `json:"tanggal"`
	Nilai     float64 `json:"nilai"`
	Label     string  `json:"label"`
	TotalHari int     `json:"total_hari"`
}

// TrendsResult is a monthly attendance series with its overall direction.
type TrendsResult struct {
	SiswaID    int64        `json:"siswa_id,omitempty"`
	KelasID    int64        `json:"kelas_id,omitempty"`
	Nama       string       `json:"nama"`
	Periode    string       `json:"periode"`
	DataPoints []TrendPoint `json:"data_points"`
	Tren       string       `json:"tren_keseluruhan"`
	Ringkasan  string       `json:"ringkasan"`
}

// TrendDirection compares the last point with the first: a rise above
// five points is naik, a fall below minus five is turun.
func TrendDirection(points []TrendPoint) string {
	if len(points) < 2 {
		return TrenStabil
	}
	diff := points[len(points)-1].Nilai - points[0].Nilai
	switch {
	case diff > trendThreshold:
		return TrenNaik
	case diff < -trendThreshold:
		return TrenTurun
	default:
		return TrenStabil
	}
}

// GetAttendanceTrends returns one point per month that has records.
func (s *Service) GetAttendanceTrends(ctx context.Context, p TrendsParams) (*TrendsResult, error) {
	months := int(p.Months)
	if months <= 0 {
		months = 6
	}
	if months > 24 {
		months = 24
	}

	out := &TrendsResult{}
	var f domain.AbsensiFilter
	switch {
	case p.SiswaRef.given():
		v, err := s.resolveSiswa(ctx, p.SiswaRef)
		if err != nil {
			return nil, err
		}
		f.SiswaID, out.SiswaID, out.Nama = v.ID, v.ID, v.Nama
	case p.KelasRef.given():
		k, err := s.resolveKelas(ctx, p.KelasRef)
		if err != nil {
			return nil, err
		}
		f.KelasID, out.KelasID, out.Nama = k.ID, k.ID, k.Nama
	default:
		return nil, domain.Problemf("Harus menyertakan siswa_id/nama_siswa atau kelas_id/nama_kelas")
	}

	today := s.today()
	f.From = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	f.To = today
	out.Periode = periode(f.From, f.To)

	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}
	out.DataPoints = make([]TrendPoint, 0, months)
	for _, b := range groupByMonth(rows) {
		out.DataPoints = append(out.DataPoints, TrendPoint{
			Tanggal:   b.month.Format(domain.DateLayout),
			Nilai:     round(b.rekap.PersenHadir(), 2),
			Label:     fmt.Sprintf("%s %d", domain.NamaBulan(b.month.Month()), b.month.Year()),
			TotalHari: b.rekap.Total,
		})
	}
	out.Tren = TrendDirection(out.DataPoints)

	switch n := len(out.DataPoints); n {
	case 0:
		out.Ringkasan = fmt.Sprintf("Tidak ada data absensi %s dalam %d bulan terakhir.", out.Nama, months)
	case 1:
		out.Ringkasan = fmt.Sprintf("Kehadiran %s pada %s sebesar %.1f%%. Data belum cukup untuk melihat tren.",
			out.Nama, out.DataPoints[0].Label, out.DataPoints[0].Nilai)
	default:
		first, last := out.DataPoints[0], out.DataPoints[n-1]
		out.Ringkasan = fmt.Sprintf("Kehadiran %s %s dari %.1f%% (%s) menjadi %.1f%% (%s).",
			out.Nama, trendVerb(out.Tren), first.Nilai, first.Label, last.Nilai, last.Label)
	}
	return out, nil
}

func trendVerb(tren string) string {
	switch tren {
	case TrenNaik:
		return "meningkat"
	case TrenTurun:
		return "menurun"
	default:
		return "relatif stabil"
	}
}

// distance returns the stored distance of a GPS row, or computes it from
// the school coordinates. ok is false for rows without a location.
func (s *Service) distance(a domain.Absensi) (float64, bool) {
	if a.JarakMeter != nil {
		return *a.JarakMeter, true
	}
	if a.Latitude == nil || a.Longitude == nil {
		return 0, false
	}
	return domain.HaversineMeters(s.cfg.Latitude, s.cfg.Longitude, *a.Latitude, *a.Longitude), true
}

// GeolocationParams are the parameters of get_geolocation_analysis.
type GeolocationParams struct {
	KelasRef
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal analisis dalam format YYYY-MM-DD (opsional\\, default 30 hari terakhir)"`
}

// Anomaly is one detected irregularity.
type Anomaly struct {
	SiswaID   int64          `json:"siswa_id"`
	NamaSiswa string         `json:"nama_siswa"`
	Kelas     string         `json:"kelas,omitempty"`
	Tanggal   string         `json:"tanggal"`
	Jenis     string         `json:"jenis_anomali"`
	Deskripsi string         `json:"deskripsi"`
	Severity  string         `json:"severity"`
	Data      map[string]any `json:"data_pendukung,omitempty"`
}

// Coordinate is a latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeolocationResult counts valid and suspicious check-in locations.
type GeolocationResult struct {
	Periode          string     `json:"periode"`
	Kelas            string     `json:"kelas,omitempty"`
	TotalRecords     int        `json:"total_records"`
	ValidLocations   int        `json:"valid_locations"`
	Suspicious       int        `json:"suspicious_locations"`
	PersentaseValid  float64    `json:"persentase_valid"`
	RadiusMeter      float64    `json:"radius_sekolah_meter"`
	KoordinatSekolah Coordinate `json:"koordinat_sekolah"`
	RataRataJarak    float64    `json:"rata_rata_jarak_meter"`
	DetailAnomali    []Anomaly  `json:"detail_anomali"`
}

// GetGeolocationAnalysis checks located check-ins against the school radius.
func (s *Service) GetGeolocationAnalysis(ctx context.Context, p GeolocationParams) (*GeolocationResult, error) {
	k, err := s.optionalKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	var from, to time.Time
	if strings.TrimSpace(p.Tanggal) != "" {
		if from, err = parseDate("tanggal", p.Tanggal); err != nil {
			return nil, err
		}
		to = from
	} else if from, to, err = s.windowOrDefault(DateRange{}); err != nil {
		return nil, err
	}

	f := domain.AbsensiFilter{From: from, To: to}
	out := &GeolocationResult{
		Periode:          periode(from, to),
		RadiusMeter:      s.cfg.RadiusMeter,
		KoordinatSekolah: Coordinate{Latitude: s.cfg.Latitude, Longitude: s.cfg.Longitude},
		DetailAnomali:    []Anomaly{},
	}
	if k != nil {
		f.KelasID, out.Kelas = k.ID, k.Nama
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}

	var sum float64
	for _, a := range rows {
		d, ok := s.distance(a)
		if !ok {
			continue
		}
		out.TotalRecords++
		sum += d
		if an, far := s.farAnomaly(a, d); far {
			out.Suspicious++
			out.DetailAnomali = append(out.DetailAnomali, an)
		} else {
			out.ValidLocations++
		}
	}
	if out.TotalRecords > 0 {
		out.RataRataJarak = round(sum/float64(out.TotalRecords), 1)
	}
	out.PersentaseValid = percent(out.ValidLocations, out.TotalRecords, 2)
	return out, nil
}

// farAnomaly reports whether a check-in at distance d lies outside the
// school radius; beyond three radii it is high severity.
func (s *Service) farAnomaly(a domain.Absensi, d float64) (Anomaly, bool) {
	if d <= s.cfg.RadiusMeter {
		return Anomaly{}, false
	}
	severity := SeverityMedium
	if d > 3*s.cfg.RadiusMeter {
		severity = SeverityHigh
	}
	data := map[string]any{"jarak_meter": round(d, 1), "radius_meter": s.cfg.RadiusMeter}
	if a.Latitude != nil && a.Longitude != nil {
		data["latitude"] = *a.Latitude
		data["longitude"] = *a.Longitude
	}
	return Anomaly{
		SiswaID:   a.SiswaID,
		NamaSiswa: a.NamaSiswa,
		Kelas:     a.NamaKelas,
		Tanggal:   a.Date(),
		Jenis:     "lokasi_jauh",
		Deskripsi: fmt.Sprintf("Absen dari jarak %.0f meter, di luar radius sekolah %.0f meter", d, s.cfg.RadiusMeter),
		Severity:  severity,
		Data:      data,
	}, true
}

// CompareParams are the parameters of compare_class_attendance.
type CompareParams struct {
	Tingkat Int    `json:"tingkat,omitempty" jsonschema:"enum=10,enum=11,enum=12,description=Tingkat kelas (opsional)"`
	Jurusan string `json:"jurusan,omitempty" jsonschema:"description=Jurusan\\, misal RPL atau TKJ (opsional)"`
	DateRange
}

// ClassComparison is one ranked class.
type ClassComparison struct {
	KelasID           int64   `json:"kelas_id"`
	NamaKelas         string  `json:"nama_kelas"`
	JumlahSiswa       int     `json:"jumlah_siswa"`
	RataRataKehadiran float64 `json:"rata_rata_kehadiran"`
	TotalAlfa         int     `json:"total_alfa"`
	TotalTerlambat    int     `json:"total_terlambat"`
	TotalRecords      int     `json:"total_records"`
	Peringkat         int     `json:"peringkat"`
}

// CompareResult ranks classes by hadir percentage.
type CompareResult struct {
	Periode             string            `json:"periode"`
	KelasTerbaik        string            `json:"kelas_terbaik,omitempty"`
	KelasPerluPerhatian string            `json:"kelas_perlu_perhatian,omitempty"`
	DataPerbandingan    []ClassComparison `json:"data_perbandingan"`
	Ringkasan           string            `json:"ringkasan"`
}

// CompareClassAttendance ranks classes by average hadir percentage, then
// by fewer alfa. Classes without records rank last.
func (s *Service) CompareClassAttendance(ctx context.Context, p CompareParams) (*CompareResult, error) {
	from, to, err := s.windowOrDefault(p.DateRange)
	if err != nil {
		return nil, err
	}
	classes, err := s.store.ListKelas(ctx, int(p.Tingkat), p.Jurusan)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{From: from, To: to, Tingkat: int(p.Tingkat), Jurusan: p.Jurusan})
	if err != nil {
		return nil, err
	}
	per := make(map[int64]*domain.Rekap)
	for _, a := range rows {
		r, ok := per[a.KelasID]
		if !ok {
			r = &domain.Rekap{}
			per[a.KelasID] = r
		}
		r.Add(a.Status)
	}

	items := make([]ClassComparison, 0, len(classes))
	for _, k := range classes {
		r := per[k.ID]
		if r == nil {
			r = &domain.Rekap{}
		}
		items = append(items, ClassComparison{
			KelasID:           k.ID,
			NamaKelas:         k.Nama,
			JumlahSiswa:       k.JumlahSiswa,
			RataRataKehadiran: round(r.PersenHadir(), 2),
			TotalAlfa:         r.Alfa,
			TotalTerlambat:    r.Terlambat,
			TotalRecords:      r.Total,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.TotalRecords > 0) != (b.TotalRecords > 0) {
			return a.TotalRecords > 0
		}
		if a.RataRataKehadiran != b.RataRataKehadiran {
			return a.RataRataKehadiran > b.RataRataKehadiran
		}
		if a.TotalAlfa != b.TotalAlfa {
			return a.TotalAlfa < b.TotalAlfa
		}
		return a.NamaKelas < b.NamaKelas
	})
	withData := 0
	for i := range items {
		items[i].Peringkat = i + 1
		if items[i].TotalRecords > 0 {
			withData++
		}
	}

	out := &CompareResult{Periode: periode(from, to), DataPerbandingan: items}
	switch withData {
	case 0:
		out.Ringkasan = "Tidak ada data absensi untuk dibandingkan pada periode ini."
	case 1:
		out.KelasTerbaik = items[0].NamaKelas
		out.Ringkasan = fmt.Sprintf("Hanya %s yang memiliki data absensi (%.2f%%).", items[0].NamaKelas, items[0].RataRataKehadiran)
	default:
		best, worst := items[0], items[withData-1]
		out.KelasTerbaik = best.NamaKelas
		out.KelasPerluPerhatian = worst.NamaKelas
		out.Ringkasan = fmt.Sprintf("%s memiliki kehadiran tertinggi (%.2f%%), sedangkan %s terendah (%.2f%%) dengan %d alfa.",
			best.NamaKelas, best.RataRataKehadiran, worst.NamaKelas, worst.RataRataKehadiran, worst.TotalAlfa)
	}
	return out, nil
}

// TopSiswaParams are the parameters of get_top_siswa_absensi.
type TopSiswaParams struct {
	KelasRef
	DateRange
	Status string `json:"status,omitempty" jsonschema:"enum=Hadir,enum=Alfa,enum=Sakit,enum=Izin,enum=Terlambat,description=Status yang diperingkat (default: Alfa)"`
	Limit  Int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=100,description=Jumlah siswa (default: 10)"`
}

// TopSiswa is one ranked student.
type TopSiswa struct {
	Peringkat  int      `json:"peringkat"`
	SiswaID    int64    `json:"siswa_id"`
	NamaSiswa  string   `json:"nama_siswa"`
	NamaKelas  string   `json:"nama_kelas"`
	Jumlah     int      `json:"jumlah"`
	TotalHari  int      `json:"total_hari"`
	Persentase *float64 `json:"persentase_kehadiran,omitempty"`
}

// TopSiswaResult is a ranking of students by one status.
type TopSiswaResult struct {
	Kategori string     `json:"kategori"`
	Status   string     `json:"status"`
	Periode  string     `json:"periode"`
	Data     []TopSiswa `json:"data"`
}

// GetTopSiswaAbsensi ranks students by how often they have a status. For
// Hadir the ranking is by hadir percentage instead.
func (s *Service) GetTopSiswaAbsensi(ctx context.Context, p TopSiswaParams) (*TopSiswaResult, error) {
	status := domain.StatusAlfa
	if p.Status != "" {
		st, ok := domain.ParseStatus(p.Status)
		if !ok {
			return nil, domain.Problemf("Status '%s' tidak valid", p.Status)
		}
		status = st
	}
	limit := int(p.Limit)
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, 100)

	k, err := s.optionalKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	from, to, err := s.windowOrDefault(p.DateRange)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{From: from, To: to}
	if k != nil {
		f.KelasID = k.ID
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}

	type acc struct {
		item  TopSiswa
		match int
	}
	per := make(map[int64]*acc)
	var order []int64
	for _, a := range rows {
		x, ok := per[a.SiswaID]
		if !ok {
			x = &acc{item: TopSiswa{SiswaID: a.SiswaID, NamaSiswa: a.NamaSiswa, NamaKelas: a.NamaKelas}}
			per[a.SiswaID] = x
			order = append(order, a.SiswaID)
		}
		x.item.TotalHari++
		if a.Status.Is(status) {
			x.match++
		}
	}

	ranked := make([]TopSiswa, 0, len(order))
	for _, id := range order {
		x := per[id]
		x.item.Jumlah = x.match
		if status == domain.StatusHadir {
			x.item.Persentase = new(percent(x.match, x.item.TotalHari, 2))
		} else if x.match == 0 {
			continue
		}
		ranked = append(ranked, x.item)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if status == domain.StatusHadir && *a.Persentase != *b.Persentase {
			return *a.Persentase > *b.Persentase
		}
		if a.Jumlah != b.Jumlah {
			return a.Jumlah > b.Jumlah
		}
		return a.NamaSiswa < b.NamaSiswa
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Peringkat = i + 1
	}

	kategori := "paling_sering_" + strings.ToLower(string(status))
	if status == domain.StatusHadir {
		kategori = "terrajin"
	}
	return &TopSiswaResult{Kategori: kategori, Status: string(status), Periode: periode(from, to), Data: ranked}, nil
}

// RangeFilterParams are shared by analytics over an optional class and range.
type RangeFilterParams struct {
	KelasRef
	DateRange
}

// MetodeUsage is the share of one check-in method.
type MetodeUsage struct {
	Metode          string  `json:"metode"`
	TotalPenggunaan int     `json:"total_penggunaan"`
	Persentase      float64 `json:"persentase"`
}

// MetodeResult is the distribution of check-in methods.
type MetodeResult struct {
	Periode          string        `json:"periode"`
	TotalRecords     int           `json:"total_records"`
	MetodeTerpopuler string        `json:"metode_terpopuler,omitempty"`
	Distribusi       []MetodeUsage `json:"distribusi"`
	Rekomendasi      string        `json:"rekomendasi"`
}

// GetAnalisisMetodeAbsen measures how students check in.
func (s *Service) GetAnalisisMetodeAbsen(ctx context.Context, p RangeFilterParams) (*MetodeResult, error) {
	rows, from, to, err := s.rangeRows(ctx, p)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	total := 0
	for _, a := range rows {
		if a.Metode == "" {
			continue
		}
		counts[strings.ToLower(a.Metode)]++
		total++
	}

	out := &MetodeResult{Periode: periode(from, to), TotalRecords: total, Distribusi: make([]MetodeUsage, 0, len(counts))}
	for m, n := range counts {
		out.Distribusi = append(out.Distribusi, MetodeUsage{Metode: m, TotalPenggunaan: n, Persentase: percent(n, total, 2)})
	}
	sort.Slice(out.Distribusi, func(i, j int) bool {
		a, b := out.Distribusi[i], out.Distribusi[j]
		if a.TotalPenggunaan != b.TotalPenggunaan {
			return a.TotalPenggunaan > b.TotalPenggunaan
		}
		return a.Metode < b.Metode
	})
	if len(out.Distribusi) > 0 {
		out.MetodeTerpopuler = out.Distribusi[0].Metode
	}

	manual := percent(counts[string(domain.MetodeManual)], total, 2)
	gps := percent(counts[string(domain.MetodeGPS)], total, 2)
	switch {
	case total == 0:
		out.Rekomendasi = "Belum ada data metode absensi pada periode ini."
	case manual > 30:
		out.Rekomendasi = fmt.Sprintf("Absen manual masih %.1f%%. Dorong penggunaan QR code, GPS, atau face recognition agar kehadiran lebih mudah divalidasi.", manual)
	case gps < 20:
		out.Rekomendasi = fmt.Sprintf("Penggunaan GPS baru %.1f%%. Aktifkan absen GPS agar lokasi kehadiran dapat diverifikasi.", gps)
	default:
		out.Rekomendasi = "Distribusi metode absensi sudah baik. Pertahankan penggunaan metode digital."
	}
	return out, nil
}

// rangeRows loads rows for an optional class over an optional range.
func (s *Service) rangeRows(ctx context.Context, p RangeFilterParams) ([]domain.Absensi, time.Time, time.Time, error) {
	k, err := s.optionalKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	from, to, err := s.windowOrDefault(p.DateRange)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	f := domain.AbsensiFilter{From: from, To: to}
	if k != nil {
		f.KelasID = k.ID
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return rows, from, to, nil
}

const (
	earliestNormal = "05:00:00"
	latestNormal   = "10:00:00"
	alfaStreak     = 3
)

// AnomalyReport groups anomalies by severity.
type AnomalyReport struct {
	Periode       string         `json:"periode"`
	TotalAnomali  int            `json:"total_anomali"`
	AnomaliTinggi int            `json:"anomali_tinggi"`
	AnomaliSedang int            `json:"anomali_sedang"`
	AnomaliRendah int            `json:"anomali_rendah"`
	PerJenis      map[string]int `json:"per_jenis"`
	DaftarAnomali []Anomaly      `json:"daftar_anomali"`
	Rekomendasi   []string       `json:"rekomendasi"`
}

// GetAnomaliAbsensi finds far check-ins, check-ins at implausible hours and
// runs of three or more consecutive alfa records.
func (s *Service) GetAnomaliAbsensi(ctx context.Context, p RangeFilterParams) (*AnomalyReport, error) {
	rows, from, to, err := s.rangeRows(ctx, p)
	if err != nil {
		return nil, err
	}
	var list []Anomaly

	for _, a := range rows {
		if d, ok := s.distance(a); ok {
			if an, far := s.farAnomaly(a, d); far {
				list = append(list, an)
			}
		}
		if a.WaktuAbsen != "" && (a.WaktuAbsen < earliestNormal || a.WaktuAbsen > latestNormal) {
			list = append(list, Anomaly{
				SiswaID:   a.SiswaID,
				NamaSiswa: a.NamaSiswa,
				Kelas:     a.NamaKelas,
				Tanggal:   a.Date(),
				Jenis:     "waktu_tidak_wajar",
				Deskripsi: fmt.Sprintf("Absen pada pukul %s, di luar jam wajar %s-%s", a.WaktuAbsen, earliestNormal[:5], latestNormal[:5]),
				Severity:  SeverityMedium,
				Data:      map[string]any{"waktu_absen": a.WaktuAbsen, "metode": a.Metode},
			})
		}
	}
	list = append(list, alfaStreaks(rows)...)

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Tanggal != list[j].Tanggal {
			return list[i].Tanggal < list[j].Tanggal
		}
		return list[i].NamaSiswa < list[j].NamaSiswa
	})

	out := &AnomalyReport{Periode: periode(from, to), PerJenis: map[string]int{}, DaftarAnomali: list}
	if out.DaftarAnomali == nil {
		out.DaftarAnomali = []Anomaly{}
	}
	for _, an := range list {
		out.PerJenis[an.Jenis]++
		switch an.Severity {
		case SeverityHigh:
			out.AnomaliTinggi++
		case SeverityMedium:
			out.AnomaliSedang++
		default:
			out.AnomaliRendah++
		}
	}
	out.TotalAnomali = len(list)
	out.Rekomendasi = anomalyAdvice(out.PerJenis)
	return out, nil
}

// alfaStreaks reports each run of consecutive alfa records per student.
// Rows must be ordered by date. Five or more in a row is high severity.
func alfaStreaks(rows []domain.Absensi) []Anomaly {
	bySiswa := make(map[int64][]domain.Absensi)
	var order []int64
	for _, a := range rows {
		if _, ok := bySiswa[a.SiswaID]; !ok {
			order = append(order, a.SiswaID)
		}
		bySiswa[a.SiswaID] = append(bySiswa[a.SiswaID], a)
	}

	var out []Anomaly
	for _, id := range order {
		list := bySiswa[id]
		start := -1
		flush := func(end int) {
			n := end - start
			if start < 0 || n < alfaStreak {
				return
			}
			first, last := list[start], list[end-1]
			severity := SeverityMedium
			if n >= 5 {
				severity = SeverityHigh
			}
			out = append(out, Anomaly{
				SiswaID:   first.SiswaID,
				NamaSiswa: first.NamaSiswa,
				Kelas:     first.NamaKelas,
				Tanggal:   first.Date(),
				Jenis:     "pola_mencurigakan",
				Deskripsi: fmt.Sprintf("Alfa %d kali berturut-turut (%s s/d %s)", n, first.Date(), last.Date()),
				Severity:  severity,
				Data:      map[string]any{"jumlah_hari": n, "tanggal_mulai": first.Date(), "tanggal_akhir": last.Date()},
			})
		}
		for i, a := range list {
			if a.Status.Is(domain.StatusAlfa) {
				if start < 0 {
					start = i
				}
				continue
			}
			flush(i)
			start = -1
		}
		flush(len(list))
	}
	return out
}

func anomalyAdvice(perJenis map[string]int) []string {
	var out []string
	if perJenis["lokasi_jauh"] > 0 {
		out = append(out, "Verifikasi absen GPS yang berada di luar radius sekolah dan konfirmasi ke siswa yang bersangkutan.")
	}
	if perJenis["waktu_tidak_wajar"] > 0 {
		out = append(out, "Periksa absen pada jam tidak wajar; pertimbangkan membatasi jendela waktu absen.")
	}
	if perJenis["pola_mencurigakan"] > 0 {
		out = append(out, "Hubungi orang tua siswa dengan alfa berturut-turut dan pertimbangkan surat peringatan.")
	}
	if len(out) == 0 {
		out = append(out, "Tidak ditemukan anomali pada periode ini.")
	}
	return out
}

// WaktuParams are the parameters of get_statistik_waktu_absen.
type WaktuParams struct {
	KelasRef
	DateRange
	JamTelat string `json:"jam_telat,omitempty" jsonschema:"description=Batas jam terlambat HH:MM:SS (default: 07:15:00)"`
	Limit    Int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=100,description=Jumlah siswa paling lambat yang ditampilkan (default: 10)"`
}

// TimeSlot is the arrival count in one half-hour slot.
type TimeSlot struct {
	Jam         string  `json:"jam"`
	JumlahSiswa int     `json:"jumlah_siswa"`
	Persentase  float64 `json:"persentase"`
}

// Arrival is one late check-in.
type Arrival struct {
	NamaSiswa  string `json:"nama_siswa"`
	Kelas      string `json:"kelas"`
	Tanggal    string `json:"tanggal"`
	WaktuAbsen string `json:"waktu_absen"`
	Status     string `json:"status"`
}

// WaktuResult summarizes arrival times.
type WaktuResult struct {
	Periode           string     `json:"periode"`
	TotalRecords      int        `json:"total_records"`
	RataRataMasuk     string     `json:"rata_rata_masuk,omitempty"`
	PuncakKehadiran   string     `json:"puncak_kehadiran,omitempty"`
	JamTelat          string     `json:"jam_telat"`
	JumlahTerlambat   int        `json:"jumlah_terlambat"`
	DistribusiWaktu   []TimeSlot `json:"distribusi_waktu"`
	SiswaPalingLambat []Arrival  `json:"siswa_paling_lambat"`
}

// GetStatistikWaktuAbsen buckets check-in times into half-hour slots.
func (s *Service) GetStatistikWaktuAbsen(ctx context.Context, p WaktuParams) (*WaktuResult, error) {
	jamTelat := "07:15:00"
	if strings.TrimSpace(p.JamTelat) != "" {
		secs, ok := clockSeconds(p.JamTelat)
		if !ok {
			return nil, domain.Problemf("Format jam_telat tidak valid: '%s'. Gunakan format HH:MM:SS", p.JamTelat)
		}
		jamTelat = formatClock(secs)
	}
	limit := int(p.Limit)
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, 100)

	rows, from, to, err := s.rangeRows(ctx, RangeFilterParams{KelasRef: p.KelasRef, DateRange: p.DateRange})
	if err != nil {
		return nil, err
	}

	out := &WaktuResult{Periode: periode(from, to), JamTelat: jamTelat, DistribusiWaktu: []TimeSlot{}, SiswaPalingLambat: []Arrival{}}
	slots := make(map[int]int)
	var (
		sum     int
		arrived []Arrival
	)
	for _, a := range rows {
		secs, ok := clockSeconds(a.WaktuAbsen)
		if !ok {
			continue
		}
		out.TotalRecords++
		sum += secs
		slots[secs/1800]++
		if a.WaktuAbsen > jamTelat {
			out.JumlahTerlambat++
		}
		arrived = append(arrived, Arrival{
			NamaSiswa:  a.NamaSiswa,
			Kelas:      a.NamaKelas,
			Tanggal:    a.Date(),
			WaktuAbsen: a.WaktuAbsen,
			Status:     string(a.Status),
		})
	}
	if out.TotalRecords == 0 {
		return out, nil
	}
	out.RataRataMasuk = formatClock(sum / out.TotalRecords)

	keys := make([]int, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	peak := -1
	for _, k := range keys {
		label := fmt.Sprintf("%s-%s", formatClock(k*1800)[:5], formatClock((k+1)*1800)[:5])
		out.DistribusiWaktu = append(out.DistribusiWaktu, TimeSlot{
			Jam:         label,
			JumlahSiswa: slots[k],
			Persentase:  percent(slots[k], out.TotalRecords, 2),
		})
		if peak < 0 || slots[k] > slots[peak] {
			peak = k
			out.PuncakKehadiran = label
		}
	}

	sort.SliceStable(arrived, func(i, j int) bool {
		if arrived[i].WaktuAbsen != arrived[j].WaktuAbsen {
			return arrived[i].WaktuAbsen > arrived[j].WaktuAbsen
		}
		return arrived[i].Tanggal > arrived[j].Tanggal
	})
	if len(arrived) > limit {
		arrived = arrived[:limit]
	}
	out.SiswaPalingLambat = arrived
	return out, nil
}

// clockSeconds parses HH:MM or HH:MM:SS into seconds after midnight.
func clockSeconds(v string) (int, bool) {
	v = strings.TrimSpace(v)
	layout := "15:04:05"
	if len(v) == 5 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return 0, false
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
}

func formatClock(secs int) string {
	secs %= 24 * 3600
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
