package store

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"absensi-ai/internal/domain"
)

// SeedOptions controls the generated demo data set.
type SeedOptions struct {
	End       time.Time // last school day to generate
	Days      int       // calendar days before End to cover
	Latitude  float64   // school coordinates for GPS check-ins
	Longitude float64
	Seed      uint64
}

// SeedReport counts inserted rows.
type SeedReport struct {
	Kelas   int
	Siswa   int
	Absensi int
}

type seedKelas struct {
	nama    string
	tingkat int
	jurusan string
	wali    string
	siswa   []string
}

var demoKelas = []seedKelas{
	{"X RPL 1", 10, "RPL", "Dra. Maria Ulfa", []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Dewi Lestari", "Yosef Kurniawan", "Rina Marlina",
	}},
	{"X TKJ 1", 10, "TKJ", "Hendra Wijaya, S.Kom", []string{
		"Agus Salim", "Fransiska Dayang", "Rudi Hermawan", "Putri Ayu", "Nurul Hidayah", "Stefanus Anyam",
	}},
	{"XI RPL 1", 11, "RPL", "Agustina, S.Pd", []string{
		"Budi Hartono", "Dimas Saputra", "Lusiana Ita", "Eko Prasetyo", "Maria Goreti", "Wahyu Hidayat",
	}},
	{"XII TKJ 2", 12, "TKJ", "Yohanes Bosco, S.T", []string{
		"Ani Rahmawati", "Kristina Dewi", "Fajar Nugroho", "Indah Permata", "Joko Susilo", "Teguh Santoso",
	}},
}

// Seed fills an empty database with deterministic demo data. It returns
// domain.ErrDuplicate when students already exist.
func (s *SQLStore) Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM siswa").Scan(&n); err != nil {
		return nil, fmt.Errorf("count siswa: %w", err)
	}
	if n > 0 {
		return nil, domain.NewDomainError("store.Seed", domain.ErrDuplicate, fmt.Sprintf("%d siswa already present", n))
	}
	if opts.Days <= 0 {
		opts.Days = 90
	}
	if opts.End.IsZero() {
		opts.End = time.Now()
	}

	rng := rand.New(rand.NewPCG(opts.Seed, 0x5eed))
	report := &SeedReport{}
	var students []domain.Siswa

	for i, sk := range demoKelas {
		k := domain.Kelas{Nama: sk.nama, Tingkat: sk.tingkat, Jurusan: sk.jurusan, WaliKelas: sk.wali}
		if err := s.CreateKelas(ctx, &k); err != nil {
			return nil, err
		}
		report.Kelas++
		for j, nama := range sk.siswa {
			v := domain.Siswa{
				Nama:         nama,
				NIS:          fmt.Sprintf("24%02d%03d", i+1, j+1),
				NamaOrangTua: "Bapak/Ibu " + lastName(nama),
				KelasID:      k.ID,
				Kelas:        k.Nama,
			}
			if err := s.CreateSiswa(ctx, &v); err != nil {
				return nil, err
			}
			students = append(students, v)
			report.Siswa++
		}
	}

	end := time.Date(opts.End.Year(), opts.End.Month(), opts.End.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -opts.Days)
	var schoolDays []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			schoolDays = append(schoolDays, d)
		}
	}

	for di, day := range schoolDays {
		for _, v := range students {
			a := randomAbsensi(rng, v, day, opts)
			applyScenario(&a, v, di, len(schoolDays), opts)
			if err := s.RecordAbsensi(ctx, &a); err != nil {
				return nil, err
			}
			report.Absensi++
		}
	}
	return report, nil
}

func randomAbsensi(rng *rand.Rand, v domain.Siswa, day time.Time, opts SeedOptions) domain.Absensi {
	a := domain.Absensi{SiswaID: v.ID, KelasID: v.KelasID, Tanggal: day}

	p := rng.Float64()
	switch {
	case p < 0.84:
		a.Status = domain.StatusHadir
		a.WaktuAbsen = clock(6*60+25+rng.IntN(48), rng.IntN(60))
	case p < 0.88:
		a.Status = domain.StatusTerlambat
		a.WaktuAbsen = clock(7*60+16+rng.IntN(40), rng.IntN(60))
	case p < 0.92:
		a.Status = domain.StatusSakit
		a.Keterangan = "Surat dokter"
	case p < 0.96:
		a.Status = domain.StatusIzin
		a.Keterangan = "Keperluan keluarga"
	default:
		a.Status = domain.StatusAlfa
	}

	if a.WaktuAbsen == "" {
		a.Metode = string(domain.MetodeManual)
		return a
	}

	m := rng.Float64()
	switch {
	case m < 0.5:
		a.Metode = string(domain.MetodeGPS)
		// Within roughly 70 m of the school gate.
		lat := opts.Latitude + (rng.Float64()-0.5)*0.0012
		lon := opts.Longitude + (rng.Float64()-0.5)*0.0012
		setLocation(&a, lat, lon, opts)
	case m < 0.75:
		a.Metode = string(domain.MetodeQRCode)
	case m < 0.9:
		a.Metode = string(domain.MetodeFaceRecognition)
	default:
		a.Metode = string(domain.MetodeManual)
	}
	return a
}

// applyScenario plants the patterns the anomaly and warning-letter
// operations look for so demos have something to find.
func applyScenario(a *domain.Absensi, v domain.Siswa, dayIdx, totalDays int, opts SeedOptions) {
	fromEnd := totalDays - 1 - dayIdx
	switch v.Nama {
	case "Rudi Hermawan":
		if fromEnd >= 1 && fromEnd <= 4 {
			*a = domain.Absensi{SiswaID: a.SiswaID, KelasID: a.KelasID, Tanggal: a.Tanggal,
				Status: domain.StatusAlfa, Metode: string(domain.MetodeManual)}
		}
	case "Budi Santoso":
		if fromEnd == 6 || fromEnd == 13 {
			*a = domain.Absensi{SiswaID: a.SiswaID, KelasID: a.KelasID, Tanggal: a.Tanggal,
				Status: domain.StatusAlfa, Metode: string(domain.MetodeManual)}
		}
	case "Andi Pratama":
		if fromEnd == 2 {
			a.Status = domain.StatusHadir
			a.WaktuAbsen = "06:58:12"
			a.Metode = string(domain.MetodeGPS)
			setLocation(a, opts.Latitude+0.018, opts.Longitude+0.004, opts)
		}
	case "Putri Ayu":
		if fromEnd == 3 {
			a.Status = domain.StatusHadir
			a.WaktuAbsen = "04:41:09"
			a.Metode = string(domain.MetodeQRCode)
			a.Latitude, a.Longitude, a.JarakMeter = nil, nil, nil
		}
	}
}

func setLocation(a *domain.Absensi, lat, lon float64, opts SeedOptions) {
	d := math.Round(domain.HaversineMeters(opts.Latitude, opts.Longitude, lat, lon)*10) / 10
	a.Latitude, a.Longitude, a.JarakMeter = new(lat), new(lon), new(d)
}

func clock(minutes, seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", minutes/60, minutes%60, seconds)
}

func lastName(nama string) string {
	for i := len(nama) - 1; i >= 0; i-- {
		if nama[i] == ' ' {
			return nama[i+1:]
		}
	}
	return nama
}
