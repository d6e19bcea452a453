// Package attendance implements the operations the assistant can invoke
// against the attendance database: lookups, recaps, analytics and
// generated documents.
//
// Every operation returns a JSON-ready value built from structs, slices,
// strings and numbers. Caller-correctable conditions (an ambiguous name, a
// malformed date) are returned as domain.Problem errors so the tool layer
// can pass them to the model as data.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"absensi-ai/internal/domain"
)

const (
	maxSearchResults  = 10
	maxAbsensiBySiswa = 50
	defaultWindowDays = 30
	maxRangeDays      = 366
)

// Config carries the school-specific settings operations depend on.
type Config struct {
	School      domain.SchoolInfo
	Latitude    float64
	Longitude   float64
	RadiusMeter float64
	Location    *time.Location
}

// Service runs attendance operations over a store and a document renderer.
type Service struct {
	store  domain.AttendanceStore
	docs   domain.DocumentRenderer
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(store domain.AttendanceStore, docs domain.DocumentRenderer, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RadiusMeter <= 0 {
		cfg.RadiusMeter = 100
	}
	return &Service{store: store, docs: docs, cfg: cfg, logger: logger, now: time.Now}
}

// SetClock overrides the service clock. Intended for tests and replays.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// today returns the school-local calendar date as midnight UTC.
func (s *Service) today() time.Time {
	t := s.now().In(s.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SiswaRef identifies a student by ID or by (partial) name.
type SiswaRef struct {
	SiswaID   Int    `json:"siswa_id,omitempty" jsonschema:"description=ID unik siswa di database (opsional jika nama_siswa diisi)"`
	NamaSiswa string `json:"nama_siswa,omitempty" jsonschema:"description=Nama siswa\\, bisa sebagian nama (opsional jika siswa_id diisi)"`
}

func (r SiswaRef) given() bool { return r.SiswaID > 0 || strings.TrimSpace(r.NamaSiswa) != "" }

// KelasRef identifies a class by ID or by (partial) name.
type KelasRef struct {
	KelasID   Int    `json:"kelas_id,omitempty" jsonschema:"description=ID kelas (opsional jika nama_kelas diisi)"`
	NamaKelas string `json:"nama_kelas,omitempty" jsonschema:"description=Nama kelas\\, misal 'X RPL 1' atau 'XI TKJ 2' (opsional jika kelas_id diisi)"`
}

func (r KelasRef) given() bool { return r.KelasID > 0 || strings.TrimSpace(r.NamaKelas) != "" }

// DateRange is an optional inclusive date range.
type DateRange struct {
	TanggalMulai string `json:"tanggal_mulai,omitempty" jsonschema:"description=Tanggal mulai dalam format YYYY-MM-DD"`
	TanggalAkhir string `json:"tanggal_akhir,omitempty" jsonschema:"description=Tanggal akhir dalam format YYYY-MM-DD"`
}

func siswaProblem(nama string) domain.Problem {
	return domain.Problemf("Siswa dengan nama '%s' tidak ditemukan atau ada lebih dari satu hasil. Gunakan fungsi cari_siswa untuk mencari dulu.", nama)
}

func kelasProblem(nama string) domain.Problem {
	return domain.Problemf("Kelas dengan nama '%s' tidak ditemukan atau ada lebih dari satu hasil. Coba gunakan nama kelas yang lebih spesifik.", nama)
}

// resolveSiswa looks a student up by ID, or by name when the name
// matches exactly one student.
func (s *Service) resolveSiswa(ctx context.Context, ref SiswaRef) (*domain.Siswa, error) {
	if ref.SiswaID > 0 {
		v, err := s.store.GetSiswa(ctx, int64(ref.SiswaID))
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Problemf("Siswa dengan ID %d tidak ditemukan", ref.SiswaID)
		}
		return v, err
	}
	nama := strings.TrimSpace(ref.NamaSiswa)
	if nama == "" {
		return nil, domain.Problemf("Harus menyertakan siswa_id atau nama_siswa")
	}
	found, err := s.store.SearchSiswa(ctx, nama, 2)
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, siswaProblem(nama)
	}
	return &found[0], nil
}

// siswaOrNone is resolveSiswa for the aggregate operations, where an
// unknown siswa_id reads as a student without records (nil, nil).
func (s *Service) siswaOrNone(ctx context.Context, ref SiswaRef) (*domain.Siswa, error) {
	if ref.SiswaID <= 0 {
		return s.resolveSiswa(ctx, ref)
	}
	v, err := s.store.GetSiswa(ctx, int64(ref.SiswaID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// resolveKelas mirrors resolveSiswa for classes.
func (s *Service) resolveKelas(ctx context.Context, ref KelasRef) (*domain.Kelas, error) {
	if ref.KelasID > 0 {
		k, err := s.store.GetKelas(ctx, int64(ref.KelasID))
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Problemf("Kelas dengan ID %d tidak ditemukan", ref.KelasID)
		}
		return k, err
	}
	nama := strings.TrimSpace(ref.NamaKelas)
	if nama == "" {
		return nil, domain.Problemf("Harus menyertakan kelas_id atau nama_kelas")
	}
	found, err := s.store.SearchKelas(ctx, nama, 2)
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, kelasProblem(nama)
	}
	return &found[0], nil
}

// optionalKelas resolves ref only when the caller supplied one.
func (s *Service) optionalKelas(ctx context.Context, ref KelasRef) (*domain.Kelas, error) {
	if !ref.given() {
		return nil, nil
	}
	return s.resolveKelas(ctx, ref)
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, domain.Problemf("Format %s tidak valid: '%s'. Gunakan format YYYY-MM-DD", field, value)
	}
	return t, nil
}

// dayOrToday parses value, defaulting to today when empty.
func (s *Service) dayOrToday(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return s.today(), nil
	}
	return parseDate("tanggal", value)
}

// requiredRange parses a mandatory inclusive range.
func requiredRange(r DateRange) (time.Time, time.Time, error) {
	if strings.TrimSpace(r.TanggalMulai) == "" || strings.TrimSpace(r.TanggalAkhir) == "" {
		return time.Time{}, time.Time{}, domain.Problemf("Harus menyertakan tanggal_mulai dan tanggal_akhir")
	}
	from, err := parseDate("tanggal_mulai", r.TanggalMulai)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("tanggal_akhir", r.TanggalAkhir)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, domain.Problemf("tanggal_mulai harus sebelum atau sama dengan tanggal_akhir")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, domain.Problemf("Rentang tanggal maksimal %d hari", maxRangeDays)
	}
	return from, to, nil
}

// windowOrDefault parses an optional range; without one it covers the
// last defaultWindowDays days up to today.
func (s *Service) windowOrDefault(r DateRange) (time.Time, time.Time, error) {
	if strings.TrimSpace(r.TanggalMulai) == "" && strings.TrimSpace(r.TanggalAkhir) == "" {
		to := s.today()
		return to.AddDate(0, 0, -(defaultWindowDays - 1)), to, nil
	}
	return requiredRange(r)
}

// monthYear validates optional bulan/tahun filters.
func monthYear(bulan, tahun int) error {
	if bulan != 0 && (bulan < 1 || bulan > 12) {
		return domain.Problemf("Bulan harus antara 1 sampai 12")
	}
	if tahun != 0 && (tahun < 1900 || tahun > 9999) {
		return domain.Problemf("Tahun tidak valid: %d", tahun)
	}
	return nil
}

// yearRange narrows a store query to tahun when set.
func yearRange(f *domain.AbsensiFilter, tahun int) {
	if tahun == 0 {
		return
	}
	f.From = time.Date(tahun, time.January, 1, 0, 0, 0, 0, time.UTC)
	f.To = time.Date(tahun, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func filterMonth(rows []domain.Absensi, bulan int) []domain.Absensi {
	if bulan == 0 {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if int(r.Tanggal.Month()) == bulan {
			out = append(out, r)
		}
	}
	return out
}

func periode(from, to time.Time) string {
	return from.Format(domain.DateLayout) + " s/d " + to.Format(domain.DateLayout)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func percent(part, total int, places int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)*100/float64(total), places)
}

// Counts is a status distribution as returned to callers.
type Counts struct {
	Hadir     int `json:"hadir"`
	Sakit     int `json:"sakit"`
	Izin      int `json:"izin"`
	Alfa      int `json:"alfa"`
	Terlambat int `json:"terlambat"`
	Total     int `json:"total"`
}

func countsOf(r domain.Rekap) Counts {
	return Counts{Hadir: r.Hadir, Sakit: r.Sakit, Izin: r.Izin, Alfa: r.Alfa, Terlambat: r.Terlambat, Total: r.Total}
}

func rekapOf(rows []domain.Absensi) domain.Rekap {
	var r domain.Rekap
	for _, a := range rows {
		r.Add(a.Status)
	}
	return r
}
