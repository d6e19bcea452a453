package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates crossing the tool boundary.
const DateLayout = "2006-01-02"

// Status is an attendance status as stored in the absensi table.
type Status string

const (
	StatusHadir     Status = "Hadir"
	StatusIzin      Status = "Izin"
	StatusSakit     Status = "Sakit"
	StatusAlfa      Status = "Alfa"
	StatusTerlambat Status = "Terlambat"
)

// AllStatuses lists statuses in report order.
var AllStatuses = []Status{StatusHadir, StatusSakit, StatusIzin, StatusAlfa, StatusTerlambat}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Is reports whether s equals other ignoring case. Rows written by older
// clients mix "hadir" and "Hadir".
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// Metode is the method a student used to check in.
type Metode string

const (
	MetodeGPS             Metode = "gps"
	MetodeManual          Metode = "manual"
	MetodeQRCode          Metode = "qr_code"
	MetodeFaceRecognition Metode = "face_recognition"
)

// Siswa is a student with its active class placement, if any.
type Siswa struct {
	ID           int64
	Nama         string
	NIS          string
	Status       string
	NamaOrangTua string
	KelasID      int64
	Kelas        string
}

// Kelas is a class (rombongan belajar).
type Kelas struct {
	ID          int64
	Nama        string
	Tingkat     int
	Jurusan     string
	WaliKelas   string
	JumlahSiswa int
}

// Absensi is one attendance row joined with student and class names.
type Absensi struct {
	ID         int64
	SiswaID    int64
	KelasID    int64
	NamaSiswa  string
	NIS        string
	NamaKelas  string
	Tanggal    time.Time
	Status     Status
	WaktuAbsen string // HH:MM:SS, empty when not recorded
	Metode     string
	Latitude   *float64
	Longitude  *float64
	JarakMeter *float64
	Keterangan string
}

// Date returns the attendance date in DateLayout.
func (a Absensi) Date() string { return a.Tanggal.Format(DateLayout) }

// AbsensiFilter narrows ListAbsensi. Zero values mean "no constraint".
type AbsensiFilter struct {
	SiswaID       int64
	KelasID       int64
	From          time.Time
	To            time.Time
	Status        Status
	ExcludeStatus Status
	Tingkat       int
	Jurusan       string
	NewestFirst   bool
	Limit         int
}

// AttendanceStore is the read side of the attendance database.
type AttendanceStore interface {
	SearchSiswa(ctx context.Context, nama string, limit int) ([]Siswa, error)
	GetSiswa(ctx context.Context, id int64) (*Siswa, error)
	ListSiswaByKelas(ctx context.Context, kelasID int64) ([]Siswa, error)
	SearchKelas(ctx context.Context, nama string, limit int) ([]Kelas, error)
	GetKelas(ctx context.Context, id int64) (*Kelas, error)
	ListKelas(ctx context.Context, tingkat int, jurusan string) ([]Kelas, error)
	ListAbsensi(ctx context.Context, f AbsensiFilter) ([]Absensi, error)
	Ping(ctx context.Context) error
}

// Rekap counts statuses over a set of attendance rows.
type Rekap struct {
	Hadir     int
	Sakit     int
	Izin      int
	Alfa      int
	Terlambat int
	Total     int
}

// Add counts one status.
func (r *Rekap) Add(s Status) {
	r.Total++
	switch {
	case s.Is(StatusHadir):
		r.Hadir++
	case s.Is(StatusSakit):
		r.Sakit++
	case s.Is(StatusIzin):
		r.Izin++
	case s.Is(StatusAlfa):
		r.Alfa++
	case s.Is(StatusTerlambat):
		r.Terlambat++
	}
}

// PersenHadir returns hadir/total as a percentage, 0 for an empty rekap.
func (r Rekap) PersenHadir() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Hadir) * 100 / float64(r.Total)
}

// Problem is a caller-correctable condition such as an ambiguous name.
// Operations return it as an error; the tool layer hands it to the model
// as an ordinary result, serialized as {"error": "..."}.
type Problem struct {
	Message string `json:"error"`
}

func (p Problem) Error() string { return p.Message }

// Problemf builds a Problem from a format string.
func Problemf(format string, args ...any) Problem {
	return Problem{Message: fmt.Sprintf(format, args...)}
}
