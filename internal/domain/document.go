package domain

import (
	"context"
	"fmt"
	"time"
)

// SchoolInfo is the letterhead data printed on generated documents.
type SchoolInfo struct {
	Nama          string
	Alamat        string
	Telepon       string
	Email         string
	Kota          string
	KepalaSekolah string
	NIPKepala     string
}

// WarningLetter is the data for a parent notification about alfa days.
type WarningLetter struct {
	Sekolah   SchoolInfo
	Nomor     string
	Tanggal   time.Time
	Tingkat   int
	Siswa     Siswa
	AlfaDates []Absensi
	Rekap     Rekap
}

// AlfaReport lists every student marked alfa on one day.
type AlfaReport struct {
	Sekolah SchoolInfo
	Tanggal time.Time
	Rows    []Absensi
}

// RenderedDocument describes a file produced by a DocumentRenderer.
type RenderedDocument struct {
	Path        string
	Name        string
	SizeBytes   int64
	GeneratedAt time.Time
	Kind        string
}

// DocumentRenderer turns report data into persisted files.
type DocumentRenderer interface {
	RenderWarningLetter(ctx context.Context, letter WarningLetter) (*RenderedDocument, error)
	RenderAlfaReport(ctx context.Context, report AlfaReport) (*RenderedDocument, error)
}

var namaBulan = [...]string{
	"", "Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// NamaBulan returns the Indonesian month name.
func NamaBulan(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return namaBulan[m]
}

// FormatTanggal formats t as "2 Januari 2026".
func FormatTanggal(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), NamaBulan(t.Month()), t.Year())
}

var namaHari = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

// NamaHari returns the Indonesian weekday name.
func NamaHari(d time.Weekday) string { return namaHari[d%7] }
