package document

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
)

var school = domain.SchoolInfo{
	Nama:          "SMK Negeri 1 Sintang",
	Alamat:        "Jl. Pendidikan No. 1",
	Telepon:       "0565-21234",
	Kota:          "Sintang",
	KepalaSekolah: "Drs. Yohanes Ambo",
	NIPKepala:     "196801011990031001",
}

func newTestRenderer(t *testing.T) *PDFRenderer {
	t.Helper()
	r := NewPDFRenderer(filepath.Join(t.TempDir(), "output"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return r
}

func assertPDF(t *testing.T, doc *domain.RenderedDocument) {
	t.Helper()
	data, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "file should start with a PDF header")
	assert.Equal(t, int64(len(data)), doc.SizeBytes)
	assert.True(t, filepath.IsAbs(doc.Path))
}

func TestRenderWarningLetter(t *testing.T) {
	r := newTestRenderer(t)
	day := func(d int) domain.Absensi {
		return domain.Absensi{Tanggal: time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC), Status: domain.StatusAlfa}
	}
	letter := domain.WarningLetter{
		Sekolah:   school,
		Tanggal:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Tingkat:   2,
		Siswa:     domain.Siswa{Nama: "Rudi Hermawan", NIS: "2402003", NamaOrangTua: "Hermawan", Kelas: "X TKJ 1"},
		AlfaDates: []domain.Absensi{day(3), day(4), day(5)},
		Rekap:     domain.Rekap{Hadir: 17, Alfa: 3, Total: 20},
	}

	doc, err := r.RenderWarningLetter(context.Background(), letter)
	require.NoError(t, err)
	assert.Equal(t, "surat_peringatan_Rudi_Hermawan_20260310.pdf", doc.Name)
	assert.Equal(t, KindWarningLetter, doc.Kind)
	assert.Equal(t, r.now(), doc.GeneratedAt)
	assertPDF(t, doc)
}

func TestRenderWarningLetterManyDatesSpansPages(t *testing.T) {
	r := newTestRenderer(t)
	var dates []domain.Absensi
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 40 {
		dates = append(dates, domain.Absensi{Tanggal: start.AddDate(0, 0, i), Status: domain.StatusAlfa})
	}
	doc, err := r.RenderWarningLetter(context.Background(), domain.WarningLetter{
		Sekolah:   school,
		Siswa:     domain.Siswa{Nama: "Budi Santoso"},
		AlfaDates: dates,
		Rekap:     domain.Rekap{Alfa: 40, Total: 40},
	})
	require.NoError(t, err)
	// Zero letter date falls back to the renderer clock.
	assert.Equal(t, "surat_peringatan_Budi_Santoso_20260310.pdf", doc.Name)
	assertPDF(t, doc)
}

func TestRenderAlfaReport(t *testing.T) {
	r := newTestRenderer(t)
	tanggal := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	t.Run("with rows", func(t *testing.T) {
		doc, err := r.RenderAlfaReport(context.Background(), domain.AlfaReport{
			Sekolah: school,
			Tanggal: tanggal,
			Rows: []domain.Absensi{
				{NamaSiswa: "Rudi Hermawan", NIS: "2402003", NamaKelas: "X TKJ 1"},
				{NamaSiswa: "Stéfanus Anyam", NamaKelas: "X TKJ 1"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "laporan_alfa_20260309.pdf", doc.Name)
		assert.Equal(t, KindAlfaReport, doc.Kind)
		assertPDF(t, doc)
	})

	t.Run("empty", func(t *testing.T) {
		doc, err := r.RenderAlfaReport(context.Background(), domain.AlfaReport{Sekolah: school, Tanggal: tanggal})
		require.NoError(t, err)
		assertPDF(t, doc)
	})
}

func TestRenderCancelled(t *testing.T) {
	r := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RenderAlfaReport(ctx, domain.AlfaReport{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.RenderWarningLetter(ctx, domain.WarningLetter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	r := NewPDFRenderer(filepath.Join(blocker, "output"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := r.RenderAlfaReport(context.Background(), domain.AlfaReport{Tanggal: time.Now()})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "Budi_Santoso", fileSafe(" Budi Santoso "))
	assert.Equal(t, "siswa", fileSafe(""))
	assert.Equal(t, "a_b", fileSafe("a/ b"))
}
