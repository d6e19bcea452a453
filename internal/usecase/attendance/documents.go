package attendance

import (
	"context"
	"fmt"
	"time"

	"absensi-ai/internal/domain"
)

// DocumentResult describes a generated PDF.
type DocumentResult struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	FilePath      string `json:"file_path"`
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	GeneratedAt   string `json:"generated_at"`
	TipeLaporan   string `json:"tipe_laporan"`
}

func documentResult(doc *domain.RenderedDocument, message string) DocumentResult {
	return DocumentResult{
		Status:        "success",
		Message:       message,
		FilePath:      doc.Path,
		FileName:      doc.Name,
		FileSizeBytes: doc.SizeBytes,
		GeneratedAt:   doc.GeneratedAt.Format(time.RFC3339),
		TipeLaporan:   doc.Kind,
	}
}

// SuratPeringatanResult is the outcome of buat_surat_peringatan_alfa.
type SuratPeringatanResult struct {
	DocumentResult
	Siswa             SiswaInfo `json:"siswa"`
	TotalAlfa         int       `json:"total_alfa"`
	TingkatPeringatan int       `json:"tingkat_peringatan"`
	Persentase        float64   `json:"persentase_kehadiran"`
}

// TingkatPeringatan maps an alfa count to a warning level: 1 for one or
// two days, 2 for three to five, 3 beyond that.
func TingkatPeringatan(alfa int) int {
	switch {
	case alfa >= 6:
		return 3
	case alfa >= 3:
		return 2
	default:
		return 1
	}
}

// BuatSuratPeringatanAlfa renders a warning letter for a student with at
// least one alfa record.
func (s *Service) BuatSuratPeringatanAlfa(ctx context.Context, p SiswaRef) (*SuratPeringatanResult, error) {
	v, err := s.resolveSiswa(ctx, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{SiswaID: v.ID})
	if err != nil {
		return nil, err
	}
	var alfa []domain.Absensi
	for _, a := range rows {
		if a.Status.Is(domain.StatusAlfa) {
			alfa = append(alfa, a)
		}
	}
	if len(alfa) == 0 {
		return nil, domain.Problemf("Siswa %s tidak memiliki catatan alfa. Surat peringatan tidak dibuat.", v.Nama)
	}

	rekap := rekapOf(rows)
	tingkat := TingkatPeringatan(len(alfa))
	doc, err := s.docs.RenderWarningLetter(ctx, domain.WarningLetter{
		Sekolah:   s.cfg.School,
		Tanggal:   s.today(),
		Tingkat:   tingkat,
		Siswa:     *v,
		AlfaDates: alfa,
		Rekap:     rekap,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("warning letter generated", "siswa_id", v.ID, "alfa", len(alfa), "tingkat", tingkat)

	return &SuratPeringatanResult{
		DocumentResult: documentResult(doc, fmt.Sprintf(
			"Surat peringatan ke-%d untuk %s berhasil dibuat (%d hari alfa).", tingkat, v.Nama, len(alfa))),
		Siswa:             SiswaInfo{ID: v.ID, Nama: v.Nama, NIS: v.NIS, Kelas: v.Kelas},
		TotalAlfa:         len(alfa),
		TingkatPeringatan: tingkat,
		Persentase:        round(rekap.PersenHadir(), 2),
	}, nil
}

// LaporanAlfaParams are the parameters of buat_laporan_alfa.
type LaporanAlfaParams struct {
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal dalam format YYYY-MM-DD. Default: hari ini"`
}

// LaporanAlfaResult is the outcome of buat_laporan_alfa.
type LaporanAlfaResult struct {
	DocumentResult
	Tanggal   string `json:"tanggal"`
	TotalAlfa int    `json:"total_alfa"`
}

// BuatLaporanAlfa renders the daily alfa report. A day without alfa still
// produces a report saying so.
func (s *Service) BuatLaporanAlfa(ctx context.Context, p LaporanAlfaParams) (*LaporanAlfaResult, error) {
	day, err := s.dayOrToday(p.Tanggal)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{From: day, To: day, Status: domain.StatusAlfa})
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.RenderAlfaReport(ctx, domain.AlfaReport{Sekolah: s.cfg.School, Tanggal: day, Rows: rows})
	if err != nil {
		return nil, err
	}
	return &LaporanAlfaResult{
		DocumentResult: documentResult(doc, fmt.Sprintf(
			"Laporan alfa tanggal %s berhasil dibuat (%d siswa).", domain.FormatTanggal(day), len(rows))),
		Tanggal:   day.Format(domain.DateLayout),
		TotalAlfa: len(rows),
	}, nil
}
