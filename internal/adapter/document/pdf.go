// Package document renders attendance letters and reports as PDF files.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"absensi-ai/internal/domain"
)

const (
	KindWarningLetter = "surat_peringatan"
	KindAlfaReport    = "laporan_alfa"

	font         = "Helvetica"
	pageMarginMM = 10.0
	signIndentMM = 120.0
	defaultNomor = "......./......./......."
)

// PDFRenderer implements domain.DocumentRenderer with fpdf.
type PDFRenderer struct {
	outputDir string
	logger    *slog.Logger
	now       func() time.Time
}

var _ domain.DocumentRenderer = (*PDFRenderer)(nil)

// NewPDFRenderer creates a renderer writing into outputDir.
func NewPDFRenderer(outputDir string, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{outputDir: outputDir, logger: logger, now: time.Now}
}

// RenderWarningLetter writes a parent notification letter listing the
// student's alfa days and attendance recap.
func (r *PDFRenderer) RenderWarningLetter(ctx context.Context, l domain.WarningLetter) (*domain.RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf, tr := newLetterhead(l.Sekolah)
	tanggal := l.Tanggal
	if tanggal.IsZero() {
		tanggal = r.now()
	}

	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 6, tr(kota(l.Sekolah)+", "+domain.FormatTanggal(tanggal)), "", 1, "R", false, 0, "")
	pdf.Ln(2)

	nomor := l.Nomor
	if nomor == "" {
		nomor = defaultNomor
	}
	labelRow(pdf, tr, 30, 6, "Nomor", nomor, "")
	labelRow(pdf, tr, 30, 6, "Lampiran", "-", "")
	labelRow(pdf, tr, 30, 6, "Perihal", "Pemberitahuan Ketidakhadiran Siswa", "B")
	pdf.Ln(4)

	ortu := l.Siswa.NamaOrangTua
	if ortu == "" {
		ortu = "-"
	}
	pdf.CellFormat(0, 6, "Kepada Yth.", "", 1, "", false, 0, "")
	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(0, 6, tr("Bapak/Ibu "+ortu), "", 1, "", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 6, "Orang Tua/Wali Siswa", "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, "di Tempat", "", 1, "", false, 0, "")
	pdf.Ln(4)

	pdf.CellFormat(0, 7, "Dengan hormat,", "", 1, "", false, 0, "")
	pdf.Ln(2)
	pdf.MultiCell(0, 7, "Melalui surat ini, kami sampaikan bahwa putra/putri Bapak/Ibu dengan data sebagai berikut:", "", "", false)
	pdf.Ln(2)

	labelRow(pdf, tr, 40, 7, "   Nama", orDash(l.Siswa.Nama), "B")
	labelRow(pdf, tr, 40, 7, "   NIS", orDash(l.Siswa.NIS), "")
	labelRow(pdf, tr, 40, 7, "   Kelas", orDash(l.Siswa.Kelas), "")
	pdf.Ln(2)

	pdf.MultiCell(0, 7, fmt.Sprintf(
		"Tercatat tidak hadir tanpa keterangan (Alfa) sebanyak %d hari pada tanggal-tanggal berikut:",
		len(l.AlfaDates)), "", "", false)
	pdf.Ln(2)

	tableHeader(pdf, []float64{15, 60, 40}, []string{"No", "Tanggal", "Status"})
	pdf.SetFont(font, "", 10)
	for i, a := range l.AlfaDates {
		pdf.CellFormat(15, 7, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 7, domain.FormatTanggal(a.Tanggal), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, string(domain.StatusAlfa), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(0, 7, "Rekap Kehadiran:", "", 1, "", false, 0, "")
	cols := []float64{38, 38, 38, 38, 38}
	tableHeader(pdf, cols, []string{"Hadir", "Sakit", "Izin", "Alfa", "% Hadir"})
	pdf.SetFont(font, "", 10)
	values := []string{
		strconv.Itoa(l.Rekap.Hadir),
		strconv.Itoa(l.Rekap.Sakit),
		strconv.Itoa(l.Rekap.Izin),
		strconv.Itoa(l.Rekap.Alfa),
		strconv.FormatFloat(l.Rekap.PersenHadir(), 'f', 1, 64) + "%",
	}
	for i, v := range values {
		ln := 0
		if i == len(values)-1 {
			ln = 1
		}
		pdf.CellFormat(cols[i], 7, v, "1", ln, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont(font, "", 11)
	if l.Tingkat > 0 {
		pdf.MultiCell(0, 7, fmt.Sprintf("Surat ini merupakan Surat Peringatan ke-%d.", l.Tingkat), "", "", false)
		pdf.Ln(2)
	}
	pdf.MultiCell(0, 7, "Kami mengharapkan perhatian dan kerja sama Bapak/Ibu untuk memantau "+
		"kehadiran putra/putri di sekolah. Apabila ada kendala, silakan "+
		"menghubungi wali kelas atau pihak sekolah.", "", "", false)
	pdf.Ln(2)
	pdf.CellFormat(0, 7, "Atas perhatian dan kerja samanya, kami ucapkan terima kasih.", "", 1, "", false, 0, "")
	pdf.Ln(8)

	signature(pdf, tr, "Hormat kami,", l.Sekolah)

	name := fmt.Sprintf("%s_%s_%s.pdf", KindWarningLetter, fileSafe(l.Siswa.Nama), tanggal.Format("20060102"))
	return r.write(pdf, name, KindWarningLetter)
}

// RenderAlfaReport writes the daily list of students marked alfa.
func (r *PDFRenderer) RenderAlfaReport(ctx context.Context, rep domain.AlfaReport) (*domain.RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf, tr := newLetterhead(rep.Sekolah)

	pdf.SetFont(font, "B", 14)
	pdf.CellFormat(0, 8, "LAPORAN SISWA TIDAK HADIR (ALFA)", "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 7, "Tanggal: "+domain.FormatTanggal(rep.Tanggal), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	if len(rep.Rows) == 0 {
		pdf.SetFont(font, "I", 11)
		pdf.CellFormat(0, 10, "Tidak ada siswa yang alfa pada tanggal ini.", "", 1, "C", false, 0, "")
	} else {
		tableHeader(pdf, []float64{15, 70, 40, 55}, []string{"No", "Nama Siswa", "NIS", "Kelas"})
		pdf.SetFont(font, "", 10)
		for i, a := range rep.Rows {
			pdf.CellFormat(15, 7, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
			pdf.CellFormat(70, 7, tr(orDash(a.NamaSiswa)), "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 7, orDash(a.NIS), "1", 0, "C", false, 0, "")
			pdf.CellFormat(55, 7, tr(orDash(a.NamaKelas)), "1", 1, "C", false, 0, "")
		}
		pdf.Ln(4)
		pdf.SetFont(font, "B", 11)
		pdf.CellFormat(0, 7, fmt.Sprintf("Total siswa alfa: %d orang", len(rep.Rows)), "", 1, "", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 6, tr(kota(rep.Sekolah)+", "+domain.FormatTanggal(r.now())), "", 1, "R", false, 0, "")
	pdf.Ln(2)
	signature(pdf, tr, "Mengetahui,", rep.Sekolah)

	name := fmt.Sprintf("%s_%s.pdf", KindAlfaReport, rep.Tanggal.Format("20060102"))
	return r.write(pdf, name, KindAlfaReport)
}

func (r *PDFRenderer) write(pdf *fpdf.Fpdf, name, kind string) (*domain.RenderedDocument, error) {
	op := "document.Render"
	if err := pdf.Error(); err != nil {
		return nil, domain.NewSubSystemError("document", op, domain.ErrRenderFailed, err.Error())
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, domain.NewSubSystemError("document", op, domain.ErrRenderFailed, err.Error())
	}
	path := filepath.Join(r.outputDir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return nil, domain.NewSubSystemError("document", op, domain.ErrRenderFailed, err.Error())
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewSubSystemError("document", op, domain.ErrRenderFailed, err.Error())
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc := &domain.RenderedDocument{
		Path:        abs,
		Name:        name,
		SizeBytes:   info.Size(),
		GeneratedAt: r.now(),
		Kind:        kind,
	}
	r.logger.Info("document rendered", "kind", kind, "path", abs, "bytes", doc.SizeBytes)
	return doc, nil
}

// newLetterhead starts an A4 document whose pages carry the school
// letterhead and a "Halaman n/{nb}" footer.
func newLetterhead(school domain.SchoolInfo) (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AliasNbPages("")

	nama := school.Nama
	if nama == "" {
		nama = "SMK Smart"
	}
	detail := school.Alamat
	if school.Telepon != "" {
		detail += "  |  Telp: " + school.Telepon
	}
	if school.Email != "" {
		detail += "  |  Email: " + school.Email
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(font, "B", 16)
		pdf.CellFormat(0, 8, tr(nama), "", 1, "C", false, 0, "")
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 5, tr(detail), "", 1, "C", false, 0, "")

		y := pdf.GetY()
		pdf.SetLineWidth(0.8)
		pdf.Line(pageMarginMM, y+2, 200, y+2)
		pdf.SetLineWidth(0.2)
		pdf.Line(pageMarginMM, y+3.5, 200, y+3.5)
		pdf.Ln(8)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Halaman %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return pdf, tr
}

func labelRow(pdf *fpdf.Fpdf, tr func(string) string, labelW, h float64, label, value, valueStyle string) {
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(labelW, h, label, "", 0, "", false, 0, "")
	pdf.CellFormat(5, h, ":", "", 0, "", false, 0, "")
	pdf.SetFont(font, valueStyle, 11)
	pdf.CellFormat(0, h, tr(value), "", 1, "", false, 0, "")
	pdf.SetFont(font, "", 11)
}

func tableHeader(pdf *fpdf.Fpdf, widths []float64, titles []string) {
	pdf.SetFont(font, "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for i, t := range titles {
		ln := 0
		if i == len(titles)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 7, t, "1", ln, "C", true, 0, "")
	}
}

func signature(pdf *fpdf.Fpdf, tr func(string) string, opening string, school domain.SchoolInfo) {
	kepala := school.KepalaSekolah
	if kepala == "" {
		kepala = "Kepala Sekolah"
	}
	pdf.SetFont(font, "", 11)
	pdf.SetX(pageMarginMM + signIndentMM)
	pdf.CellFormat(0, 6, opening, "", 1, "", false, 0, "")
	pdf.SetX(pageMarginMM + signIndentMM)
	pdf.CellFormat(0, 6, "Kepala Sekolah", "", 1, "", false, 0, "")
	pdf.Ln(20)
	pdf.SetX(pageMarginMM + signIndentMM)
	pdf.SetFont(font, "BU", 11)
	pdf.CellFormat(0, 6, tr(kepala), "", 1, "", false, 0, "")
	if school.NIPKepala != "" {
		pdf.SetX(pageMarginMM + signIndentMM)
		pdf.SetFont(font, "", 10)
		pdf.CellFormat(0, 5, "NIP. "+school.NIPKepala, "", 1, "", false, 0, "")
	}
}

func kota(s domain.SchoolInfo) string {
	if s.Kota == "" {
		return "Sintang"
	}
	return s.Kota
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// fileSafe turns a student name into a file name fragment.
func fileSafe(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "siswa"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '\\' || r == ':' || r == '.' || r < ' ':
			return -1
		}
		return r
	}, s)
}
