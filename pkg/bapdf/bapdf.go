// Package bapdf renders a berita acara penghapusan barang (minutes of asset disposal)
// as a fixed-layout A4 PDF.
package bapdf

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// Document is the fully joined data printed on the minutes.
type Document struct {
	Hari    string
	Tanggal int
	Bulan   string
	Tahun   int
	Tempat  string
	Items   []Item
	// Signers holds the three signature slots; a nil slot is left out of the page.
	Signers [3]*Signer
	// CreatedAt stamps the PDF metadata; zero means now.
	CreatedAt time.Time
}

// Item is one disposed asset row.
type Item struct {
	Spesifikasi string
	Tahun       string
	Umur        *int64
	SumberDana  string
	Alasan      string
	Jumlah      int
}

// Signer is an approving official. Image, when set, must be PNG data.
type Signer struct {
	Jabatan string
	Nama    string
	Image   []byte
}

const (
	margin      = 30.0
	bodySize    = 10.0
	bodyLineH   = 13.0
	cellSize    = 9.0
	cellLineH   = 11.0
	cellPad     = 4.0
	minRowH     = 22.0
	minHeaderH  = 25.0
	sigImgW     = 80.0
	sigImgH     = 40.0
	sigLineH    = 12.0
	sigBoxH     = sigLineH + sigImgH + 4 + sigLineH
	sigBlockGap = 10.0
	sigTopGap   = 20.0
	infoIndent  = 15.0
	infoLabelW  = 90.0
)

const (
	paraOpening = "Pada hari ini telah dilaksanakan penghapusan (pemusnahan) barang milik sekolah berupa sarana dan " +
		"prasarana dengan rincian sebagai berikut:"
	paraFinding = "Barang-barang tersebut di atas telah diperiksa dan dinyatakan mengalami kerusakan sehingga tidak dapat " +
		"digunakan lagi dan harus dihapus dari daftar inventaris barang milik sekolah."
	paraClosing = "Demikian berita acara ini dibuat dengan sebenarnya untuk dapat dipergunakan sebagaimana mestinya."
	indent      = "        "
)

type column struct {
	title string
	pct   float64
	align string
}

var columns = []column{
	{"No", 0.06, "C"},
	{"Spesifikasi Barang", 0.30, "L"},
	{"Tahun", 0.09, "C"},
	{"Umur\n(Tahun)", 0.11, "C"},
	{"Sumber Dana", 0.18, "C"},
	{"Alasan", 0.16, "C"},
	{"Jumlah", 0.10, "C"},
}

// Render writes the PDF for doc to w.
func Render(w io.Writer, doc Document) error {
	pdf, err := build(doc)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

type renderer struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64 // printable width
	pageH float64
}

func build(doc Document) (*fpdf.Fpdf, error) {
	r := newRenderer(doc)
	pdf := r.pdf
	pdf.AddPage()
	r.header()
	r.info(doc)
	r.paragraph(paraOpening)
	r.table(doc.Items)
	r.paragraph(paraFinding)
	r.paragraph(paraClosing)
	r.signatures(doc.Signers)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func newRenderer(doc Document) *renderer {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(fmt.Sprintf("Berita Acara Penghapusan Barang %d %s %d", doc.Tanggal, doc.Bulan, doc.Tahun), true)
	pdf.SetCreator("siphp", true)
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)

	pageW, pageH := pdf.GetPageSize()
	return &renderer{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		width: pageW - 2*margin,
		pageH: pageH,
	}
}

// ensureSpace starts a new page when h points do not fit above the bottom margin.
func (r *renderer) ensureSpace(h float64) bool {
	if r.pdf.GetY()+h <= r.pageH-margin {
		return false
	}
	r.pdf.AddPage()
	return true
}

func (r *renderer) header() {
	p := r.pdf
	p.SetFont("Times", "B", 14)
	p.CellFormat(0, 18, "BERITA ACARA", "", 1, "C", false, 0, "")
	p.SetFont("Times", "U", 12)
	p.CellFormat(0, 16, "PENGHAPUSAN BARANG", "", 1, "C", false, 0, "")
	p.Ln(15)
}

func (r *renderer) info(doc Document) {
	p := r.pdf
	p.SetFont("Times", "", bodySize)
	rows := [][2]string{
		{"Hari/Tanggal", fmt.Sprintf(": %s, %d %s %d", doc.Hari, doc.Tanggal, doc.Bulan, doc.Tahun)},
		{"Tempat", ": " + doc.Tempat},
	}
	for _, row := range rows {
		p.SetX(margin + infoIndent)
		p.CellFormat(infoLabelW, bodyLineH, r.tr(row[0]), "", 0, "L", false, 0, "")
		p.MultiCell(r.width-infoIndent-infoLabelW, bodyLineH, r.tr(row[1]), "", "L", false)
		p.Ln(3)
	}
	p.Ln(9)
}

func (r *renderer) paragraph(text string) {
	p := r.pdf
	p.SetFont("Times", "", bodySize)
	txt := r.tr(indent + text)
	lines := p.SplitLines([]byte(txt), r.width)
	r.ensureSpace(float64(len(lines)) * bodyLineH)
	p.MultiCell(r.width, bodyLineH, txt, "", "J", false)
	p.Ln(10)
}

func (r *renderer) table(items []Item) {
	p := r.pdf
	r.tableHeader(false)
	for i, it := range items {
		cells := []string{
			strconv.Itoa(i + 1),
			orDash(it.Spesifikasi),
			orDash(it.Tahun),
			umurText(it.Umur),
			orDash(it.SumberDana),
			orDash(it.Alasan),
			strconv.Itoa(it.Jumlah),
		}
		p.SetFont("Times", "", cellSize)
		h := r.rowHeight(cells, minRowH)
		if r.ensureSpace(h) {
			r.tableHeader(true)
			p.SetFont("Times", "", cellSize)
		}
		r.row(cells, h, false)
	}
	p.Ln(12)
}

func (r *renderer) tableHeader(continued bool) {
	p := r.pdf
	if continued {
		p.SetFont("Times", "I", cellSize)
		p.CellFormat(0, cellLineH, r.tr("(lanjutan)"), "", 1, "R", false, 0, "")
	}
	p.SetFont("Times", "B", cellSize)
	titles := make([]string, len(columns))
	for i, col := range columns {
		titles[i] = col.title
	}
	h := r.rowHeight(titles, minHeaderH)
	r.ensureSpace(h + minRowH)
	p.SetFillColor(0xe0, 0xe0, 0xe0)
	r.row(titles, h, true)
}

func (r *renderer) rowHeight(cells []string, minH float64) float64 {
	maxLines := 1
	for i, txt := range cells {
		n := len(r.pdf.SplitLines([]byte(r.tr(txt)), r.width*columns[i].pct))
		if n > maxLines {
			maxLines = n
		}
	}
	h := float64(maxLines)*cellLineH + 2*cellPad
	if h < minH {
		h = minH
	}
	return h
}

func (r *renderer) row(cells []string, h float64, fill bool) {
	p := r.pdf
	style := "D"
	if fill {
		style = "FD"
	}
	x0, y0 := margin, p.GetY()
	x := x0
	for i, txt := range cells {
		w := r.width * columns[i].pct
		p.Rect(x, y0, w, h, style)
		lines := p.SplitLines([]byte(r.tr(txt)), w)
		top := y0 + (h-float64(len(lines))*cellLineH)/2
		for j, line := range lines {
			p.SetXY(x, top+float64(j)*cellLineH)
			p.CellFormat(w, cellLineH, string(line), "", 0, columns[i].align, false, 0, "")
		}
		x += w
	}
	p.SetXY(x0, y0+h)
}

func (r *renderer) signatures(signers [3]*Signer) {
	p := r.pdf
	const padX = 25.0
	sideW := r.width*0.45 - padX
	centerW := r.width * 0.5

	rowH := max(r.signerHeight(signers[0], sideW), r.signerHeight(signers[1], sideW))
	bottomH := sigLineH + r.signerHeight(signers[2], centerW)
	r.ensureSpace(sigTopGap + rowH + sigBlockGap + bottomH)
	p.Ln(sigTopGap)

	y := p.GetY()
	if signers[0] != nil {
		r.signer(0, signers[0], margin+padX, y, sideW, "")
	}
	if signers[1] != nil {
		r.signer(1, signers[1], margin+r.width-sideW-padX, y, sideW, "")
	}

	y += rowH + sigBlockGap
	if signers[2] != nil {
		r.signer(2, signers[2], margin+(r.width-centerW)/2, y, centerW, "MENGETAHUI,")
	}
}

// lines splits txt into the lines that fit width w in the current font.
func (r *renderer) lines(txt string, w float64) [][]byte {
	out := r.pdf.SplitLines([]byte(r.tr(txt)), w)
	if len(out) == 0 {
		return [][]byte{nil}
	}
	return out
}

// signerHeight is the height of one signature block of width w, heading excluded.
func (r *renderer) signerHeight(s *Signer, w float64) float64 {
	if s == nil {
		return sigBoxH
	}
	p := r.pdf
	p.SetFont("Times", "", cellSize)
	n := len(r.lines(s.Jabatan, w))
	p.SetFont("Times", "BU", cellSize)
	n += len(r.lines(s.Nama, w))
	return max(sigBoxH, float64(n)*sigLineH+2+sigImgH+2)
}

func (r *renderer) signer(slot int, s *Signer, x, y, w float64, heading string) {
	p := r.pdf
	p.SetXY(x, y)
	if heading != "" {
		p.SetFont("Times", "B", bodySize)
		p.CellFormat(w, sigLineH, r.tr(heading), "", 2, "C", false, 0, "")
	}
	p.SetFont("Times", "", cellSize)
	for _, line := range r.lines(s.Jabatan, w) {
		p.SetX(x)
		p.CellFormat(w, sigLineH, string(line), "", 2, "C", false, 0, "")
	}

	imgTop := p.GetY() + 2
	if len(s.Image) > 0 {
		r.image(fmt.Sprintf("ttd-%d", slot), s.Image, x, imgTop, w)
	}
	p.SetXY(x, imgTop+sigImgH+2)
	p.SetFont("Times", "BU", cellSize)
	for _, line := range r.lines(s.Nama, w) {
		p.SetX(x)
		p.CellFormat(w, sigLineH, string(line), "", 2, "C", false, 0, "")
	}
}

// image draws a PNG fitted into the signature box. An image fpdf cannot parse is
// skipped so a bad upload never blocks the document.
func (r *renderer) image(name string, data []byte, x, y, boxW float64) {
	p := r.pdf
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := p.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if p.Err() || info == nil || info.Width() <= 0 || info.Height() <= 0 {
		slog.Warn("signature image skipped", "image", name, "error", p.Error())
		p.ClearError()
		return
	}
	scale := sigImgW / info.Width()
	if s := sigImgH / info.Height(); s < scale {
		scale = s
	}
	w, h := info.Width()*scale, info.Height()*scale
	p.ImageOptions(name, x+(boxW-w)/2, y+(sigImgH-h)/2, w, h, false, opts, 0, "")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// umurText prints an unknown or zero age as "-".
func umurText(u *int64) string {
	if u == nil || *u == 0 {
		return "-"
	}
	return strconv.FormatInt(*u, 10)
}
