package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	DateFormat     string     `json:"date_format"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		DateFormat:     "2006-01-02 15:04",
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 10,
		TitleFontSize:  16,
		Margins:        PDFMargins{Left: 15, Right: 15, Top: 20, Bottom: 20},
	}
}

// column is one table column with its share of the printable width.
type column struct {
	Label  string
	Weight float64
}

// document wraps a gofpdf page stream with the table helpers.
type document struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
	tr      func(string) string
}

func newDocument(options PDFOptions) *document {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	d := &document{pdf: pdf, options: options, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(options.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) title(title, subtitle string, generated time.Time) {
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.TitleFontSize)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 10, d.tr(title), "", 1, "C", false, 0, "")
	if subtitle != "" {
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize+2)
		d.pdf.SetTextColor(100, 100, 100)
		d.pdf.CellFormat(0, 8, d.tr(subtitle), "", 1, "C", false, 0, "")
	}
	d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize-1)
	d.pdf.SetTextColor(128, 128, 128)
	d.pdf.CellFormat(0, 6, "Generated: "+generated.Format(d.options.DateFormat), "", 1, "R", false, 0, "")
	d.pdf.Ln(4)
}

// section writes label/value pairs in order.
func (d *document) section(title string, items [][2]string) {
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize+2)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 8, d.tr(title), "", 1, "L", false, 0, "")
	for _, item := range items {
		d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize)
		d.pdf.CellFormat(45, 6, d.tr(item[0]+":"), "", 0, "L", false, 0, "")
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize)
		d.pdf.CellFormat(0, 6, d.tr(item[1]), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(4)
}

func (d *document) widths(columns []column) []float64 {
	pageWidth, _ := d.pdf.GetPageSize()
	available := pageWidth - d.options.Margins.Left - d.options.Margins.Right
	total := 0.0
	for _, c := range columns {
		total += c.Weight
	}
	out := make([]float64, len(columns))
	for i, c := range columns {
		out[i] = available * c.Weight / total
	}
	return out
}

func (d *document) tableHeader(columns []column, widths []float64) {
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.HeaderFontSize)
	d.pdf.SetFillColor(d.options.HeaderColor.R, d.options.HeaderColor.G, d.options.HeaderColor.B)
	d.pdf.SetTextColor(255, 255, 255)
	for i, c := range columns {
		d.pdf.CellFormat(widths[i], 8, d.tr(c.Label), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
}

// table writes rows, repeating the header on every new page. Long cells are
// truncated to their column.
func (d *document) table(columns []column, rows [][]string) {
	widths := d.widths(columns)
	d.tableHeader(columns, widths)
	_, pageHeight := d.pdf.GetPageSize()

	for i, row := range rows {
		if d.pdf.GetY()+8 > pageHeight-d.options.Margins.Bottom {
			d.pdf.AddPage()
			d.tableHeader(columns, widths)
		}
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize)
		d.pdf.SetTextColor(0, 0, 0)
		if d.options.AlternateRows && i%2 == 1 {
			d.pdf.SetFillColor(d.options.AlternateColor.R, d.options.AlternateColor.G, d.options.AlternateColor.B)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		for j, val := range row {
			d.pdf.CellFormat(widths[j], 7, d.fit(d.tr(val), widths[j]-2), "1", 0, "L", true, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) fit(s string, width float64) string {
	if d.pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && d.pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
