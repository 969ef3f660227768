// Package export renders availability calendars as spreadsheets and request
// timelines as PDF documents.
package export

import "time"

// Exporter renders availability workbooks and request timelines.
type Exporter struct {
	excel ExcelOptions
	pdf   PDFOptions
	now   func() time.Time
}

func NewExporter(excel ExcelOptions, pdf PDFOptions) *Exporter {
	return &Exporter{excel: excel, pdf: pdf, now: time.Now}
}
