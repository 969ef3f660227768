package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures workbook rendering
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	AutoWidth    bool              `json:"auto_width"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
	// Highlight styles rows for which HighlightRow returns true.
	Highlight *ExcelStyleConfig `json:"highlight,omitempty"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default workbook options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Availability",
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "center",
			Border:    true,
		},
		Highlight: &ExcelStyleConfig{
			FontSize:  11,
			FillColor: "F8CBAD",
			Alignment: "center",
			Border:    true,
		},
	}
}

// sheetWriter writes one table to one sheet.
type sheetWriter struct {
	file    *excelize.File
	options ExcelOptions
}

func newSheetWriter(options ExcelOptions) *sheetWriter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)
	return &sheetWriter{file: file, options: options}
}

func (w *sheetWriter) writeHeader(columns []string) error {
	sheet := w.options.SheetName
	styleID, err := w.createStyle(w.options.HeaderStyle)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := w.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		if styleID > 0 {
			w.file.SetCellStyle(sheet, cell, cell, styleID)
		}
	}

	if w.options.FreezeHeader {
		w.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// writeRows writes rows below the header. highlight marks rows that get the
// highlight style instead of the data style.
func (w *sheetWriter) writeRows(rows [][]interface{}, highlight func(row int) bool) error {
	sheet := w.options.SheetName
	dataStyle, err := w.createStyle(w.options.DataStyle)
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}
	highlightStyle, err := w.createStyle(w.options.Highlight)
	if err != nil {
		return fmt.Errorf("failed to create highlight style: %w", err)
	}

	widths := make(map[int]float64)
	columns := 0
	for r, row := range rows {
		style := dataStyle
		if highlight != nil && highlightStyle > 0 && highlight(r) {
			style = highlightStyle
		}
		if len(row) > columns {
			columns = len(row)
		}
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := w.file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if style > 0 {
				w.file.SetCellStyle(sheet, cell, cell, style)
			}
			if width := float64(len(fmt.Sprintf("%v", val))) * 1.2; width > widths[c] {
				widths[c] = width
			}
		}
	}

	if w.options.AutoFilter && len(rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(columns, len(rows)+1)
		w.file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}

	if w.options.AutoWidth {
		for c, width := range widths {
			col, _ := excelize.ColumnNumberToName(c + 1)
			// Min width 10, max width 50
			width = min(max(width, 10), 50)
			w.file.SetColWidth(sheet, col, col, width)
		}
	}
	return nil
}

func (w *sheetWriter) bytes() ([]byte, error) {
	defer w.file.Close()
	var buf bytes.Buffer
	if err := w.file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// createStyle returns 0 for a nil config.
func (w *sheetWriter) createStyle(config *ExcelStyleConfig) (int, error) {
	if config == nil {
		return 0, nil
	}
	style := &excelize.Style{
		Font: &excelize.Font{Bold: config.FontBold, Size: float64(config.FontSize), Color: config.FontColor},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return w.file.NewStyle(style)
}
