package export

import (
	"design-desk/request-portal/request-portal-backend/internal/capacity"
)

var availabilityColumns = []string{
	"Date", "Weekday",
	"Normal used", "Normal total", "Normal remaining",
	"Urgent used", "Urgent total", "Urgent remaining",
}

// AvailabilityWorkbook renders one row per day. Days with no remaining slot
// in either priority are highlighted.
func (e *Exporter) AvailabilityWorkbook(days []capacity.DayAvailability) ([]byte, error) {
	w := newSheetWriter(e.excel)
	if err := w.writeHeader(availabilityColumns); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, len(days))
	for i, d := range days {
		rows[i] = []interface{}{
			d.Date.String(), d.Date.Time().Weekday().String(),
			d.Normal.Used, d.Normal.Total, d.Normal.Remaining,
			d.Urgent.Used, d.Urgent.Total, d.Urgent.Remaining,
		}
	}
	full := func(r int) bool {
		return days[r].Normal.Remaining == 0 || days[r].Urgent.Remaining == 0
	}
	if err := w.writeRows(rows, full); err != nil {
		return nil, err
	}
	return w.bytes()
}
