package export

import (
	"fmt"
	"sort"

	"design-desk/request-portal/request-portal-backend/internal/requests"
)

var timelineColumns = []column{
	{Label: "#", Weight: 4},
	{Label: "Date", Weight: 14},
	{Label: "Action", Weight: 16},
	{Label: "From", Weight: 14},
	{Label: "To", Weight: 14},
	{Label: "Actor", Weight: 24},
	{Label: "Comment", Weight: 40},
}

// RequestTimeline renders a request and its audit trail, oldest entry first.
func (e *Exporter) RequestTimeline(view *requests.RequestView) ([]byte, error) {
	if view == nil || view.Request == nil {
		return nil, fmt.Errorf("no request to render")
	}
	req := view.Request
	doc := newDocument(e.pdf)
	doc.title("Design request timeline", req.Title, e.now())

	summary := [][2]string{
		{"Request", req.ID.String()},
		{"Status", req.Status.String()},
		{"Type", req.TypeID},
		{"Priority", string(req.Priority)},
		{"Submitted", req.SubmissionDate.Format(e.pdf.DateFormat)},
	}
	if req.DueDate != nil {
		summary = append(summary, [2]string{"Due", req.DueDate.String()})
	}
	if req.CompletionDate != nil {
		summary = append(summary, [2]string{"Completed", req.CompletionDate.Format(e.pdf.DateFormat)})
	}
	summary = append(summary, [2]string{"Requester", req.RequesterID.String()})
	if req.DesignerID != nil {
		summary = append(summary, [2]string{"Designer", req.DesignerID.String()})
	}
	if req.ApproverID != nil {
		summary = append(summary, [2]string{"Approver", req.ApproverID.String()})
	}
	doc.section("Summary", summary)

	entries := chronological(view.History)
	rows := make([][]string, len(entries))
	for i, h := range entries {
		rows[i] = []string{
			fmt.Sprint(h.Sequence),
			h.ActionDate.Format(e.pdf.DateFormat),
			string(h.Action),
			h.PreviousStatus.String(),
			h.NewStatus.String(),
			h.ActorID.String(),
			h.Comment,
		}
	}
	doc.table(timelineColumns, rows)

	if len(view.Attachments) > 0 {
		doc.pdf.Ln(6)
		files := make([][2]string, len(view.Attachments))
		for i, a := range view.Attachments {
			files[i] = [2]string{a.OriginalName, fmt.Sprintf("%d bytes, %s", a.Size, a.UploadedAt.Format(e.pdf.DateFormat))}
		}
		doc.section("Attachments", files)
	}
	return doc.bytes()
}

func chronological(history []requests.HistoryEntry) []requests.HistoryEntry {
	out := make([]requests.HistoryEntry, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
