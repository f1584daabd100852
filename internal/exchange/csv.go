// Package exchange moves task collections across the system boundary: the
// flat CSV format for review-before-merge import, and a YAML backup that
// keeps history and the completion ledger.
package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// Columns is the fixed CSV column order.
var Columns = []string{
	"id", "title", "description", "urgency", "importance", "status", "date", "frequency",
	"createdAt", "updatedAt", "completedAt", "recurrenceEndedAt",
}

// Export writes the collection as CSV with a header row. Timestamps are
// epoch milliseconds; unset ones are empty. History and the completion
// ledger are not exported.
func Export(w io.Writer, all []tasks.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range all {
		record := []string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Urgency),
			string(t.Importance),
			string(t.Status),
			t.Date,
			string(t.Frequency),
			formatMillis(&t.CreatedAt),
			formatMillis(&t.UpdatedAt),
			formatMillis(t.CompletedAt),
			formatMillis(t.RecurrenceEndedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Candidate is one parsed import row awaiting review. Nil timestamps were
// empty or unparsable in the source.
type Candidate struct {
	SourceID          string             `json:"sourceId,omitempty"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Urgency           tasks.Level        `json:"urgency"`
	Importance        tasks.Level        `json:"importance"`
	Status            tasks.Status       `json:"status"`
	Date              string             `json:"date"`
	Frequency         calendar.Frequency `json:"frequency"`
	CreatedAt         *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time         `json:"updatedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	RecurrenceEndedAt *time.Time         `json:"recurrenceEndedAt,omitempty"`
}

// Import parses CSV into candidates. It never commits anything. Rows without
// a title or with an unparsable date are dropped; ErrNoCandidates is
// returned when nothing survives.
func Import(r io.Reader) ([]Candidate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoCandidates
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := columnIndex(header)

	var out []Candidate
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			slog.Debug("import: skipping unparsable row", "line", line, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		c, ok := parseRow(record, idx)
		if !ok {
			slog.Debug("import: dropping row", "line", line)
			continue
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		for _, c := range Columns {
			if strings.EqualFold(h, c) {
				idx[c] = i
			}
		}
	}
	return idx
}

func parseRow(record []string, idx map[string]int) (Candidate, bool) {
	raw := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	// Free text keeps its whitespace; keyed columns are trimmed.
	get := func(col string) string {
		return strings.TrimSpace(raw(col))
	}

	c := Candidate{
		SourceID:    get("id"),
		Title:       raw("title"),
		Description: raw("description"),
		Date:        get("date"),
	}
	if c.Title == "" {
		return Candidate{}, false
	}
	if c.Date != "" {
		if _, err := calendar.ParseDate(c.Date); err != nil {
			return Candidate{}, false
		}
	}

	c.Urgency, _ = tasks.ParseLevel(get("urgency"))
	c.Importance, _ = tasks.ParseLevel(get("importance"))
	c.Status, _ = tasks.ParseStatus(get("status"))
	freq, err := calendar.ParseFrequency(get("frequency"))
	if err != nil {
		freq = calendar.FrequencyNone
	}
	c.Frequency = freq

	c.CreatedAt = parseMillis(get("createdAt"))
	c.UpdatedAt = parseMillis(get("updatedAt"))
	c.CompletedAt = parseMillis(get("completedAt"))
	c.RecurrenceEndedAt = parseMillis(get("recurrenceEndedAt"))
	return c, true
}

func formatMillis(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) *time.Time {
	if s == "" {
		return nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(int64(ms))
	return &t
}
