package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/exchange"
	"github.com/dohr-michael/priomatrix/internal/tasks"
	"github.com/dohr-michael/priomatrix/internal/view"
)

const maxImportBytes = 10 << 20

// listResponse is the body of GET /api/tasks.
type listResponse struct {
	Version   int64                         `json:"version"`
	View      view.Granularity              `json:"view"`
	Date      string                        `json:"date"`
	Items     []view.Item                   `json:"items"`
	Quadrants map[view.Quadrant][]view.Item `json:"quadrants"`
}

// taskResponse wraps a task with the status resolved at the requested date.
type taskResponse struct {
	Version int64        `json:"version"`
	Task    tasks.Task   `json:"task"`
	Status  tasks.Status `json:"status"`
	Active  bool         `json:"active"`
	Next    string       `json:"next,omitempty"`
}

// saveRequest is the body of POST /api/tasks and PATCH /api/tasks/{id}.
type saveRequest struct {
	tasks.Patch
	ContextDate      string `json:"contextDate,omitempty"`
	RecordCompletion bool   `json:"recordCompletion,omitempty"`
}

type moveRequest struct {
	Urgency    string `json:"urgency"`
	Importance string `json:"importance"`
}

type endRequest struct {
	ContextDate string `json:"contextDate,omitempty"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

type commitRequest struct {
	Mode       string               `json:"mode"`
	Confirm    bool                 `json:"confirm"`
	Candidates []exchange.Candidate `json:"candidates"`
}

type importResponse struct {
	Candidates []exchange.Candidate `json:"candidates"`
	Message    string               `json:"message,omitempty"`
}

type snapshotResponse struct {
	Version int64 `json:"version"`
	Count   int   `json:"count"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	g, anchor, ok := s.viewParams(w, r)
	if !ok {
		return
	}
	snap := s.engine.Snapshot()
	items := view.Filter(snap.Tasks, g, anchor, s.currentSettings().WeekStart)
	writeJSON(w, http.StatusOK, listResponse{
		Version:   snap.Version,
		View:      g,
		Date:      calendar.FormatDate(anchor),
		Items:     items,
		Quadrants: view.Quadrants(items),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	g, anchor, ok := s.viewParams(w, r)
	if !ok {
		return
	}
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"view":    g,
		"date":    calendar.FormatDate(anchor),
		"cells":   view.Calendar(snap.Tasks, g, anchor, s.currentSettings().WeekStart),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap := s.engine.Snapshot()
	t, found := snap.Find(chi.URLParam(r, "id"))
	if !found {
		writeDomainError(w, fmt.Errorf("get %s: %w", chi.URLParam(r, "id"), tasks.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, describe(snap.Version, t, date))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts, err := s.saveOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, snap, err := s.engine.Save(r.Context(), "", req.Patch, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(snap.Version, t, s.orToday(opts.ContextDate)))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts, err := s.saveOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, snap, err := s.engine.Update(r.Context(), chi.URLParam(r, "id"), req.Patch, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(snap.Version, t, s.orToday(opts.ContextDate)))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	urgency, err := tasks.ParseLevel(req.Urgency)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	importance, err := tasks.ParseLevel(req.Importance)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	t, snap, err := s.engine.Relocate(r.Context(), chi.URLParam(r, "id"), urgency, importance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(snap.Version, t, s.engine.Now()))
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	date, err := s.dateParam(req.ContextDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, snap, err := s.engine.EndSeries(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(snap.Version, t, date))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	t, snap, err := s.engine.ResumeSeries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(snap.Version, t, s.engine.Now()))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Version: snap.Version, Count: len(snap.Tasks)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("audit trail not enabled"))
		return
	}
	trail, err := s.audit.Trail(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if trail == nil {
		trail = []events.Event{}
	}
	writeJSON(w, http.StatusOK, trail)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="priomatrix.csv"`)
	if err := exchange.Export(w, snap.Tasks); err != nil {
		writeDomainError(w, err)
	}
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="priomatrix-backup.yaml"`)
	if err := exchange.WriteBackup(w, snap, s.engine.Now()); err != nil {
		writeDomainError(w, err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	candidates, err := exchange.Import(http.MaxBytesReader(w, r.Body, maxImportBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("import body exceeds %d bytes", tooLarge.Limit))
		return
	}
	if errors.Is(err, exchange.ErrNoCandidates) {
		writeJSON(w, http.StatusOK, importResponse{Candidates: []exchange.Candidate{}, Message: err.Error()})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Candidates: candidates})
}

func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := exchange.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := exchange.Commit(r.Context(), s.engine, mode, req.Candidates, req.Confirm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Version: snap.Version, Count: len(snap.Tasks)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeDomainError(w, exchange.ErrConfirmationRequired)
		return
	}
	snap, err := s.engine.Reset(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Version: snap.Version, Count: len(snap.Tasks)})
}

// viewParams reads ?view= and ?date=, writing a 400 on bad input.
func (s *Server) viewParams(w http.ResponseWriter, r *http.Request) (view.Granularity, time.Time, bool) {
	g, err := view.ParseGranularity(r.URL.Query().Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", time.Time{}, false
	}
	anchor, err := s.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", time.Time{}, false
	}
	return g, anchor, true
}

// dateParam parses a YYYY-MM-DD value, defaulting to today.
func (s *Server) dateParam(v string) (time.Time, error) {
	if v == "" {
		return calendar.StartOfDay(s.engine.Now()), nil
	}
	return calendar.ParseDate(v)
}

func (s *Server) orToday(d time.Time) time.Time {
	if d.IsZero() {
		return calendar.StartOfDay(s.engine.Now())
	}
	return d
}

func (s *Server) saveOptions(req saveRequest) (tasks.SaveOptions, error) {
	opts := tasks.SaveOptions{RecordCompletion: req.RecordCompletion}
	if req.ContextDate != "" {
		d, err := calendar.ParseDate(req.ContextDate)
		if err != nil {
			return opts, fmt.Errorf("contextDate: %w", err)
		}
		opts.ContextDate = d
	}
	return opts, nil
}

func describe(version int64, t tasks.Task, date time.Time) taskResponse {
	resp := taskResponse{
		Version: version,
		Task:    t,
		Status:  tasks.StatusOn(&t, date),
		Active:  tasks.IsActiveOn(&t, date),
	}
	if next, ok := tasks.NextOccurrence(&t, date); ok {
		resp.Next = calendar.FormatDate(next)
	}
	return resp
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
