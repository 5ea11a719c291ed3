// Package api exposes HTTP handlers for the nanny tracker.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/location"
	"example.com/nannytracker/internal/payroll"
	"example.com/nannytracker/internal/role"
	"example.com/nannytracker/internal/summary"
)

// Summarizer produces prose for a set of shifts. It must not fail; implementations return fallback text instead.
type Summarizer interface {
	Summarize(ctx context.Context, sessions []domain.Session) string
}

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithSummarizer sets the summary backend. Without one every summary is the fallback text.
func WithSummarizer(s Summarizer) Option {
	return func(h *Handler) {
		h.summarizer = s
	}
}

// WithLocation sets the zone used for weekday buckets and CSV dates.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		h.loc = loc
	}
}

// WithLogger overrides the logger used for failures after the response has started.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service    *domain.Service
	summarizer Summarizer
	loc        *time.Location
	logger     *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		loc:     time.Local,
		logger:  log.New(log.Writer(), "[api] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /v1/households/{key}/status", h.status)
	mux.HandleFunc("POST /v1/households/{key}/clock-in", h.clockIn)
	mux.HandleFunc("POST /v1/households/{key}/clock-out", h.clockOut)
	mux.HandleFunc("GET /v1/households/{key}/sessions", h.sessions)
	mux.HandleFunc("GET /v1/households/{key}/settings", h.getSettings)
	mux.HandleFunc("PUT /v1/households/{key}/settings", h.putSettings)
	mux.HandleFunc("DELETE /v1/households/{key}", h.reset)
	mux.HandleFunc("GET /v1/households/{key}/periods/{offset}", h.period)
	mux.HandleFunc("GET /v1/households/{key}/periods/{offset}/export", h.export)
	mux.HandleFunc("POST /v1/households/{key}/periods/{offset}/summary", h.summary)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.Context(), r.PathValue("key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        string(view.Status),
		Role:          string(role.FromContext(r.Context())),
		ActiveSession: toSessionViewPtr(view.Active),
	})
}

func (h *Handler) clockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	session, err := h.service.ClockIn(r.Context(), r.PathValue("key"), location.Reported{
		Lat:   req.Lat,
		Lng:   req.Lng,
		Error: req.Error,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClockResponse{
		Status:  string(domain.StatusClockedIn),
		Changed: true,
		Session: toSessionViewPtr(session),
	})
}

func (h *Handler) clockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	session, err := h.service.ClockOut(r.Context(), r.PathValue("key"), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClockResponse{
		Status:  string(domain.StatusClockedOut),
		Changed: session != nil,
		Session: toSessionViewPtr(session),
	})
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), r.PathValue("key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]SessionView, 0, len(snapshot.Sessions))
	for _, s := range snapshot.Sessions {
		items = append(items, toSessionView(s))
	}
	writeJSON(w, http.StatusOK, SessionsResponse{
		Items:         items,
		ActiveSession: toSessionViewPtr(snapshot.Active),
	})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context(), r.PathValue("key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(settings))
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	if !requireParent(w, r) {
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	update := domain.SettingsUpdate{ClearHome: req.ClearHome, HourlyRate: req.HourlyRate}
	if req.Home != nil {
		if req.Home.Lat == nil || req.Home.Lng == nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "home.lat and home.lng are required")
			return
		}
		update.Home = &domain.HomeUpdate{Lat: *req.Home.Lat, Lng: *req.Home.Lng, RadiusMeters: req.Home.RadiusMeters}
	}

	settings, err := h.service.UpdateSettings(r.Context(), r.PathValue("key"), update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(settings))
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if !requireParent(w, r) {
		return
	}
	if err := h.service.Reset(r.Context(), r.PathValue("key")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportView(report))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if !requireParent(w, r) {
		return
	}
	report, ok := h.report(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+payroll.ExportFilename(h.service.Now().In(h.loc))+`"`)
	w.WriteHeader(http.StatusOK)
	if err := payroll.WriteCSV(w, report.Sessions, h.loc); err != nil {
		h.logger.Printf("csv export failed (sync_key=%s): %v", r.PathValue("key"), err)
	}
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if !requireParent(w, r) {
		return
	}
	report, ok := h.report(w, r)
	if !ok {
		return
	}

	text := summary.FallbackText
	if h.summarizer != nil {
		text = h.summarizer.Summarize(r.Context(), report.Sessions)
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Offset: report.Offset, Summary: text})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) (payroll.Report, bool) {
	offset, err := strconv.Atoi(r.PathValue("offset"))
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "offset must be a non-negative integer")
		return payroll.Report{}, false
	}

	snapshot, err := h.service.Snapshot(r.Context(), r.PathValue("key"))
	if err != nil {
		writeDomainError(w, err)
		return payroll.Report{}, false
	}
	report, err := payroll.ForSnapshot(snapshot, offset, h.service.Now(), h.loc)
	if err != nil {
		writeDomainError(w, err)
		return payroll.Report{}, false
	}
	return report, true
}

func requireParent(w http.ResponseWriter, r *http.Request) bool {
	if role.FromContext(r.Context()) != role.Parent {
		writeError(w, http.StatusForbidden, "forbidden", "parent role required")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body as the zero value.
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeDomainError(w http.ResponseWriter, err error) {
	var violation *domain.GeofenceViolationError
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusForbidden, GeofenceErrorResponse{
			Type:           "outside_geofence",
			Detail:         domain.UserMessage(err),
			DistanceMeters: violation.DistanceMeters,
			RadiusMeters:   violation.RadiusMeters,
		})
	case errors.Is(err, domain.ErrLocationUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "location_unavailable", domain.UserMessage(err))
	case errors.Is(err, domain.ErrAlreadyClockedIn):
		writeError(w, http.StatusConflict, "already_clocked_in", domain.UserMessage(err))
	case errors.Is(err, domain.ErrInvalidSyncKey), errors.Is(err, domain.ErrInvalidSettings), errors.Is(err, payroll.ErrInvalidOffset):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
