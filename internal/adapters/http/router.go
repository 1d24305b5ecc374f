package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
	"github.com/kirillkom/medbrief/internal/infrastructure/session"
	"github.com/kirillkom/medbrief/internal/observability/metrics"
)

const (
	maxUploadBytes    = 20 << 20
	maxJSONBodyBytes  = 1 << 20
	userIDHeader      = "X-User-Id"
	backpressureWait  = 250 * time.Millisecond
	submitWaitPadding = 15 * time.Second
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	submissions ports.SubmissionViewFactory
	records     ports.RecordReader
	callback    ports.RecordCallback
	admin       ports.AdminConsole

	serviceAPIKey  string
	submitWait     time.Duration
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	metrics        *metrics.HTTPServerMetrics
	ready          func(context.Context) error
}

func NewRouter(
	cfg config.Config,
	submissions ports.SubmissionViewFactory,
	records ports.RecordReader,
	callback ports.RecordCallback,
	admin ports.AdminConsole,
) *Router {
	return &Router{
		submissions:    submissions,
		records:        records,
		callback:       callback,
		admin:          admin,
		serviceAPIKey:  strings.TrimSpace(cfg.AdminAPIKey),
		submitWait:     cfg.WatchTimeout() + cfg.DispatchTimeout() + submitWaitPadding,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithReadiness(fn func(context.Context) error) *Router {
	rt.ready = fn
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/summaries", rt.createSummary)
	api.HandleFunc("GET /v1/summaries/{id}", rt.getSummary)
	api.Handle("PATCH /v1/summaries/{id}", bearerAuthMiddleware(http.HandlerFunc(rt.reportSummary), rt.serviceAPIKey))

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /v1/admin/stats", rt.adminStats)
	adminMux.HandleFunc("GET /v1/admin/users", rt.adminUsers)
	adminMux.HandleFunc("GET /v1/admin/logs", rt.adminLogs)
	adminMux.HandleFunc("POST /v1/admin/users/{id}/status", rt.adminSetUserStatus)
	adminMux.HandleFunc("GET /v1/admin/export.xlsx", rt.adminExport)
	api.Handle("/v1/admin/", bearerAuthMiddleware(adminMux, rt.serviceAPIKey))

	validator, err := newRequestValidator()
	if err != nil {
		// Only reachable with a broken embedded document.
		panic(err)
	}
	var apiHandler http.Handler = validator.middleware(api)
	apiHandler = backpressureMiddleware(apiHandler, rt.maxInFlight, backpressureWait)
	apiHandler = rateLimitMiddleware(apiHandler, rt.rateLimitRPS, rt.rateLimitBurst)
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// createSummary runs one submission to completion and answers with the final
// view state.
func (rt *Router) createSummary(w http.ResponseWriter, r *http.Request) {
	input, err := readSubmission(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	ctx := session.WithUser(r.Context(), r.Header.Get(userIDHeader))
	view := rt.submissions.NewView(nil)
	defer view.Close()

	if err := view.Submit(ctx, input); err != nil {
		snap := view.Snapshot()
		if snap.Phase == domain.PhaseIdle || snap.Phase == "" {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, mapErrorToHTTPStatus(err), snap)
		return
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), rt.submitWait)
	defer cancel()
	snap, err := view.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, snap)
		}
		// Client went away; the sweeper settles the record.
		return
	}
	if snap.Phase == domain.PhaseError {
		writeJSON(w, http.StatusBadGateway, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func readSubmission(w http.ResponseWriter, r *http.Request) (domain.Input, error) {
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			return domain.Input{}, domain.WrapError(domain.ErrValidation, "read upload", fmt.Errorf("multipart field 'file' is required: %w", err))
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return domain.Input{}, domain.WrapError(domain.ErrValidation, "read upload", err)
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/pdf"
		}
		return domain.Input{
			Mode: domain.InputModeFile,
			File: &domain.FileInput{Name: header.Filename, MimeType: mimeType, Data: data},
		}, nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return domain.Input{}, err
	}
	return domain.Input{Mode: domain.InputModeText, Text: req.Text}, nil
}

func (rt *Router) getSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rec, err := rt.records.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) reportSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		Status       domain.SummaryStatus `json:"status"`
		SummaryText  string               `json:"summary_text"`
		ErrorMessage string               `json:"error_message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}

	err = rt.callback.Apply(r.Context(), domain.RecordUpdate{
		ID:           id,
		Status:       req.Status,
		SummaryText:  req.SummaryText,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.admin.Stats(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.admin.Users(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (rt *Router) adminLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := rt.admin.Logs(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (rt *Router) adminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		Status domain.AccountStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.admin.SetUserStatus(r.Context(), id, req.Status); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) adminExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.admin.ExportXLSX(r.Context(), &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="medbrief-admin.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// pathID binds the {id} path parameter the way generated servers do.
func pathID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrValidation, "bind id", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.WrapError(domain.ErrValidation, "bind id", errors.New("id is required"))
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrValidation, "decode json", err)
	}
	return nil
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := domain.UserMessage(err, "")
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_error", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		if message == err.Error() {
			message = http.StatusText(status)
		}
	}
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
