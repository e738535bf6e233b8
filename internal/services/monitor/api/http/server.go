// Package httpapi exposes the monitor over HTTP: push-style triggers from a
// scheduler, direct dispatch, record import, metrics and liveness.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
	"github.com/lifesignal/monitor/internal/services/monitor/app"
	"github.com/lifesignal/monitor/internal/services/monitor/metrics"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/source"
)

const maxBodyBytes = 32 << 20

// Dispatcher is the part of app.Dispatcher the server drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind app.RequestKind, today time.Time) (app.Summary, error)
	Import(ctx context.Context, records []observation.RawRecord) (int, error)
}

// Server routes HTTP requests to a Dispatcher.
type Server struct {
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	locale     string
	accessLog  io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts requests per route and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLocale selects the language of error messages.
func WithLocale(locale string) Option {
	return func(s *Server) { s.locale = locale }
}

// WithAccessLog writes combined-format access lines to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// NewServer builds a server around d.
func NewServer(d Dispatcher, opts ...Option) *Server {
	s := &Server{dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the handler for every route.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/push", s.route("push", s.handlePush)).Methods(http.MethodPost)
	r.Handle("/dispatch/{kind}", s.route("dispatch", s.handleDispatch)).Methods(http.MethodPost)
	r.Handle("/import", s.route("import", s.handleImport)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.accessLog == nil {
		return r
	}
	return handlers.CombinedLoggingHandler(s.accessLog, r)
}

func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	if s.metrics == nil {
		return h
	}
	return s.metrics.WrapHandler(name, h)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pushEnvelope is the body a Pub/Sub push subscription posts.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type pushPayload struct {
	Kind  string `json:"kind"`
	Today string `json:"today,omitempty"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var envelope pushEnvelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		s.writeError(w, invalidRequest("push envelope", err))
		return
	}
	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		s.writeError(w, invalidRequest("push data", err))
		return
	}
	var payload pushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.writeError(w, invalidRequest("push payload", err))
		return
	}
	s.dispatch(w, r, payload.Kind, payload.Today)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, mux.Vars(r)["kind"], r.URL.Query().Get("today"))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, rawKind, rawToday string) {
	kind, err := app.ParseKind(rawKind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	today, err := parseDay(rawToday)
	if err != nil {
		s.writeError(w, invalidRequest("today", err))
		return
	}
	summary, err := s.dispatcher.Dispatch(r.Context(), kind, today)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDispatchResponse(summary))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := source.ParseFormat(query.Get("format"))
	if err != nil {
		s.writeError(w, invalidRequest("format", err))
		return
	}
	opts := source.Options{}
	if raw := query.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, invalidRequest("year", err))
			return
		}
		opts.DailyLog.Year = year
	}
	records, err := source.Read(io.LimitReader(r.Body, maxBodyBytes), format, opts)
	if err != nil {
		s.writeError(w, invalidRequest("import body", err))
		return
	}
	inserted, err := s.dispatcher.Import(r.Context(), records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Read: len(records), Inserted: inserted})
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func invalidRequest(field string, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeValidation, fmt.Sprintf("invalid %s: %v", field, err), map[string]string{
		"Field":  field,
		"Reason": err.Error(),
	}, err)
}

type dispatchResponse struct {
	Kind       string   `json:"kind"`
	Delivered  int      `json:"delivered"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Messages   []string `json:"messages"`
	Charts     []string `json:"charts"`
}

func newDispatchResponse(summary app.Summary) dispatchResponse {
	resp := dispatchResponse{
		Kind:       string(summary.Kind),
		Delivered:  summary.Delivered,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
		Messages:   []string{},
		Charts:     []string{},
	}
	for _, d := range summary.Deliveries {
		if d.ChartPath != "" {
			resp.Charts = append(resp.Charts, d.ChartPath)
			continue
		}
		resp.Messages = append(resp.Messages, d.Text)
	}
	return resp
}

type importResponse struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	domainErr, ok := apperrors.As(err)
	if !ok {
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, err.Error(), err)
	}
	status := domainErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{
		Code:    string(domainErr.Code),
		Message: domainErr.UserMessage(s.locale),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
