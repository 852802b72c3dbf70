package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/batch"
	"github.com/iamhimansu/template-repeater/internal/repeater"
	"github.com/iamhimansu/template-repeater/internal/templating"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RenderResponse is the body of a successful POST /v1/render.
type RenderResponse struct {
	SessionID   string        `json:"session_id"`
	Paper       string        `json:"paper"`
	Orientation string        `json:"orientation"`
	TotalPages  int           `json:"total_pages"`
	Sheets      []batch.Sheet `json:"sheets"`
	Summary     batch.Summary `json:"summary"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", RequestID(r.Context())))

	var req batch.Request
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeError(w, r, status, "malformed-request", fmt.Errorf("failed to read request: %w", err))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "malformed-request", fmt.Errorf("failed to decode request: %w", err))
		return
	}

	session, err := batch.Prepare(req, s.template, logger)
	if err != nil {
		s.writeError(w, r, statusFor(err), codeFor(err), err)
		return
	}

	resp := RenderResponse{
		SessionID:   session.ID(),
		Paper:       session.Paper(),
		Orientation: session.Orientation(),
		TotalPages:  session.TotalPages(),
		Sheets:      []batch.Sheet{},
	}
	summary, err := batch.Run(r.Context(), session, req.Records, func(sheet batch.Sheet) error {
		resp.Sheets = append(resp.Sheets, sheet)
		return nil
	}, logger)
	if err != nil {
		s.writeError(w, r, statusFor(err), codeFor(err), err)
		return
	}
	resp.Summary = summary
	s.writeJSON(w, r, http.StatusOK, resp)
}

// statusFor maps a render failure to an HTTP status: caller mistakes in the
// request envelope are 400, templates that cannot be laid out or rendered are 422.
func statusFor(err error) int {
	if errors.Is(err, templating.ErrUnknownEngine) {
		return http.StatusBadRequest
	}
	switch repeater.CodeOf(err) {
	case repeater.CodePropertyNotFound, repeater.CodeInvalidOption:
		return http.StatusBadRequest
	case repeater.CodeEmptyTemplate,
		repeater.CodeEmptyAttribute,
		repeater.CodeMetadataNodeNotFound,
		repeater.CodeMetadataMissing,
		repeater.CodeMissingPageElements,
		repeater.CodeTemplating:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	if errors.Is(err, templating.ErrUnknownEngine) {
		return "unknown-engine"
	}
	if code := repeater.CodeOf(err); code != "" {
		return string(code)
	}
	return "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	level := zap.InfoLevel
	if status >= http.StatusInternalServerError {
		level = zap.ErrorLevel
	}
	s.logger.Log(level, "Request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("status", status),
		zap.String("code", code),
		zap.Error(err))
	s.writeJSON(w, r, status, ErrorResponse{Error: err.Error(), Code: code, RequestID: RequestID(r.Context())})
}

// writeJSON encodes v, compressing with brotli when the client accepts it.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Vary", "Accept-Encoding")

	var out io.Writer = w
	if acceptsBrotli(r) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		defer func() {
			if err := bw.Close(); err != nil {
				s.logger.Warn("Failed to finish brotli stream", zap.Error(err))
			}
		}()
		out = bw
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(out).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(name), "br") {
			return qualityOf(params) > 0
		}
	}
	return false
}

// qualityOf returns the q weight from an Accept-Encoding parameter list,
// defaulting to 1. A malformed weight counts as 0.
func qualityOf(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return q
	}
	return 1
}
