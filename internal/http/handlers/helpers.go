package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/logx"
)

// Error codes of the response envelope
const (
	codeInvalidInput       = "invalid_input"
	codeNotFound           = "not_found"
	codeForbidden          = "forbidden"
	codeUnauthorized       = "unauthorized"
	codeConflict           = "conflict"
	codeNotActive          = "not_active"
	codeAlreadyResponded   = "already_responded"
	codeDispatchInProgress = "dispatch_in_progress"
	codeNoCandidates       = "no_candidates"
	codeRankingUnavailable = "ranking_unavailable"
	codeInternal           = "internal"
)

const (
	bodyLimit = 1 << 20
)

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Error("json encode error",
			logx.String("req_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
}

// ErrorBody is the error part of a failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope wraps every API response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func writeData(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(logger, w, r, status, Envelope{Success: true, Data: data})
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	logger.Warn("http error",
		logx.String("req_id", reqID(r.Context())),
		logx.Int("status", status),
		logx.String("code", code),
		logx.String("msg", msg),
	)
	writeJSON(logger, w, r, status, Envelope{Error: &ErrorBody{Code: code, Message: msg}})
}

// writeAppError maps a service error onto the response envelope.
func writeAppError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeError(logger, w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(logger, w, r, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, apperr.ErrForbidden):
		writeError(logger, w, r, http.StatusForbidden, codeForbidden, "offer belongs to another transporter")
	case errors.Is(err, apperr.ErrNotActive):
		writeError(logger, w, r, http.StatusConflict, codeNotActive, "this offer is no longer yours to act on")
	case errors.Is(err, apperr.ErrAlreadyResponded):
		writeError(logger, w, r, http.StatusConflict, codeAlreadyResponded, "already handled")
	case errors.Is(err, apperr.ErrConflict):
		writeError(logger, w, r, http.StatusConflict, codeConflict, "offer no longer available")
	case errors.Is(err, apperr.ErrDispatchInProgress):
		writeError(logger, w, r, http.StatusConflict, codeDispatchInProgress, "order already has an active dispatch")
	case errors.Is(err, apperr.ErrNoCandidates):
		writeError(logger, w, r, http.StatusUnprocessableEntity, codeNoCandidates, "no transport available")
	case errors.Is(err, apperr.ErrRankingUnavailable):
		writeError(logger, w, r, http.StatusServiceUnavailable, codeRankingUnavailable, "candidates are required")
	default:
		logger.Error("request failed",
			logx.String("req_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// decodeJSON decodes a single JSON object. An empty body is allowed when optional is set.
func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(logger, w, r, http.StatusBadRequest, codeInvalidInput, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, codeInvalidInput, "invalid json: trailing data")
		return false
	}
	return true
}

func pathParam(r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	return v, v != ""
}
