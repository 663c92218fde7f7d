// Package respond writes JSON bodies and turns errors into HTTP responses.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tulisin/apperr"
	"tulisin/auth"
)

// Responder is the single place errors become responses. With Debug set,
// unexpected errors expose their message and type.
type Responder struct {
	Debug bool
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Success is the body of operations that return nothing but an acknowledgement.
func Success(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, typed := apperr.From(err)

	var (
		status int
		body   errorBody
	)
	switch {
	case typed && appErr.Code == apperr.CodeValidation:
		status = appErr.Status
		body = errorBody{Error: appErr.Message, Details: fieldDetails(appErr.Fields)}
	case typed:
		status = appErr.Status
		body = errorBody{Error: appErr.Message, Code: string(appErr.Code)}
		if len(appErr.Details) > 0 {
			body.Details = appErr.Details
		}
		if status >= http.StatusInternalServerError && !rs.Debug {
			body.Details = nil
		}
	default:
		status = http.StatusInternalServerError
		body = errorBody{Error: "Internal server error", Code: string(apperr.CodeInternal)}
		if rs.Debug {
			body.Details = map[string]any{
				"message": err.Error(),
				"type":    fmt.Sprintf("%T", err),
			}
		}
	}

	rs.log(r, status, err)
	JSON(w, status, body)
}

func (rs Responder) log(r *http.Request, status int, err error) {
	var event *zerolog.Event
	if status >= http.StatusInternalServerError {
		event = log.Error()
	} else {
		event = log.Warn()
	}

	event = event.
		Err(err).
		Int("status", status).
		Str("method", r.Method).
		Str("url", r.URL.RequestURI()).
		Str("ip", r.RemoteAddr).
		Str("user_agent", r.UserAgent())
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		event = event.Str("request_id", reqID)
	}
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		event = event.Str("user_id", p.UserID)
	}
	event.Msg("Request failed")
}

func fieldDetails(fields []apperr.FieldError) []apperr.FieldError {
	if fields == nil {
		return []apperr.FieldError{}
	}
	return fields
}
