package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// errorBody is the JSON shape of every browser-facing rejection.
type errorBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Field    string `json:"field,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// apiResponse is the envelope returned to machine clients.
type apiResponse struct {
	Success bool              `json:"success"`
	Data    *model.Projection `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		logrus.WithError(err).Warn("encode json failed")
	}
}

// classify maps a core error onto an HTTP status and a response body.
func classify(err error) (int, errorBody) {
	var (
		validation  model.ValidationError
		invalidFile model.InvalidFileError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Error: validation.Error(), Code: "validation", Field: validation.Field}
	case errors.As(err, &invalidFile):
		return http.StatusBadRequest, errorBody{Error: invalidFile.Error(), Code: "invalid_file", Kind: string(invalidFile.Kind)}
	case errors.Is(err, model.ErrMissingCredentials):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "missing_credentials"}
	case errors.Is(err, model.ErrDuplicateEmail):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "duplicate_email"}
	case errors.Is(err, model.ErrUnknownEmail):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unknown_email"}
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "invalid_credentials"}
	case errors.Is(err, model.ErrInvalidSession):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "invalid_session"}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}

// writeError responds with the mapped status. redirect, when set, tells a
// browser client where to go next.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	status, body := classify(err)
	body.Redirect = redirect
	entry := s.log.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r.Context()),
		"status":     status,
	})
	if status == http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	respondJSON(w, status, body)
}
