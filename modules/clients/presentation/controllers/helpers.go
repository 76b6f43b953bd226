package controllers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

const codeBackend = "BACKEND_ERROR"

func requestIDFrom(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-Id")
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func apiError(requestID, code, message string) *httpapi.ErrorEnvelope {
	env := &httpapi.ErrorEnvelope{Code: code, Message: message, RequestID: requestID}
	if requestID != "" {
		env.Meta = map[string]string{"request_id": requestID}
	}
	return env
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError(requestIDFrom(w), code, message))
}

// errorStatus maps service errors onto the HTTP contract. Anything not
// recognised is a store failure and surfaces as 502.
func errorStatus(err error) (int, string) {
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, services.ErrEmptyDesiredState), errors.Is(err, services.ErrEmptyImport):
		return http.StatusUnprocessableEntity, httpapi.CodeValidationFailed
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, httpapi.CodeInvalidRequest
	case errors.Is(err, composables.ErrNoTenantID):
		return http.StatusBadRequest, httpapi.CodeTenantMissing
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, httpapi.CodeForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeBackend
	default:
		return http.StatusBadGateway, codeBackend
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	logger := composables.UseLogger(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("clients api request failed")
	} else {
		logger.Debug("clients api request rejected")
	}
	writeAPIError(w, status, code, err.Error())
}
