package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeAttachment sends body as a download named fileName.
func writeAttachment(w http.ResponseWriter, contentType, fileName string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvoiceNotFound),
		errors.Is(err, core.ErrItemNotFound),
		errors.Is(err, core.ErrNoInvoices):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrNoItems),
		errors.Is(err, core.ErrMissingItemID),
		errors.Is(err, core.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrInvalidTotal),
		errors.Is(err, core.ErrInvalidRate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Internal errors are
// not echoed.
func messageFor(err error, status int) string {
	switch {
	case status == http.StatusInternalServerError:
		return "internal server error"
	case status == http.StatusRequestEntityTooLarge:
		return "uploaded file is too large"
	case errors.Is(err, core.ErrNoItems):
		return "could not identify item details in the uploaded file"
	default:
		return err.Error()
	}
}

// fail writes err as a JSON error and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.LogError(r.Context(), "Request failed", err, tlog.ErrorTypeInternal, tlog.ComponentHTTP, op,
			tlog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	} else {
		tlog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			tlog.FieldOperation, op, tlog.FieldStatusCode, status, tlog.FieldError, err.Error())
	}
	writeError(w, status, messageFor(err, status))
}
