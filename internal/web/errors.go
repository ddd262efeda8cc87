package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request ID; the client gets the coded message from
// core.NewUserError, as JSON for API routes and plain text for pages.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile   = errors.New("no file provided")
	errTooLarge = errors.New("file too large")
)

// statusFor picks the HTTP status for a mapped error code.
func statusFor(code string) int {
	switch {
	case code == "FILE001":
		return http.StatusRequestEntityTooLarge
	case code == "RUN002", code == "RUN003":
		return http.StatusServiceUnavailable
	case code == "RUN004":
		return http.StatusGatewayTimeout
	case code == "RUN005", code == "CFG004":
		return http.StatusNotFound
	case strings.HasPrefix(code, "FILE"), strings.HasPrefix(code, "CFG"), code == "RULE002":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user message with the status that
// fits its code.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ue := core.NewUserError(err)
	status := statusFor(ue.Code)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "error", ue.Err, "code", ue.Code)
	} else {
		logger.Warn("request error", "path", r.URL.Path, "status", status, "error", ue.Err, "code", ue.Code)
	}

	if ue.Code == "RUN002" {
		w.Header().Set("Retry-After", "5")
	}
	if wantsJSON(r) {
		writeJSON(w, r, status, ErrorResponse{
			Error:   ue.Message,
			Message: ue.Message,
			Action:  ue.Action,
			Code:    ue.Code,
		})
		return
	}
	http.Error(w, ue.Message+" ("+ue.Code+")", status)
}

// badRequest reports a malformed request parameter.
func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "error", message)
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ001",
	})
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
