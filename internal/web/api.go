package web

import (
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Stable error codes returned in the "error" field of a failed command.
const (
	CodeAlreadyRunning = "already_running"
	CodeNotRunning     = "not_running"
	CodeMissingTime    = "missing_time"
	CodeInvalidTime    = "invalid_time"
	CodeNegativeTime   = "negative_time"
	CodeInvalidBody    = "invalid_body"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Running       bool    `json:"running"`
	CycleWaitTime float64 `json:"cycle_wait_time"` // seconds
	Cycles        int     `json:"cycles"`
	LastFault     string  `json:"last_fault,omitempty"`
}

// CommandResponse is the body of a successful command.
type CommandResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	CycleWaitTime *float64 `json:"cycle_wait_time,omitempty"`
}

// ErrResponse is the body of a rejected command.
type ErrResponse struct {
	HTTPStatusCode int `json:"-"`

	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"error"`
}

// Render sets the response status.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errBadRequest(code, message string) *ErrResponse {
	return &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        message,
		Code:           code,
	}
}

var (
	errAlreadyRunning = errBadRequest(CodeAlreadyRunning, "Actuator is already running")
	errNotRunning     = errBadRequest(CodeNotRunning, "Actuator is not running")
	errMissingTime    = errBadRequest(CodeMissingTime, "Missing 'time' parameter")
	errInvalidTime    = errBadRequest(CodeInvalidTime, "Invalid time value: must be a number")
	errNegativeTime   = errBadRequest(CodeNegativeTime, "Time must be non-negative")
	errInvalidBody    = errBadRequest(CodeInvalidBody, "Invalid request body")
)

// parseWaitTime reads {"time": seconds} from the request body.
// An empty body counts as a missing time.
func parseWaitTime(r *http.Request) (time.Duration, *ErrResponse) {
	var body map[string]interface{}
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errMissingTime
		}
		return 0, errInvalidBody
	}

	raw, ok := body["time"]
	if !ok || raw == nil {
		return 0, errMissingTime
	}
	secs, ok := raw.(float64)
	if !ok {
		return 0, errInvalidTime
	}
	if secs < 0 {
		return 0, errNegativeTime
	}
	if secs > math.MaxInt64/float64(time.Second) {
		return 0, errInvalidTime
	}
	return time.Duration(secs * float64(time.Second)), nil
}
