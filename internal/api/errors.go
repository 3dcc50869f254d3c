package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ValidationReason is a field-level complaint from the server.
type ValidationReason struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Error is returned for every HTTP response with status >= 400.
type Error struct {
	Status     int
	StatusText string
	Message    string
	Code       string
	Validation []ValidationReason
	// Body holds the raw response when it was not a JSON error payload.
	Body string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d", e.Status)
	if e.StatusText != "" {
		fmt.Fprintf(&b, " %s", e.StatusText)
	}
	switch {
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Body != "":
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	return b.String()
}

// errorEnvelope covers both the records API error payload and the signup
// payload, which lists field errors as top-level string arrays.
type errorEnvelope struct {
	Error *struct {
		Message    string             `json:"message"`
		Code       string             `json:"code"`
		Validation []ValidationReason `json:"validation"`
	} `json:"error"`
	Username []string `json:"username"`
	Password []string `json:"password"`
}

func newError(resp *http.Response, body []byte) *Error {
	e := &Error{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		e.Body = strings.TrimSpace(string(body))
		return e
	}
	if env.Error != nil {
		e.Message = env.Error.Message
		e.Code = env.Error.Code
		e.Validation = env.Error.Validation
	}
	if len(env.Username) > 0 {
		e.Validation = append(e.Validation, ValidationReason{Key: "username", Message: strings.Join(env.Username, ",")})
	}
	if len(env.Password) > 0 {
		e.Validation = append(e.Validation, ValidationReason{Key: "password", Message: strings.Join(env.Password, ",")})
	}
	if env.Error == nil && len(e.Validation) == 0 {
		e.Body = strings.TrimSpace(string(body))
	}
	return e
}
