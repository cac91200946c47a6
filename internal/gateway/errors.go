// ABOUTME: Error taxonomy for storefront API calls
// ABOUTME: Classifies failures as network, authorization, validation or server errors

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failed API call
type Kind int

const (
	// KindNetwork means no response was received
	KindNetwork Kind = iota + 1
	// KindAuthorization is a 401 or 403
	KindAuthorization
	// KindValidation is any other 4xx carrying a server message
	KindValidation
	// KindServer is a 5xx
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is returned by every failed gateway call
type Error struct {
	Kind     Kind
	Status   int
	Endpoint string
	Message  string
	Fields   map[string][]string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		if e.Err != nil && e.Message == "" {
			return e.Err.Error()
		}
		return e.Message
	case KindValidation:
		return e.Message
	default:
		if e.Message != "" {
			return fmt.Sprintf("storefront error (%d): %s", e.Status, e.Message)
		}
		return fmt.Sprintf("storefront returned status %d", e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError builds a validation error raised before any request is sent
func NewValidationError(message string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the classification of err if it is a gateway error
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a gateway error of kind k
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// classifyStatus maps an HTTP error status to a Kind
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthorization
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// decodeErrorBody extracts a message from the shapes the API uses:
// {"error": ...}, {"detail": ...}, {"message": ...} or a field error map.
func decodeErrorBody(status int, body []byte) (string, map[string][]string) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" || strings.HasPrefix(text, "<") {
			return http.StatusText(status), nil
		}
		return text, nil
	}

	for _, key := range []string{"error", "detail", "message"} {
		if raw, ok := doc[key]; ok {
			var msg string
			if json.Unmarshal(raw, &msg) == nil && msg != "" {
				return msg, nil
			}
		}
	}

	fields := map[string][]string{}
	for name, raw := range doc {
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			fields[name] = list
			continue
		}
		var single string
		if json.Unmarshal(raw, &single) == nil && single != "" {
			fields[name] = []string{single}
		}
	}
	if len(fields) == 0 {
		return http.StatusText(status), nil
	}

	if msgs, ok := fields["non_field_errors"]; ok {
		return msgs[0], fields
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", names[0], fields[names[0]][0]), fields
}
