package sdapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxFailureLen is the longest failure message shown to users before the
// ellipsis is appended.
const MaxFailureLen = 200

// NoImagesMessage is the failure shown for a reply without image data.
const NoImagesMessage = "No images returned from API"

// Response is the txt2img response body.
type Response struct {
	Images []string        `json:"images"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// StatusError is a non-2xx reply from the API.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Detail)
}

// NetworkError wraps transport failures, timeouts included.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Outcome is the user-facing result of a generation.
type Outcome struct {
	Image   []byte
	Message string
}

// OK reports a successful outcome.
func (o Outcome) OK() bool {
	return o.Message == "" && len(o.Image) > 0
}

// Success wraps decoded image bytes.
func Success(image []byte) Outcome {
	return Outcome{Image: image}
}

// Failure truncates msg for display.
func Failure(msg string) Outcome {
	return Outcome{Message: truncate(msg, MaxFailureLen)}
}

// Interpret turns an API result into an Outcome.
func Interpret(resp *Response, err error) Outcome {
	if err != nil {
		return Failure(err.Error())
	}
	if resp == nil || len(resp.Images) == 0 {
		return Failure(NoImagesMessage)
	}
	img, decErr := decodeImage(resp.Images[0])
	if decErr != nil {
		return Failure(decErr.Error())
	}
	if len(img) == 0 {
		return Failure(NoImagesMessage)
	}
	return Success(img)
}

func decodeImage(data string) ([]byte, error) {
	if _, payload, ok := strings.Cut(data, "base64,"); ok {
		data = payload
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// statusError builds a StatusError from an error response body. A JSON
// object contributes its detail field; any other body contributes its
// leading bytes.
func statusError(code int, body []byte) *StatusError {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return &StatusError{Code: code, Detail: truncateBytes(string(body), MaxFailureLen)}
	}
	detail, ok := obj["detail"]
	if !ok || detail == nil {
		return &StatusError{Code: code, Detail: "Unknown error"}
	}
	if s, ok := detail.(string); ok {
		return &StatusError{Code: code, Detail: s}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return &StatusError{Code: code, Detail: fmt.Sprint(detail)}
	}
	return &StatusError{Code: code, Detail: string(raw)}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
