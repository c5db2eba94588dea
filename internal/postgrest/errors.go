package postgrest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx answer from the data endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
	Hint       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return fmt.Sprintf("postgrest error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest error %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	payload := struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details"`
		Hint    interface{} `json:"hint"`
	}{}
	if len(body) > 0 && json.Unmarshal(body, &payload) != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	msg := payload.Message
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       payload.Code,
		Message:    msg,
		Details:    stringify(payload.Details),
		Hint:       stringify(payload.Hint),
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		if data, err := json.Marshal(t); err == nil {
			return string(data)
		}
	}
	return ""
}
