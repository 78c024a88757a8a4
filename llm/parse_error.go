package llm

import (
	"encoding/json"
	"strings"
)

// NormalizeError applies the common fallback order for ParseError
// implementations: the structured vendor message, then the error.message
// field of a JSON response body, then the raw error text.
func NormalizeError(err error, structured string, body []byte) string {
	if msg := strings.TrimSpace(structured); msg != "" {
		return msg
	}
	if msg, ok := BodyMessage(body); ok {
		return msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// BodyMessage extracts error.message from a JSON error body. Bodies that do
// not parse, or carry a non-string message, report false.
func BodyMessage(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return "", false
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err != nil || nested.Message == "" {
		return "", false
	}
	return nested.Message, true
}
