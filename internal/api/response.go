package api

import (
	"encoding/json"
	"net/http"

	"finance-notifier/internal/common/validation"
)

func decodeJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type validationResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Fields  []validation.ValidationError `json:"fields"`
}

// RejectionResponse is the body returned when the admission gate denies a call.
type RejectionResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retryAfterSeconds"`
}

type notificationList struct {
	Notifications []notificationView `json:"notifications"`
}

type markAllResponse struct {
	Updated int64 `json:"updated"`
}
