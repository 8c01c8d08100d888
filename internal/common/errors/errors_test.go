package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	messages []string
}

func (c *captureLogger) Error(msg string, _ map[string]interface{}) {
	c.messages = append(c.messages, msg)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNotificationNotFound, http.StatusNotFound},
		{ErrCodeNotificationForbidden, http.StatusForbidden},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeQueryTimeout, http.StatusGatewayTimeout},
		{ErrCodeNotificationSendFailed, http.StatusBadGateway},
		{ErrCodeQueryExecutionFailed, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestNormalize_UnwrapsSentinelChain(t *testing.T) {
	sentinel := stderrors.New("NOT_FOUND")
	err := fmt.Errorf("%w: %w", sentinel, NewNotificationNotFoundError("n1"))

	got := Normalize(err)
	assert.Equal(t, ErrCodeNotificationNotFound, got.Code)
	assert.True(t, stderrors.Is(err, sentinel))
}

func TestNormalize_PlainErrorBecomesInternal(t *testing.T) {
	got := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.Equal(t, "boom", got.Details)
}

func TestWriteHTTPError_HidesDetails(t *testing.T) {
	log := &captureLogger{}
	h := NewErrorHandler(log)
	rec := httptest.NewRecorder()

	h.WriteHTTPError(rec, NewQueryExecutionFailedError("list_budgets", stderrors.New("pq: password authentication failed")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeQueryExecutionFailed, body.Error)
	assert.Len(t, log.messages, 1)
}

func TestWriteHTTPError_ClientErrorsNotLogged(t *testing.T) {
	log := &captureLogger{}
	h := NewErrorHandler(log)
	rec := httptest.NewRecorder()

	h.WriteHTTPError(rec, NewNotificationForbiddenError("n1", "u2"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, log.messages)
}

func TestClassification(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeQueryTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeNotificationForbidden))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "UNKNOWN", GetErrorCategory(ErrorCode("X")))
}
