package api

import (
	"net/http"
	"strconv"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/ratelimit"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderRemaining  = "X-Rate-Limit-Remaining"
	HeaderRetryAfter = "X-Rate-Limit-Retry-After-Seconds"
)

// Admitter decides whether one more call is allowed for identity.
type Admitter interface {
	TryConsume(identity string) ratelimit.Result
}

// IdentityFunc extracts the caller principal. An empty result is anonymous.
type IdentityFunc func(r *http.Request) string

// UserIDFromHeader reads the principal set by the authenticating proxy.
func UserIDFromHeader(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}

// Gate applies the rate limiter in front of protected handlers.
type Gate struct {
	limiter  Admitter
	identity IdentityFunc
	logger   logger.Logger
}

func NewGate(limiter Admitter, identity IdentityFunc, log logger.Logger) *Gate {
	if identity == nil {
		identity = UserIDFromHeader
	}
	return &Gate{
		limiter:  limiter,
		identity: identity,
		logger:   log.WithFields(map[string]interface{}{"component": "admission-gate"}),
	}
}

// Wrap sets the remaining-tokens header on every response and answers 429
// without calling next when the caller is out of tokens.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := ratelimit.NormalizeIdentity(g.identity(r))
		res := g.limiter.TryConsume(identity)

		w.Header().Set(HeaderRemaining, strconv.FormatInt(res.RemainingTokens, 10))
		if res.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := RetryAfterSeconds(res.NanosToWaitForRefill)
		w.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

		g.logger.Debug("request throttled", map[string]interface{}{
			"identity":   identity,
			"path":       r.URL.Path,
			"retryAfter": retryAfter,
		})

		stdErr := apperrors.NewRateLimitExceededError(retryAfter)
		writeJSON(w, http.StatusTooManyRequests, RejectionResponse{
			Error:             string(stdErr.Code),
			Message:           stdErr.Message,
			RetryAfterSeconds: retryAfter,
		})
	})
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(nanos int64) int64 {
	secs := (nanos + int64(time.Second) - 1) / int64(time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
