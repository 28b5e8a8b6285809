package fetch

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RetryPolicy is the single retry/backoff policy shared by mirror, proxy,
// origin, syndication and media requests.
type RetryPolicy struct {
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// BaseWait is the wait before the second attempt.
	BaseWait time.Duration
	// Multiplier grows the wait per attempt. Values below 1 are treated as 1.
	Multiplier float64
	// MaxWait caps any single wait.
	MaxWait time.Duration
	// RetryableStatus decides whether a response status is worth retrying.
	// Nil means DefaultRetryableStatus.
	RetryableStatus func(code int) bool
}

// DefaultRetryPolicy mirrors the behaviour of the original bot: three
// attempts with a short exponential wait.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseWait:    500 * time.Millisecond,
		Multiplier:  2,
		MaxWait:     4 * time.Second,
	}
}

// DefaultRetryableStatus retries 408, 429 and every 5xx.
func DefaultRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// StatusSet returns a predicate matching exactly the given codes. A code of
// 500 also matches the whole 5xx class.
func StatusSet(codes ...int) func(int) bool {
	set := make(map[int]struct{}, len(codes))
	serverClass := false
	for _, c := range codes {
		if c == 500 {
			serverClass = true
		}
		set[c] = struct{}{}
	}
	return func(code int) bool {
		if serverClass && code >= 500 && code <= 599 {
			return true
		}
		_, ok := set[code]
		return ok
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Wait returns min(MaxWait, BaseWait * Multiplier^attempt) for a zero based
// attempt index.
func (p RetryPolicy) Wait(attempt int) time.Duration {
	if p.BaseWait <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	w := float64(p.BaseWait) * math.Pow(mult, float64(attempt))
	if p.MaxWait > 0 && (w > float64(p.MaxWait) || math.IsInf(w, 1)) {
		return p.MaxWait
	}
	return time.Duration(w)
}

// checkRetry adapts the policy to retryablehttp. A redirect to a stop host
// is final. Other transport errors use the library default, which refuses to
// retry scheme, redirect and TLS errors.
func (p RetryPolicy) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(err, ErrRedirectedToOrigin) {
		return false, nil
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	retryable := p.RetryableStatus
	if retryable == nil {
		retryable = DefaultRetryableStatus
	}
	return retryable(resp.StatusCode), nil
}

func (p RetryPolicy) backoff(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
	return p.Wait(attempt)
}

// apply configures rc to follow the policy.
func (p RetryPolicy) apply(rc *retryablehttp.Client) {
	rc.RetryMax = p.attempts() - 1
	rc.RetryWaitMin = p.BaseWait
	rc.RetryWaitMax = p.MaxWait
	rc.CheckRetry = p.checkRetry
	rc.Backoff = p.backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
}

// zerologLeveled routes retryablehttp logging into zerolog.
type zerologLeveled struct {
	logger zerolog.Logger
}

func newLeveledLogger() retryablehttp.LeveledLogger {
	return zerologLeveled{logger: log.With().Str("component", "fetch").Logger()}
}

func (z zerologLeveled) Error(msg string, kv ...interface{}) { z.emit(z.logger.Error(), msg, kv) }
func (z zerologLeveled) Info(msg string, kv ...interface{})  { z.emit(z.logger.Debug(), msg, kv) }
func (z zerologLeveled) Debug(msg string, kv ...interface{}) { z.emit(z.logger.Trace(), msg, kv) }
func (z zerologLeveled) Warn(msg string, kv ...interface{})  { z.emit(z.logger.Warn(), msg, kv) }

func (z zerologLeveled) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
