package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"strconv"
	"strings"

	"github.com/user/infercore/internal/errors"
	"github.com/user/infercore/internal/logging"
)

// retryInfoEnvelope matches the structured "retry info" some providers embed
// in 429 bodies. Two encodings are supported: a google.rpc.RetryInfo detail
// with a string delay ("7.5s", "250ms") and a flat numeric retry_after field.
type retryInfoEnvelope struct {
	Error struct {
		Details []struct {
			Type       string      `json:"@type"`
			RetryDelay interface{} `json:"retryDelay"`
		} `json:"details"`
		RetryAfter interface{} `json:"retry_after"`
	} `json:"error"`
}

// ClassifyTransportError turns a raw transport failure into a typed error.
// Cancellation is always classified first and distinctly from rate limiting.
// HTTP 429 becomes a RateLimitError with a millisecond retry delay; anything
// else is logged and returned unchanged, since no generic recovery is
// possible at this layer.
func ClassifyTransportError(ctx context.Context, err error, logger *logging.Logger, defaultRetryMs int64) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewAbortError("", err)
	}

	var te *TransportError
	if stderrors.As(err, &te) && te.StatusCode == 429 {
		delay := retryDelayMs(te, defaultRetryMs)
		logger.Warn("Provider rate limited",
			logging.String("provider", te.Provider),
			logging.Int64("retry_delay_ms", delay),
		)
		return errors.NewRateLimitError(te.Provider, delay, err)
	}

	logger.Error("Transport error", logging.String("error", err.Error()))
	return err
}

// retryDelayMs derives the retry delay for a 429 response, in priority order:
// Retry-After header, structured retry info in the body, per-provider default.
// The result is always whole milliseconds, rounded up.
func retryDelayMs(te *TransportError, defaultMs int64) int64 {
	if v := te.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && seconds > 0 {
			return ceilMs(seconds * 1000)
		}
	}

	if ms := retryDelayFromBody(te.Body); ms > 0 {
		return ms
	}

	if defaultMs > 0 {
		return defaultMs
	}
	return 1000
}

// retryDelayFromBody extracts a delay from a structured error body
func retryDelayFromBody(body []byte) int64 {
	if len(body) == 0 {
		return 0
	}
	var env retryInfoEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0
	}

	for _, detail := range env.Error.Details {
		if !strings.HasSuffix(detail.Type, "RetryInfo") {
			continue
		}
		if ms := parseDelayValue(detail.RetryDelay); ms > 0 {
			return ms
		}
	}

	return parseDelayValue(env.Error.RetryAfter)
}

// parseDelayValue converts a numeric-seconds or string-with-unit-suffix
// encoding into milliseconds, rounded up. Returns 0 when unparseable.
func parseDelayValue(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		if val <= 0 {
			return 0
		}
		return ceilMs(val * 1000)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		unit := 1000.0 // bare numbers and "s" suffixes are seconds
		if strings.HasSuffix(s, "ms") {
			unit = 1
			s = strings.TrimSuffix(s, "ms")
		} else if strings.HasSuffix(s, "s") {
			s = strings.TrimSuffix(s, "s")
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || seconds <= 0 {
			return 0
		}
		return ceilMs(seconds * unit)
	}
	return 0
}

func ceilMs(ms float64) int64 {
	return int64(math.Ceil(ms))
}
