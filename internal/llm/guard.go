package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/cardsynergy/internal/metrics"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Provider labels logs and metrics, e.g. "ollama".
	Provider string

	// RequestsPerMinute caps call rate. Zero disables limiting.
	RequestsPerMinute int

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero uses 5.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	// Zero uses 30 seconds.
	OpenTimeout time.Duration
}

// Guard wraps a Generator with a rate limiter, a circuit breaker and
// metrics. An open breaker fails fast with ErrUnavailable.
type Guard struct {
	next     Generator
	provider string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[string]
}

// NewGuard wraps next.
func NewGuard(next Generator, cfg GuardConfig) *Guard {
	if cfg.Provider == "" {
		cfg.Provider = "llm"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cfg.Provider,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Text generator circuit breaker changed state")
		},
		// A caller giving up is not a provider fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guard{
		next:     next,
		provider: cfg.Provider,
		limiter:  limiter,
		breaker:  breaker,
	}
}

// Generate waits for the limiter, then calls the wrapped generator through
// the breaker.
func (g *Guard) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.RecordLLMCall(g.provider, "timeout")
			return "", err
		}
	}

	text, err := g.breaker.Execute(func() (string, error) {
		return g.next.Generate(ctx, prompt)
	})
	switch {
	case err == nil:
		metrics.RecordLLMCall(g.provider, "ok")
		return text, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordLLMCall(g.provider, "open")
		return "", ErrUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordLLMCall(g.provider, "timeout")
		return "", err
	default:
		metrics.RecordLLMCall(g.provider, "error")
		return "", err
	}
}

// State reports the breaker state, e.g. "closed" or "open".
func (g *Guard) State() string {
	return g.breaker.State().String()
}
