package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// NamedCompleter pairs a provider with the name used in logs.
type NamedCompleter struct {
	Name      string
	Completer Completer
}

// FallbackService tries providers in order and returns the first success.
type FallbackService struct {
	providers []NamedCompleter
	log       zerolog.Logger
}

// NewFallbackService creates a new fallback service over the given providers
func NewFallbackService(log zerolog.Logger, providers ...NamedCompleter) *FallbackService {
	return &FallbackService{
		providers: providers,
		log:       log,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func (f *FallbackService) Complete(ctx context.Context, prompt string) (string, error) {
	if len(f.providers) == 0 {
		return "", fmt.Errorf("no AI provider available")
	}

	var lastErr error
	for _, p := range f.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		result, err := p.Completer.Complete(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		event := f.log.Warn().Err(err).Str("provider", p.Name)
		switch {
		case isQuotaError(err):
			event.Msg("provider quota exhausted, falling back")
		case isConnectionError(err):
			event.Msg("provider unreachable, falling back")
		default:
			event.Msg("provider failed, falling back")
		}
	}

	return "", fmt.Errorf("all AI providers failed: %w", lastErr)
}
