// Package resolver walks ordered candidate chains of operation identifiers.
// The platform rotates its GraphQL doc_ids, so every query carries a chain
// of known identifiers that are probed in order until one yields a usable
// payload.
package resolver

import (
	"context"

	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

// ProbeFunc tries a single candidate identifier. It returns the extracted
// value and true when the candidate produced a usable payload, false when
// the service answered but the payload was unusable, or an error when the
// attempt failed outright.
type ProbeFunc[T any] func(ctx context.Context, candidate string) (T, bool, error)

// Resolve probes candidates in order and returns the first usable value
// along with the candidate that produced it. Candidates after the first
// success are never probed.
//
// When the chain is exhausted, the error distinguishes two cases: if at
// least one candidate got a real answer the target is treated as gone
// (resolution exhausted), but if every attempt died in transport the
// failure is a network error and says nothing about the target.
func Resolve[T any](ctx context.Context, candidates []string, probe ProbeFunc[T], log logger.Logger) (T, string, error) {
	var zero T
	if log == nil {
		log = logger.GetLogger()
	}
	if len(candidates) == 0 {
		return zero, "", errors.New(errors.ErrorTypeResolutionExhausted, "empty candidate chain")
	}

	answered := false
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		value, ok, err := probe(ctx, candidate)
		if err != nil {
			if t := errors.TypeOf(err); t != errors.ErrorTypeNetwork {
				// Auth and rate limit failures would fail every
				// candidate the same way, so stop immediately.
				if t == errors.ErrorTypeAuthRequired || t == errors.ErrorTypeRateLimit {
					return zero, "", err
				}
				answered = true
			}
			log.DebugWithFields("candidate failed", map[string]interface{}{
				"candidate": candidate,
				"position":  i,
				"error":     err.Error(),
			})
			continue
		}
		if !ok {
			answered = true
			log.DebugWithFields("candidate answered without payload", map[string]interface{}{
				"candidate": candidate,
				"position":  i,
			})
			continue
		}

		if i > 0 {
			log.InfoWithFields("resolved on fallback candidate", map[string]interface{}{
				"candidate": candidate,
				"position":  i,
			})
		}
		return value, candidate, nil
	}

	if !answered {
		return zero, "", errors.Newf(errors.ErrorTypeNetwork,
			"all %d candidates failed in transport", len(candidates))
	}
	return zero, "", errors.Newf(errors.ErrorTypeResolutionExhausted,
		"no candidate out of %d yielded a usable payload", len(candidates))
}
