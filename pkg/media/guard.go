package media

import (
	"context"

	"tgblog/pkg/circuitbreaker"
)

// GuardedConverter stops invoking a sticker renderer after it keeps failing,
// typically because the command is not installed.
type GuardedConverter struct {
	next    Converter
	breaker *circuitbreaker.Breaker
}

// NewGuardedConverter wraps next with breaker.
func NewGuardedConverter(next Converter, breaker *circuitbreaker.Breaker) *GuardedConverter {
	return &GuardedConverter{next: next, breaker: breaker}
}

func (g *GuardedConverter) Convert(ctx context.Context, path string) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Convert(ctx, path)
		return err
	})
	return out, err
}

// Breaker exposes the wrapped breaker for reporting.
func (g *GuardedConverter) Breaker() *circuitbreaker.Breaker {
	return g.breaker
}
