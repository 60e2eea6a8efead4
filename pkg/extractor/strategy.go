package extractor

import (
	"context"

	"reelgrab/pkg/instagram"
)

// Strategy is one independent way of resolving a reel to a playable video URL.
// A nil result or a non-nil error both count as failure.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, ref instagram.Reference) (*instagram.Result, error)
}

// AttemptFunc adapts a plain function to the Strategy interface
type AttemptFunc func(ctx context.Context, ref instagram.Reference) (*instagram.Result, error)

type funcStrategy struct {
	name string
	fn   AttemptFunc
}

// NewStrategyFunc wraps fn as a named Strategy
func NewStrategyFunc(name string, fn AttemptFunc) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

func (s *funcStrategy) Name() string { return s.name }

func (s *funcStrategy) Attempt(ctx context.Context, ref instagram.Reference) (*instagram.Result, error) {
	return s.fn(ctx, ref)
}
