package extractor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/pacing"
	"reelgrab/pkg/tracing"
)

// Orchestrator runs strategies in order and returns the first valid result
type Orchestrator struct {
	strategies []Strategy
	delay      pacing.Delay
	logger     logger.Logger
	tracer     trace.Tracer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithDelay sets the randomized wait before the first attempt
func WithDelay(d pacing.Delay) Option {
	return func(o *Orchestrator) { o.delay = d }
}

// WithLogger sets the logger used for per-strategy outcomes
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer overrides the tracer, mostly for tests
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// NewOrchestrator creates an orchestrator over strategies in the given order
func NewOrchestrator(strategies []Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies,
		delay:      pacing.DefaultUniform(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger()
	}
	if o.tracer == nil {
		o.tracer = tracing.Tracer()
	}
	return o
}

// Strategies returns the configured strategy names in attempt order
func (o *Orchestrator) Strategies() []string {
	names := make([]string, len(o.strategies))
	for i, s := range o.strategies {
		names[i] = s.Name()
	}
	return names
}

// ExtractURL validates raw and runs the pipeline on it
func (o *Orchestrator) ExtractURL(ctx context.Context, raw string) (*instagram.Result, error) {
	ref, err := instagram.ParseReelURL(raw)
	if err != nil {
		return nil, err
	}
	return o.Extract(ctx, ref)
}

// Extract waits the pacing delay, then tries each strategy until one yields a
// valid video URL. Individual failures are logged, never returned; when every
// strategy fails the caller gets a single generic exhaustion error.
func (o *Orchestrator) Extract(ctx context.Context, ref instagram.Reference) (result *instagram.Result, err error) {
	ctx, span := o.tracer.Start(ctx, "extractor.Extract",
		trace.WithAttributes(attribute.String("reel.shortcode", ref.Shortcode)))
	defer tracing.End(span, &err)

	log := o.logger.WithField("shortcode", ref.Shortcode)

	if werr := pacing.Sleep(ctx, o.delay); werr != nil {
		return nil, errors.Wrap(werr, errors.ErrorTypeAllStrategiesExhausted, errors.MsgExhausted)
	}

	for _, s := range o.strategies {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("Extraction abandoned")
			break
		}

		start := time.Now()
		res, aerr := o.attempt(ctx, s, ref)
		logger.LogStrategyOutcome(log, s.Name(), ref.Shortcode, time.Since(start), aerr)
		if aerr == nil {
			span.SetAttributes(attribute.String("reel.strategy", s.Name()))
			return res, nil
		}
	}

	return nil, errors.New(errors.ErrorTypeAllStrategiesExhausted, errors.MsgExhausted)
}

func (o *Orchestrator) attempt(ctx context.Context, s Strategy, ref instagram.Reference) (res *instagram.Result, err error) {
	ctx, span := o.tracer.Start(ctx, "strategy."+s.Name())
	defer tracing.End(span, &err)
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.Newf(errors.ErrorTypeStrategyFailure, "%s panicked: %v", s.Name(), r)
		}
	}()

	res, err = s.Attempt(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.Newf(errors.ErrorTypeVideoNotFound, "%s returned no result", s.Name())
	}
	if verr := instagram.ValidateVideoURL(res.VideoURL); verr != nil {
		return nil, errors.Wrap(verr, errors.ErrorTypeStrategyFailure, s.Name()+" returned an unusable video URL")
	}
	if res.Title == "" {
		res.Title = instagram.DefaultTitle
	}
	return res, nil
}
