// Package aggregate computes per-field sums over the cards of one list.
//
// The first card of a list is the display target for the list's totals, so it
// never contributes to them. Every other card's values are read concurrently;
// reads that fail count as zero and never fail the whole aggregation.
package aggregate

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/h0rv/sumup/internal/domain"
)

// DefaultConcurrency bounds the number of card reads in flight per aggregation.
const DefaultConcurrency = 8

// ErrBudgetExceeded is returned by SumWithin when the time budget elapses
// before every card read has completed.
var ErrBudgetExceeded = errors.New("aggregation time budget exceeded")

// ValueReader loads the values stored on one card. A card without stored
// values returns an empty map and no error.
type ValueReader interface {
	Values(ctx context.Context, cardID string) (domain.ValueMap, error)
}

// ValueReaderFunc adapts a function to ValueReader.
type ValueReaderFunc func(ctx context.Context, cardID string) (domain.ValueMap, error)

// Values calls f.
func (f ValueReaderFunc) Values(ctx context.Context, cardID string) (domain.ValueMap, error) {
	return f(ctx, cardID)
}

// Aggregator sums field values across the cards of a list.
type Aggregator struct {
	values      ValueReader
	logger      *zap.Logger
	concurrency int
	tracer      trace.Tracer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency sets the maximum number of concurrent card reads.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// New creates an Aggregator reading card values through values.
func New(values ValueReader, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		values:      values,
		logger:      logger,
		concurrency: DefaultConcurrency,
		tracer:      otel.Tracer("github.com/h0rv/sumup/internal/aggregate"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sum returns the total of every field over cards[1:]. cards must already be
// one list sorted by position; Sum does not sort. Every field ID is present in
// the result, zero when nothing contributed.
func (a *Aggregator) Sum(ctx context.Context, fields []domain.Field, cards []domain.CardRef) map[string]float64 {
	ctx, span := a.tracer.Start(ctx, "aggregate.Sum", trace.WithAttributes(
		attribute.Int("sumup.fields", len(fields)),
		attribute.Int("sumup.cards", len(cards)),
	))
	defer span.End()

	totals := make(map[string]float64, len(fields))
	for _, f := range fields {
		totals[f.ID] = 0
	}
	if len(cards) < 2 || len(fields) == 0 {
		return totals
	}

	// Each read fills its own slot; slots are summed in card order after the
	// join so the result does not depend on which read resolves first.
	contributors := cards[1:]
	contributions := make([][]float64, len(contributors))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, card := range contributors {
		i, card := i, card
		g.Go(func() error {
			values, err := a.values.Values(ctx, card.ID)
			if err != nil {
				a.logger.Warn("Card values unavailable, counting as zero",
					zap.String("card", card.ID),
					zap.Error(err))
				return nil
			}
			row := make([]float64, len(fields))
			for j, f := range fields {
				row[j] = ParseValue(values[f.ID])
			}
			contributions[i] = row
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, row := range contributions {
		if row == nil {
			failed++
			continue
		}
		for j, f := range fields {
			totals[f.ID] += row[j]
		}
	}
	span.SetAttributes(attribute.Int("sumup.failed_reads", failed))

	return totals
}

// SumWithin runs Sum under a time budget. When the budget elapses first it
// returns ErrBudgetExceeded and the caller should display nothing; reads
// already issued observe the cancelled context and wind down on their own.
// A non-positive budget means no limit.
func (a *Aggregator) SumWithin(ctx context.Context, budget time.Duration, fields []domain.Field, cards []domain.CardRef) (map[string]float64, error) {
	if budget <= 0 {
		return a.Sum(ctx, fields, cards), nil
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan map[string]float64, 1)
	go func() {
		done <- a.Sum(ctx, fields, cards)
	}()

	select {
	case totals := <-done:
		return totals, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			a.logger.Debug("Aggregation exceeded its budget",
				zap.Duration("budget", budget),
				zap.Int("cards", len(cards)))
			return nil, ErrBudgetExceeded
		}
		return nil, ctx.Err()
	}
}

// NonZero returns the totals worth displaying: only non-zero sums are shown.
// A NaN total, from adding opposite infinities, is dropped as well.
func NonZero(totals map[string]float64) map[string]float64 {
	shown := make(map[string]float64, len(totals))
	for id, total := range totals {
		if total != 0 && !math.IsNaN(total) {
			shown[id] = total
		}
	}
	return shown
}
