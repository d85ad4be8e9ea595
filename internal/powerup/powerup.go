// Package powerup renders the Sum Up Fields capabilities: board and card
// buttons, per-card value badges and the list totals shown on a list's first card.
//
// Every handler receives the host session explicitly. Badge rendering never
// fails: anything that goes wrong is logged and results in fewer badges.
package powerup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/aggregate"
	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/settings"
)

// Popup locations served by the host alongside the capability handlers.
const (
	SettingsURL   = "./settings.html"
	EditValuesURL = "./edit-values.html"

	settingsHeight   = 420
	editValuesHeight = 300
)

// DefaultBudget bounds how long the first card waits for its list totals.
const DefaultBudget = 3 * time.Second

// Policy holds the display choices for badges.
type Policy struct {
	ValueColor          domain.Color
	SumColor            domain.Color
	ShowFirstCardValues bool          // Value badges on the card that also carries the totals
	Budget              time.Duration // Non-positive means no limit
	Icon                string        // Board button icon URL
	Concurrency         int           // Card reads in flight per aggregation
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		ValueColor:          domain.ColorBlue,
		SumColor:            domain.ColorGreen,
		ShowFirstCardValues: true,
		Budget:              DefaultBudget,
		Concurrency:         aggregate.DefaultConcurrency,
	}
}

// PowerUp serves the capability handlers.
type PowerUp struct {
	policy Policy
	logger *zap.Logger
}

// New creates a PowerUp.
func New(policy Policy, logger *zap.Logger) *PowerUp {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PowerUp{policy: policy, logger: logger}
}

// BoardButtons returns the board button that opens the field settings.
func (p *PowerUp) BoardButtons(sess host.Session) []domain.Button {
	return []domain.Button{{
		Icon: p.policy.Icon,
		Text: "Sum Up Fields",
		Callback: &domain.Popup{
			Title:  "Sum Up Fields Settings",
			URL:    SettingsURL,
			Height: settingsHeight,
		},
	}}
}

// CardButtons returns the card button that opens the value editor.
func (p *PowerUp) CardButtons(sess host.Session) []domain.Button {
	return []domain.Button{{
		Icon: p.policy.Icon,
		Text: "Edit Sum Up values",
		Callback: &domain.Popup{
			Title:  "Edit Sum Up values",
			URL:    EditValuesURL,
			Height: editValuesHeight,
		},
	}}
}

// CardBadges returns the badges for one card: a value badge per field holding
// a number, and when the card is first in its list, the non-zero list totals.
func (p *PowerUp) CardBadges(ctx context.Context, sess host.Session, cardID string) []domain.Badge {
	sess = sess.ForCard(cardID)
	log := p.logger.With(zap.String("board", sess.Context.Board), zap.String("card", cardID))

	fields, err := settings.Fields(ctx, sess)
	if err != nil {
		log.Warn("Failed to load fields", zap.Error(err))
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	cards, err := p.listCardsOf(ctx, sess, cardID)
	if err != nil {
		log.Warn("Failed to load list cards", zap.Error(err))
		cards = nil
	}
	first, ok := domain.FirstCard(cards)
	isFirst := ok && first.ID == cardID

	var badges []domain.Badge
	if !isFirst || p.policy.ShowFirstCardValues {
		values, err := settings.Values(ctx, sess, cardID)
		if err != nil {
			log.Warn("Failed to load card values", zap.Error(err))
		} else {
			badges = append(badges, p.valueBadges(fields, values)...)
		}
	}

	if isFirst {
		totals, err := p.sum(ctx, sess, fields, cards, p.policy.Budget)
		if err != nil {
			log.Info("List totals unavailable", zap.Error(err))
		} else {
			badges = append(badges, p.sumBadges(fields, totals)...)
		}
	}
	return badges
}

// ListSum computes the live totals of a list. A board without fields yields
// an empty map.
func (p *PowerUp) ListSum(ctx context.Context, sess host.Session, listID string) (map[string]float64, error) {
	fields, err := settings.Fields(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return map[string]float64{}, nil
	}
	cards, err := p.listCards(ctx, sess, listID)
	if err != nil {
		return nil, err
	}
	return p.sum(ctx, sess, fields, cards, 0)
}

// RefreshCache recomputes a list's totals and stores them in the board's sum
// cache. Values written while the computation runs may leave the cache stale
// until the next refresh.
func (p *PowerUp) RefreshCache(ctx context.Context, sess host.Session, listID string) (domain.CachedSum, error) {
	fields, err := settings.Fields(ctx, sess)
	if err != nil {
		return domain.CachedSum{}, err
	}
	cards, err := p.listCards(ctx, sess, listID)
	if err != nil {
		return domain.CachedSum{}, err
	}
	totals, err := p.sum(ctx, sess, fields, cards, 0)
	if err != nil {
		return domain.CachedSum{}, err
	}

	contributing := len(cards) - 1
	if contributing < 0 {
		contributing = 0
	}
	entry := domain.CachedSum{
		ListID:     listID,
		Totals:     totals,
		Cards:      contributing,
		ComputedAt: time.Now().UTC(),
	}

	cache, err := p.loadCache(ctx, sess)
	if err != nil {
		return domain.CachedSum{}, err
	}
	cache[listID] = entry
	if err := sess.Storage.Set(ctx, sess.Board(), host.Shared, domain.ListSumsKey, cache); err != nil {
		return domain.CachedSum{}, fmt.Errorf("failed to save list sums: %w", err)
	}
	return entry, nil
}

// CachedSum returns the last stored totals of a list, which may be stale.
// The boolean is false when the list has never been cached.
func (p *PowerUp) CachedSum(ctx context.Context, sess host.Session, listID string) (domain.CachedSum, bool, error) {
	cache, err := p.loadCache(ctx, sess)
	if err != nil {
		return domain.CachedSum{}, false, err
	}
	entry, ok := cache[listID]
	return entry, ok, nil
}

func (p *PowerUp) valueBadges(fields []domain.Field, values domain.ValueMap) []domain.Badge {
	var badges []domain.Badge
	for _, f := range fields {
		v, ok := values[f.ID]
		if !ok || !aggregate.IsNumeric(v) {
			continue
		}
		badges = append(badges, domain.Badge{
			Kind:    domain.BadgeValue,
			FieldID: f.ID,
			Text:    fmt.Sprintf("%s: %s", f.Name, displayValue(v)),
			Color:   p.policy.ValueColor,
			Callback: &domain.Popup{
				Title:  "Edit " + f.Name,
				URL:    EditValuesURL,
				Height: editValuesHeight,
			},
		})
	}
	return badges
}

func (p *PowerUp) sumBadges(fields []domain.Field, totals map[string]float64) []domain.Badge {
	shown := aggregate.NonZero(totals)
	var badges []domain.Badge
	for _, f := range fields {
		total, ok := shown[f.ID]
		if !ok {
			continue
		}
		badges = append(badges, domain.Badge{
			Kind:    domain.BadgeSum,
			FieldID: f.ID,
			Text:    fmt.Sprintf("∑ %s: %s", f.Name, aggregate.FormatNumber(total)),
			Color:   p.policy.SumColor,
			Dynamic: true,
		})
	}
	return badges
}

func (p *PowerUp) sum(ctx context.Context, sess host.Session, fields []domain.Field, cards []domain.CardRef, budget time.Duration) (map[string]float64, error) {
	agg := aggregate.New(settings.NewValueReader(sess), p.logger, aggregate.WithConcurrency(p.policy.Concurrency))
	return agg.SumWithin(ctx, budget, fields, cards)
}

// listCardsOf returns the sorted cards of the list holding cardID.
func (p *PowerUp) listCardsOf(ctx context.Context, sess host.Session, cardID string) ([]domain.CardRef, error) {
	if sess.Cards == nil {
		return nil, errors.New("no card source")
	}
	card, err := sess.Cards.Card(ctx, sess.Context.Board, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve card %s: %w", cardID, err)
	}
	return p.listCards(ctx, sess, card.ListID)
}

func (p *PowerUp) listCards(ctx context.Context, sess host.Session, listID string) ([]domain.CardRef, error) {
	if sess.Cards == nil {
		return nil, errors.New("no card source")
	}
	cards, err := sess.Cards.Cards(ctx, sess.Context.Board, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of %s: %w", listID, err)
	}
	return domain.SortByPos(domain.FilterList(cards, listID)), nil
}

func (p *PowerUp) loadCache(ctx context.Context, sess host.Session) (map[string]domain.CachedSum, error) {
	var cache map[string]domain.CachedSum
	if _, err := sess.Storage.Get(ctx, sess.Board(), host.Shared, domain.ListSumsKey, &cache); err != nil {
		return nil, fmt.Errorf("failed to load list sums: %w", err)
	}
	if cache == nil {
		cache = make(map[string]domain.CachedSum)
	}
	return cache, nil
}

// displayValue renders a stored value as the user entered it.
func displayValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return aggregate.FormatNumber(aggregate.ParseValue(v))
}
