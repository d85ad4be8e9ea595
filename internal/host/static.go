package host

import (
	"context"

	"github.com/h0rv/sumup/internal/domain"
)

// StaticCards is a CardSource over a card collection supplied by the host
// with a callback (the list's cards payload). It serves any board ID.
type StaticCards []domain.CardRef

// Lists derives lists from the cards' list IDs, ordered by first appearance.
func (s StaticCards) Lists(ctx context.Context, boardID string) ([]domain.List, error) {
	seen := make(map[string]bool)
	var lists []domain.List
	for _, card := range s {
		if seen[card.ListID] {
			continue
		}
		seen[card.ListID] = true
		lists = append(lists, domain.List{ID: card.ListID, Name: card.ListID, Pos: float64(len(lists))})
	}
	return lists, nil
}

// Cards returns the cards of one list (or all cards) sorted by position.
func (s StaticCards) Cards(ctx context.Context, boardID, listID string) ([]domain.CardRef, error) {
	cards := make([]domain.CardRef, 0, len(s))
	for _, card := range s {
		if listID == "" || card.ListID == listID {
			cards = append(cards, card)
		}
	}
	return domain.SortByPos(cards), nil
}

// Card finds a card by ID.
func (s StaticCards) Card(ctx context.Context, boardID, cardID string) (domain.CardRef, error) {
	for _, card := range s {
		if card.ID == cardID {
			return card, nil
		}
	}
	return domain.CardRef{}, ErrCardNotFound
}
