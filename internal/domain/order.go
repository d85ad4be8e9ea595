package domain

import "sort"

// SortByPos returns a copy of cards ordered by ascending position.
// Equal positions are ordered by card ID so the order is deterministic.
func SortByPos(cards []CardRef) []CardRef {
	sorted := make([]CardRef, len(cards))
	copy(sorted, cards)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Pos != sorted[j].Pos {
			return sorted[i].Pos < sorted[j].Pos
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// FilterList returns the cards that belong to listID, preserving order.
func FilterList(cards []CardRef, listID string) []CardRef {
	filtered := make([]CardRef, 0, len(cards))
	for _, card := range cards {
		if card.ListID == listID {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// FirstCard returns the card with the minimum position. The input need not be sorted.
func FirstCard(cards []CardRef) (CardRef, bool) {
	if len(cards) == 0 {
		return CardRef{}, false
	}
	first := cards[0]
	for _, card := range cards[1:] {
		if card.Pos < first.Pos || (card.Pos == first.Pos && card.ID < first.ID) {
			first = card
		}
	}
	return first, true
}

// SortLists returns a copy of lists ordered by ascending position.
func SortLists(lists []List) []List {
	sorted := make([]List, len(lists))
	copy(sorted, lists)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pos < sorted[j].Pos
	})
	return sorted
}
