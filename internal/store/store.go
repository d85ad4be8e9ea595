// Package store provides an in-memory board: lists, cards and their positions.
// It groups cards into lists ordered by position and serves them as a
// host.CardSource, following the "deep modules" principle - a simple interface
// hiding the grouping and ordering logic.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
)

var (
	// ErrCardNotFound indicates the requested card does not exist.
	ErrCardNotFound = host.ErrCardNotFound
	// ErrListNotFound indicates the requested list does not exist.
	ErrListNotFound = host.ErrListNotFound
	// ErrNoRollback indicates there is no move to roll back.
	ErrNoRollback = errors.New("no rollback state available")
)

// posStep is the gap left between consecutive card positions.
const posStep = 1024

// Store manages the in-memory state of one board.
// It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	board *domain.Board

	lists map[string]*domain.List    // ListID -> List
	cards map[string]*domain.CardRef // CardID -> Card

	// Column mapping: ListID -> []CardID sorted by position
	columns map[string][]string

	// Rollback state for optimistic moves
	rollbackCard *domain.CardRef
}

// New creates a new empty Store instance.
func New() *Store {
	return &Store{
		lists:   make(map[string]*domain.List),
		cards:   make(map[string]*domain.CardRef),
		columns: make(map[string][]string),
	}
}

// SetBoard sets the board metadata.
func (s *Store) SetBoard(board *domain.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = board
}

// GetBoard returns the current board, or nil if not set.
func (s *Store) GetBoard() *domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// UpsertLists adds or updates lists.
func (s *Store) UpsertLists(lists []domain.List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range lists {
		l := list
		s.lists[l.ID] = &l
	}
	s.rebuildColumns()
}

// GetLists returns every list ordered by position.
func (s *Store) GetLists() []domain.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lists := make([]domain.List, 0, len(s.lists))
	for _, l := range s.lists {
		lists = append(lists, *l)
	}
	return domain.SortLists(lists)
}

// UpsertCards adds or updates multiple cards in the store.
// Cards referencing an unknown list create that list.
func (s *Store) UpsertCards(cards []domain.CardRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range cards {
		c := card
		s.cards[c.ID] = &c
		if _, ok := s.lists[c.ListID]; !ok {
			s.lists[c.ListID] = &domain.List{ID: c.ListID, Name: c.ListID, Pos: float64(len(s.lists) * posStep)}
		}
	}
	s.rebuildColumns()
}

// GetCard retrieves a card by ID, returning ErrCardNotFound if not found.
func (s *Store) GetCard(cardID string) (domain.CardRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[cardID]
	if !ok {
		return domain.CardRef{}, ErrCardNotFound
	}
	return *card, nil
}

// GetAllCards returns all cards in the store ordered by list then position.
func (s *Store) GetAllCards() []domain.CardRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cards := make([]domain.CardRef, 0, len(s.cards))
	for _, list := range s.sortedListsLocked() {
		for _, id := range s.columns[list.ID] {
			cards = append(cards, *s.cards[id])
		}
	}
	return cards
}

// GetListCards returns the cards of a list ordered by position.
func (s *Store) GetListCards(listID string) []domain.CardRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.columns[listID]
	cards := make([]domain.CardRef, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, *s.cards[id])
	}
	return cards
}

// MoveCard performs an optimistic move of a card to the end of another list.
// The previous state is saved for potential rollback.
func (s *Store) MoveCard(ctx context.Context, cardID, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		return ErrCardNotFound
	}
	if _, ok := s.lists[listID]; !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}

	pos := float64(posStep)
	if ids := s.columns[listID]; len(ids) > 0 {
		pos = s.cards[ids[len(ids)-1]].Pos + posStep
	}

	previous := *card
	s.rollbackCard = &previous

	card.ListID = listID
	card.Pos = pos
	s.rebuildColumns()
	return nil
}

// SetPosition places a card at an explicit position in a list. Like MoveCard
// it saves the previous state for RollbackMove.
func (s *Store) SetPosition(ctx context.Context, cardID, listID string, pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		return ErrCardNotFound
	}
	if _, ok := s.lists[listID]; !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}

	previous := *card
	s.rollbackCard = &previous

	card.ListID = listID
	card.Pos = pos
	s.rebuildColumns()
	return nil
}

// RollbackMove reverts the last move.
// This should be called when the move failed upstream.
func (s *Store) RollbackMove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rollbackCard == nil {
		return ErrNoRollback
	}
	restored := *s.rollbackCard
	s.cards[restored.ID] = &restored
	s.rollbackCard = nil
	s.rebuildColumns()
	return nil
}

// Lists implements host.CardSource.
func (s *Store) Lists(ctx context.Context, boardID string) ([]domain.List, error) {
	if err := s.checkBoard(boardID); err != nil {
		return nil, err
	}
	return s.GetLists(), nil
}

// Cards implements host.CardSource. An empty listID returns every card.
func (s *Store) Cards(ctx context.Context, boardID, listID string) ([]domain.CardRef, error) {
	if err := s.checkBoard(boardID); err != nil {
		return nil, err
	}
	if listID == "" {
		return s.GetAllCards(), nil
	}
	return s.GetListCards(listID), nil
}

// Card implements host.CardSource.
func (s *Store) Card(ctx context.Context, boardID, cardID string) (domain.CardRef, error) {
	if err := s.checkBoard(boardID); err != nil {
		return domain.CardRef{}, err
	}
	return s.GetCard(cardID)
}

// Clear removes every list and card, preserving the board. A pending
// rollback is dropped.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = make(map[string]*domain.List)
	s.cards = make(map[string]*domain.CardRef)
	s.columns = make(map[string][]string)
	s.rollbackCard = nil
}

func (s *Store) checkBoard(boardID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if boardID == "" || s.board == nil || s.board.ID == boardID {
		return nil
	}
	return fmt.Errorf("%w: %s", host.ErrBoardNotFound, boardID)
}

func (s *Store) sortedListsLocked() []domain.List {
	lists := make([]domain.List, 0, len(s.lists))
	for _, l := range s.lists {
		lists = append(lists, *l)
	}
	return domain.SortLists(lists)
}

// rebuildColumns reconstructs the list -> cards mapping from current cards.
// Callers must hold the write lock.
func (s *Store) rebuildColumns() {
	grouped := make(map[string][]domain.CardRef)
	for _, card := range s.cards {
		grouped[card.ListID] = append(grouped[card.ListID], *card)
	}

	s.columns = make(map[string][]string, len(grouped))
	for listID, cards := range grouped {
		sorted := domain.SortByPos(cards)
		ids := make([]string, len(sorted))
		for i, c := range sorted {
			ids[i] = c.ID
		}
		s.columns[listID] = ids
	}
}
