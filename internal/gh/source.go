package gh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/store"
)

// NoStatusKey is the list holding items without a grouping value.
const NoStatusKey = "__no_status__"

// SourceConfig selects the project served by a Source.
type SourceConfig struct {
	Owner      string        // Organization or user login
	Number     int           // Project number
	GroupField string        // Single-select field whose options are lists; auto-selected when empty
	BoardID    string        // Board ID the project is served under; defaults to the project node ID
	MaxAge     time.Duration // Snapshot age after which reads trigger a resync; zero never resyncs
}

// Source serves a GitHub project as a board. It keeps a snapshot of the
// project in a store.Store and moves items optimistically, rolling the
// snapshot back when GitHub rejects the change.
type Source struct {
	client *Client
	cfg    SourceConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	project  *domain.Project
	field    *domain.ProjectField
	board    *store.Store
	syncedAt time.Time
}

// NewSource creates a Source. Nothing is fetched until the first read or Sync.
func NewSource(client *Client, cfg SourceConfig, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Sync fetches the project's fields and items and replaces the snapshot.
func (s *Source) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Source) syncLocked(ctx context.Context) error {
	if s.project == nil {
		project, err := s.client.FindProject(ctx, s.cfg.Owner, s.cfg.Number)
		if err != nil {
			return err
		}
		s.project = &project
	}

	fields, err := s.client.GetProjectFields(ctx, s.project.ID)
	if err != nil {
		return err
	}
	field, candidates, err := SelectGroupField(fields, s.cfg.GroupField)
	if err != nil {
		return err
	}
	if field == nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return fmt.Errorf("several SINGLE_SELECT fields found %v: set the group field", names)
	}

	items, err := s.client.GetAllItems(ctx, s.project.ID, field.Name)
	if err != nil {
		return err
	}

	boardID := s.cfg.BoardID
	if boardID == "" {
		boardID = s.project.ID
	}
	// The snapshot store is refilled in place so callers never hold a stale one
	if s.board == nil {
		s.board = store.New()
	} else {
		s.board.Clear()
	}
	s.board.SetBoard(&domain.Board{ID: boardID, Name: s.project.Title})
	s.board.UpsertLists(listsFor(*field))
	s.board.UpsertCards(cardsFor(*field, items))

	s.field = field
	s.syncedAt = s.now()

	s.logger.Debug("Synced project",
		zap.String("project", s.project.Title),
		zap.String("group_field", field.Name),
		zap.Int("items", len(items)))
	return nil
}

// snapshot returns the current board, syncing when it is missing or stale.
func (s *Source) snapshot(ctx context.Context) (*store.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx)
}

func (s *Source) snapshotLocked(ctx context.Context) (*store.Store, error) {
	stale := s.cfg.MaxAge > 0 && s.now().Sub(s.syncedAt) > s.cfg.MaxAge
	if s.board == nil || stale {
		if err := s.syncLocked(ctx); err != nil {
			if s.board == nil {
				return nil, err
			}
			s.logger.Warn("Resync failed, serving previous snapshot", zap.Error(err))
		}
	}
	return s.board, nil
}

// Board returns the board the project is served as.
func (s *Source) Board(ctx context.Context) (domain.Board, error) {
	board, err := s.snapshot(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	return *board.GetBoard(), nil
}

// Lists implements host.CardSource.
func (s *Source) Lists(ctx context.Context, boardID string) ([]domain.List, error) {
	board, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return board.Lists(ctx, boardID)
}

// Cards implements host.CardSource.
func (s *Source) Cards(ctx context.Context, boardID, listID string) ([]domain.CardRef, error) {
	board, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return board.Cards(ctx, boardID, listID)
}

// Card implements host.CardSource.
func (s *Source) Card(ctx context.Context, boardID, cardID string) (domain.CardRef, error) {
	board, err := s.snapshot(ctx)
	if err != nil {
		return domain.CardRef{}, err
	}
	return board.Card(ctx, boardID, cardID)
}

// MoveCard implements host.Mover by changing the item's grouping value.
// The source stays locked until GitHub answers so no resync can interleave
// with the optimistic move or its rollback.
func (s *Source) MoveCard(ctx context.Context, cardID, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.snapshotLocked(ctx)
	if err != nil {
		return err
	}
	if err := board.MoveCard(ctx, cardID, listID); err != nil {
		return err
	}

	if listID == NoStatusKey {
		err = s.client.ClearItemField(ctx, s.project.ID, cardID, s.field.ID)
	} else {
		err = s.client.UpdateItemField(ctx, s.project.ID, cardID, s.field.ID, listID)
	}
	if err != nil {
		if rbErr := board.RollbackMove(); rbErr != nil && !errors.Is(rbErr, store.ErrNoRollback) {
			s.logger.Error("Failed to roll back move", zap.String("card", cardID), zap.Error(rbErr))
		}
		return err
	}
	return nil
}

func listsFor(field domain.ProjectField) []domain.List {
	lists := make([]domain.List, 0, len(field.Options)+1)
	for _, opt := range field.Options {
		lists = append(lists, domain.List{ID: opt.ID, Name: opt.Name, Pos: float64(opt.Order)})
	}
	lists = append(lists, domain.List{ID: NoStatusKey, Name: "No Status", Pos: float64(len(field.Options))})
	return lists
}

// cardsFor maps items to cards. Items keep their project order as position;
// items whose option no longer exists land in No Status.
func cardsFor(field domain.ProjectField, items []Item) []domain.CardRef {
	valid := make(map[string]bool, len(field.Options))
	for _, opt := range field.Options {
		valid[opt.ID] = true
	}

	cards := make([]domain.CardRef, 0, len(items))
	for i, item := range items {
		listID := item.OptionID
		if !valid[listID] {
			listID = NoStatusKey
		}
		name := item.Title
		if item.Number > 0 && item.Repo != "" {
			name = fmt.Sprintf("%s#%d %s", item.Repo, item.Number, item.Title)
		}
		cards = append(cards, domain.CardRef{
			ID:     item.ID,
			Name:   name,
			ListID: listID,
			Pos:    float64(i),
			URL:    item.URL,
		})
	}
	return cards
}
