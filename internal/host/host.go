// Package host describes the collaborators a Power-Up is given by its host:
// scoped key-value storage and card enumeration. Every operation in this
// repository receives a Session explicitly instead of reading a shared handle.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/h0rv/sumup/internal/domain"
)

var (
	// ErrCardNotFound indicates the requested card does not exist in the card source.
	ErrCardNotFound = errors.New("card not found")
	// ErrListNotFound indicates the requested list does not exist.
	ErrListNotFound = errors.New("list not found")
	// ErrBoardNotFound indicates the card source does not serve the requested board.
	ErrBoardNotFound = errors.New("board not found")
)

// Visibility controls who can read a stored value.
type Visibility string

const (
	// Shared values are visible to every board member.
	Shared Visibility = "shared"
	// Private values are visible to the member who wrote them.
	Private Visibility = "private"
)

// ScopeKind is the kind of object a value is attached to.
type ScopeKind string

const (
	ScopeBoard ScopeKind = "board"
	ScopeCard  ScopeKind = "card"
)

// Scope identifies the object a stored value belongs to.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// BoardScope returns the scope of a board.
func BoardScope(boardID string) Scope {
	return Scope{Kind: ScopeBoard, ID: boardID}
}

// CardScope returns the scope of a card.
func CardScope(cardID string) Scope {
	return Scope{Kind: ScopeCard, ID: cardID}
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID
}

// Storage is host-managed key-value storage.
// Get decodes the stored value into dest and reports whether it was present.
type Storage interface {
	Get(ctx context.Context, scope Scope, vis Visibility, key string, dest any) (bool, error)
	Set(ctx context.Context, scope Scope, vis Visibility, key string, value any) error
	Remove(ctx context.Context, scope Scope, vis Visibility, key string) error
}

// CardSource enumerates the lists and cards of a board.
// Cards with an empty listID returns every card on the board.
type CardSource interface {
	Lists(ctx context.Context, boardID string) ([]domain.List, error)
	Cards(ctx context.Context, boardID, listID string) ([]domain.CardRef, error)
	Card(ctx context.Context, boardID, cardID string) (domain.CardRef, error)
}

// Mover is implemented by card sources that can move a card to another list.
type Mover interface {
	MoveCard(ctx context.Context, cardID, listID string) error
}

// Positioner is implemented by card sources that can place a card at an
// explicit position, such as the top of its list.
type Positioner interface {
	SetPosition(ctx context.Context, cardID, listID string, pos float64) error
}

// Stamper is implemented by storages that record when a value was last written.
type Stamper interface {
	UpdatedAt(ctx context.Context, scope Scope, vis Visibility, key string) (time.Time, bool, error)
}

// Change describes one write observed by a Watcher.
type Change struct {
	Scope      Scope
	Visibility Visibility
	Key        string
}

// Watcher is implemented by storages that push change notifications.
// The returned channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// Context is what the host tells a callback about where it was invoked.
type Context struct {
	Board  string
	List   string // Optional; resolved from the card when empty
	Card   string
	Member string
}

// Session bundles the host collaborators for one invocation.
type Session struct {
	Storage Storage
	Cards   CardSource
	Context Context
}

// ForCard returns a copy of the session narrowed to a card.
func (s Session) ForCard(cardID string) Session {
	s.Context.Card = cardID
	s.Context.List = ""
	return s
}

// ForList returns a copy of the session narrowed to a list.
func (s Session) ForList(listID string) Session {
	s.Context.List = listID
	return s
}

// Board returns the scope of the session's board.
func (s Session) Board() Scope {
	return BoardScope(s.Context.Board)
}

// Encode serializes a value for storage adapters.
func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return data, nil
}

// Decode deserializes stored data into dest. Numbers decode as float64 when
// dest is an interface.
func Decode(data []byte, dest any) error {
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}
