// Package settings manages field definitions and per-card values in host storage.
//
// Every mutation is a read-modify-write against the host; the host offers no
// transactions, so concurrent edits by several members resolve as last write wins.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
)

var (
	// ErrFieldNotFound indicates no field with the given ID is defined on the board.
	ErrFieldNotFound = errors.New("field not found")
	// ErrEmptyName indicates a field name was blank.
	ErrEmptyName = errors.New("field name is required")
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Fields returns the board's field definitions. A board without any returns
// an empty slice.
func Fields(ctx context.Context, sess host.Session) ([]domain.Field, error) {
	var fields []domain.Field
	if _, err := sess.Storage.Get(ctx, sess.Board(), host.Shared, domain.FieldsKey, &fields); err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	if fields == nil {
		fields = []domain.Field{}
	}
	return fields, nil
}

// Field returns one field definition.
func Field(ctx context.Context, sess host.Session, fieldID string) (domain.Field, error) {
	fields, err := Fields(ctx, sess)
	if err != nil {
		return domain.Field{}, err
	}
	for _, f := range fields {
		if f.ID == fieldID {
			return f, nil
		}
	}
	return domain.Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
}

// AddField defines a new field with a generated ID.
func AddField(ctx context.Context, sess host.Session, name string) (domain.Field, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Field{}, ErrEmptyName
	}
	fields, err := Fields(ctx, sess)
	if err != nil {
		return domain.Field{}, err
	}

	field := domain.Field{
		ID:      uuid.NewString(),
		Name:    name,
		Created: now(),
	}
	fields = append(fields, field)
	if err := saveFields(ctx, sess, fields); err != nil {
		return domain.Field{}, err
	}
	return field, nil
}

// RenameField changes the display name of a field.
func RenameField(ctx context.Context, sess host.Session, fieldID, name string) (domain.Field, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Field{}, ErrEmptyName
	}
	fields, err := Fields(ctx, sess)
	if err != nil {
		return domain.Field{}, err
	}
	for i := range fields {
		if fields[i].ID == fieldID {
			fields[i].Name = name
			if err := saveFields(ctx, sess, fields); err != nil {
				return domain.Field{}, err
			}
			return fields[i], nil
		}
	}
	return domain.Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
}

// DeleteField removes a field definition. Values already stored on cards for
// the field are left alone; without a definition nothing reads them.
func DeleteField(ctx context.Context, sess host.Session, fieldID string) error {
	fields, err := Fields(ctx, sess)
	if err != nil {
		return err
	}
	kept := fields[:0]
	found := false
	for _, f := range fields {
		if f.ID == fieldID {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	return saveFields(ctx, sess, kept)
}

// ValuesUpdatedAt reports when the values of a card were last written. It
// reports false when the storage keeps no write times or the card has no values.
func ValuesUpdatedAt(ctx context.Context, sess host.Session, cardID string) (time.Time, bool, error) {
	st, ok := sess.Storage.(host.Stamper)
	if !ok {
		return time.Time{}, false, nil
	}
	at, ok, err := st.UpdatedAt(ctx, host.CardScope(cardID), host.Shared, domain.FieldValuesKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load write time for card %s: %w", cardID, err)
	}
	return at, ok, nil
}

// Values returns the values stored on a card. A card without values returns
// an empty map.
func Values(ctx context.Context, sess host.Session, cardID string) (domain.ValueMap, error) {
	var values domain.ValueMap
	if _, err := sess.Storage.Get(ctx, host.CardScope(cardID), host.Shared, domain.FieldValuesKey, &values); err != nil {
		return nil, fmt.Errorf("failed to load values for card %s: %w", cardID, err)
	}
	if values == nil {
		values = domain.ValueMap{}
	}
	return values, nil
}

// SetValue stores one field value on a card. An empty raw value clears it.
func SetValue(ctx context.Context, sess host.Session, cardID, fieldID, raw string) (domain.ValueMap, error) {
	if _, err := Field(ctx, sess, fieldID); err != nil {
		return nil, err
	}
	values, err := Values(ctx, sess, cardID)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		delete(values, fieldID)
	} else {
		values[fieldID] = raw
	}
	if err := saveValues(ctx, sess, cardID, values); err != nil {
		return nil, err
	}
	return values, nil
}

// SetValues replaces every value on a card, the way the edit-values popup
// submits its form. Blank entries are dropped.
func SetValues(ctx context.Context, sess host.Session, cardID string, values domain.ValueMap) (domain.ValueMap, error) {
	cleaned := make(domain.ValueMap, len(values))
	for id, v := range values {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v = s
		}
		if v == nil {
			continue
		}
		cleaned[id] = v
	}
	if err := saveValues(ctx, sess, cardID, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// ValueReader reads card values through a session. It satisfies aggregate.ValueReader.
type ValueReader struct {
	sess host.Session
}

// NewValueReader creates a ValueReader bound to sess.
func NewValueReader(sess host.Session) ValueReader {
	return ValueReader{sess: sess}
}

// Values returns the values stored on cardID.
func (r ValueReader) Values(ctx context.Context, cardID string) (domain.ValueMap, error) {
	return Values(ctx, r.sess, cardID)
}

func saveFields(ctx context.Context, sess host.Session, fields []domain.Field) error {
	if err := sess.Storage.Set(ctx, sess.Board(), host.Shared, domain.FieldsKey, fields); err != nil {
		return fmt.Errorf("failed to save fields: %w", err)
	}
	return nil
}

func saveValues(ctx context.Context, sess host.Session, cardID string, values domain.ValueMap) error {
	if err := sess.Storage.Set(ctx, host.CardScope(cardID), host.Shared, domain.FieldValuesKey, values); err != nil {
		return fmt.Errorf("failed to save values for card %s: %w", cardID, err)
	}
	return nil
}
