package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/powerup"
	"github.com/h0rv/sumup/internal/storage/memory"
)

// Test fixtures
func createTestCards() []domain.CardRef {
	return []domain.CardRef{
		{ID: "A", Name: "Summary", ListID: "todo", Pos: 1},
		{ID: "B", Name: "Login", ListID: "todo", Pos: 2},
		{ID: "C", Name: "Signup", ListID: "todo", Pos: 3},
	}
}

func createTestServer(cards host.CardSource) *Server {
	return New(powerup.New(powerup.DefaultPolicy(), zap.NewNop()), memory.New(), cards, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func addField(t *testing.T, h http.Handler, name string) domain.Field {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/boards/b1/fields", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.Field](t, rec)
}

func TestHealth(t *testing.T) {
	rec := do(t, createTestServer(nil), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestButtons(t *testing.T) {
	srv := createTestServer(nil)

	rec := do(t, srv, http.MethodGet, "/boards/b1/buttons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buttons := decodeBody[[]domain.Button](t, rec)
	require.Len(t, buttons, 1)
	assert.Equal(t, "./settings.html", buttons[0].Callback.URL)

	rec = do(t, srv, http.MethodGet, "/boards/b1/cards/A/buttons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buttons = decodeBody[[]domain.Button](t, rec)
	assert.Equal(t, "./edit-values.html", buttons[0].Callback.URL)
}

func TestFieldsCRUD(t *testing.T) {
	srv := createTestServer(nil)

	rec := do(t, srv, http.MethodGet, "/boards/b1/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	field := addField(t, srv, "Points")
	assert.Equal(t, "Points", field.Name)

	rec = do(t, srv, http.MethodPut, "/boards/b1/fields/"+field.ID, map[string]string{"name": "Story points"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Story points", decodeBody[domain.Field](t, rec).Name)

	rec = do(t, srv, http.MethodGet, "/boards/b1/fields", nil)
	fields := decodeBody[[]domain.Field](t, rec)
	require.Len(t, fields, 1)

	rec = do(t, srv, http.MethodGet, "/boards/other/fields", nil)
	assert.JSONEq(t, "[]", rec.Body.String(), "fields are board scoped")

	rec = do(t, srv, http.MethodDelete, "/boards/b1/fields/"+field.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/boards/b1/fields/"+field.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "field not found")
}

func TestFields_BadRequests(t *testing.T) {
	srv := createTestServer(nil)

	rec := do(t, srv, http.MethodPost, "/boards/b1/fields", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/boards/b1/fields", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/boards/b1/fields/missing", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValues(t *testing.T) {
	srv := createTestServer(nil)
	field := addField(t, srv, "Points")

	rec := do(t, srv, http.MethodGet, "/boards/b1/cards/B/values", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())

	rec = do(t, srv, http.MethodPut, "/boards/b1/cards/B/values", map[string]any{field.ID: "5", "stale": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ValueMap{field.ID: "5"}, decodeBody[domain.ValueMap](t, rec))

	rec = do(t, srv, http.MethodPut, "/boards/b1/cards/B/values/"+field.ID, map[string]string{"value": "8"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/boards/b1/cards/B/values", nil)
	assert.Equal(t, domain.ValueMap{field.ID: "8"}, decodeBody[domain.ValueMap](t, rec))

	rec = do(t, srv, http.MethodPut, "/boards/b1/cards/B/values/missing", map[string]string{"value": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadges_ConfiguredSource(t *testing.T) {
	srv := createTestServer(host.StaticCards(createTestCards()))
	field := addField(t, srv, "Points")
	do(t, srv, http.MethodPut, "/boards/b1/cards/B/values", map[string]any{field.ID: "5"})
	do(t, srv, http.MethodPut, "/boards/b1/cards/C/values", map[string]any{field.ID: 3})

	rec := do(t, srv, http.MethodGet, "/boards/b1/cards/A/badges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	badges := decodeBody[[]domain.Badge](t, rec)
	require.Len(t, badges, 1)
	assert.Equal(t, "∑ Points: 8", badges[0].Text)
	assert.Equal(t, domain.BadgeSum, badges[0].Kind)

	rec = do(t, srv, http.MethodGet, "/boards/b1/cards/C/badges", nil)
	badges = decodeBody[[]domain.Badge](t, rec)
	require.Len(t, badges, 1)
	assert.Equal(t, "Points: 3", badges[0].Text)
}

func TestBadges_RequestSuppliedCards(t *testing.T) {
	srv := createTestServer(nil)
	field := addField(t, srv, "Points")
	do(t, srv, http.MethodPut, "/boards/b1/cards/B/values", map[string]any{field.ID: "5"})

	rec := do(t, srv, http.MethodPost, "/boards/b1/cards/A/badges", badgesRequest{Cards: createTestCards()})
	require.Equal(t, http.StatusOK, rec.Code)
	badges := decodeBody[[]domain.Badge](t, rec)
	require.Len(t, badges, 1)
	assert.Equal(t, "∑ Points: 5", badges[0].Text)

	rec = do(t, srv, http.MethodGet, "/boards/b1/cards/A/badges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "no card source, no sums")
}

func TestListSum(t *testing.T) {
	srv := createTestServer(host.StaticCards(createTestCards()))
	field := addField(t, srv, "Points")
	do(t, srv, http.MethodPut, "/boards/b1/cards/B/values", map[string]any{field.ID: "5"})

	rec := do(t, srv, http.MethodGet, "/boards/b1/lists/todo/sum?cached=1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/boards/b1/lists/todo/sum", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live := decodeBody[sumResponse](t, rec)
	assert.False(t, live.Cached)
	assert.Equal(t, 5.0, live.Totals[field.ID])

	rec = do(t, srv, http.MethodPost, "/boards/b1/lists/todo/sum", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/boards/b1/lists/todo/sum?cached=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decodeBody[sumResponse](t, rec)
	assert.True(t, cached.Cached)
	assert.NotNil(t, cached.ComputedAt)
	assert.Equal(t, 5.0, cached.Totals[field.ID])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := createTestServer(nil)

	rec := do(t, srv, http.MethodPatch, "/boards/b1/fields", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeBody[errorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodGet, "/boards/b1/cards/c1/sum", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeBody[errorResponse](t, rec).Error)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(host.ErrCardNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := createTestServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, addr, time.Second)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
