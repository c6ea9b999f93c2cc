package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewAdapter(ts.URL, "secret", 5*time.Second)
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("sends query and decodes tagged items", func(t *testing.T) {
		t.Parallel()

		var gotReq *http.Request
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			gotReq = r
			resp := PageResponse{
				Data: []Envelope{
					{Kind: "SOCIAL", Payload: rawJSON(t, SocialPayload{
						ID: "s1", Actor: "mira", Action: "liked", Excerpt: "your outfit",
						TargetURL: "/outfits/9", CreatedAt: created,
					})},
				},
				MetaData: model.NewPageMetadata(12, 2, 10),
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		})

		page, err := a.FetchPage(context.Background(), source.Query{
			UserID: "u 1", Category: model.CategorySocial, UnreadOnly: true, Page: 2, PageSize: 10,
		})
		require.NoError(t, err)

		assert.Equal(t, "/api/v1/users/u%201/notifications", gotReq.URL.EscapedPath())
		assert.Equal(t, "social", gotReq.URL.Query().Get("category"))
		assert.Equal(t, "2", gotReq.URL.Query().Get("page"))
		assert.Equal(t, "10", gotReq.URL.Query().Get("pageSize"))
		assert.Equal(t, "true", gotReq.URL.Query().Get("unread"))
		assert.Equal(t, "Bearer secret", gotReq.Header.Get("Authorization"))
		assert.NotEmpty(t, gotReq.Header.Get("X-Request-ID"))

		require.Len(t, page.Items, 1)
		n := page.Items[0]
		assert.Equal(t, "s1", n.ID)
		assert.Equal(t, model.CategorySocial, n.Category)
		assert.Equal(t, "mira liked", n.Title)
		assert.Equal(t, "your outfit", n.Body)
		assert.Equal(t, "/outfits/9", n.LinkTarget)
		assert.Equal(t, model.IconLike, n.IconKind)
		assert.True(t, created.Equal(n.CreatedAt))
		assert.Equal(t, 12, page.Meta.TotalCount)
		assert.True(t, page.Meta.HasPrevious)
	})

	t.Run("omits unread param for full listing", func(t *testing.T) {
		t.Parallel()

		var query string
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			json.NewEncoder(w).Encode(PageResponse{})
		})

		_, err := a.FetchPage(context.Background(), source.Query{
			UserID: "u1", Category: model.CategorySystem,
		})
		require.NoError(t, err)
		assert.NotContains(t, query, "unread")
		assert.Contains(t, query, "page=1")
		assert.Contains(t, query, "pageSize=10")
	})

	t.Run("rejects item of another category", func(t *testing.T) {
		t.Parallel()

		a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(PageResponse{Data: []Envelope{
				{Kind: "SYSTEM", Payload: rawJSON(t, SystemPayload{ID: "x", CreatedAt: created})},
			}})
		})

		_, err := a.FetchPage(context.Background(), source.Query{UserID: "u1", Category: model.CategorySocial})
		require.Error(t, err)
		assert.True(t, source.IsValidationError(err))
	})

	t.Run("rejects payload without id", func(t *testing.T) {
		t.Parallel()

		a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(PageResponse{Data: []Envelope{
				{Kind: "SYSTEM", Payload: rawJSON(t, SystemPayload{Title: "no id", CreatedAt: created})},
			}})
		})

		_, err := a.FetchPage(context.Background(), source.Query{UserID: "u1", Category: model.CategorySystem})
		assert.True(t, source.IsValidationError(err))
	})

	t.Run("surfaces http errors", func(t *testing.T) {
		t.Parallel()

		a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream down"}`))
		})

		_, err := a.FetchPage(context.Background(), source.Query{UserID: "u1", Category: model.CategorySystem})
		require.Error(t, err)
		assert.True(t, source.IsStatus(err, http.StatusBadGateway))
		assert.Contains(t, err.Error(), "upstream down")
	})

	t.Run("maps 401 to AuthError", func(t *testing.T) {
		t.Parallel()

		a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := a.FetchPage(context.Background(), source.Query{UserID: "u1", Category: model.CategorySystem})
		assert.True(t, source.IsAuthError(err))
	})
}

func TestClientRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(UnreadCountResponse{Count: 4})
	})

	n, err := a.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMutations(t *testing.T) {
	t.Parallel()

	t.Run("mark as read posts to record path", func(t *testing.T) {
		t.Parallel()

		var method, path string
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			method, path = r.Method, r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, a.MarkAsRead(context.Background(), "n-7"))
		assert.Equal(t, http.MethodPost, method)
		assert.Equal(t, "/api/v1/notifications/n-7/read", path)
	})

	t.Run("mark all as read posts to user path", func(t *testing.T) {
		t.Parallel()

		var path string
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, a.MarkAllAsRead(context.Background(), "u1"))
		assert.Equal(t, "/api/v1/users/u1/notifications/read-all", path)
	})

	t.Run("mutation failure is returned", func(t *testing.T) {
		t.Parallel()

		a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := a.MarkAllAsRead(context.Background(), "u1")
		assert.True(t, source.IsStatus(err, http.StatusInternalServerError))
	})
}

func TestIconMapping(t *testing.T) {
	tests := []struct {
		got  model.IconKind
		want model.IconKind
	}{
		{systemIcon("critical"), model.IconAlert},
		{systemIcon("warning"), model.IconWarning},
		{systemIcon(""), model.IconInfo},
		{socialIcon("commented"), model.IconComment},
		{socialIcon("followed"), model.IconFollow},
		{socialIcon("mentioned"), model.IconMention},
		{socialIcon("shared"), model.IconSocial},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}
