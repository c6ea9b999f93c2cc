package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// defaultPageSize is used when a query leaves PageSize unset.
const defaultPageSize = 10

// Adapter implements source.Backend over the notification REST API.
type Adapter struct {
	client *Client
}

var _ source.Backend = (*Adapter)(nil)

// NewAdapter creates a new REST backend adapter.
func NewAdapter(baseURL, token string, timeout time.Duration) *Adapter {
	return &Adapter{client: NewClient(baseURL, token, timeout)}
}

// FetchPage retrieves one page of one category and validates every item
// against the requested category before returning it.
func (a *Adapter) FetchPage(
	ctx context.Context,
	q source.Query,
) (*model.Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	params := url.Values{}
	params.Set("category", q.Category.Param())
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	if q.UnreadOnly {
		params.Set("unread", "true")
	}
	path := fmt.Sprintf(
		"/api/v1/users/%s/notifications?%s",
		url.PathEscape(q.UserID), params.Encode(),
	)

	var resp PageResponse
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetching %s page %d: %w", q.Category, page, err)
	}

	items := make([]model.Notification, 0, len(resp.Data))
	for i, env := range resp.Data {
		n, err := decodeEnvelope(q.Category, i, env)
		if err != nil {
			return nil, fmt.Errorf("fetching %s page %d: %w", q.Category, page, err)
		}
		items = append(items, n)
	}

	return &model.Page{Items: items, Meta: resp.MetaData}, nil
}

// UnreadCount returns the authoritative unread count for a user.
func (a *Adapter) UnreadCount(ctx context.Context, userID string) (int, error) {
	path := fmt.Sprintf("/api/v1/users/%s/notifications/unread-count", url.PathEscape(userID))

	var resp UnreadCountResponse
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return resp.Count, nil
}

// MarkAsRead marks a single notification as read.
func (a *Adapter) MarkAsRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read", url.PathEscape(id))
	if err := a.client.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking %s as read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead marks every notification of userID as read.
func (a *Adapter) MarkAllAsRead(ctx context.Context, userID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/notifications/read-all", url.PathEscape(userID))
	if err := a.client.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking all as read: %w", err)
	}
	return nil
}

// decodeEnvelope validates a tagged item and converts it to a record.
func decodeEnvelope(
	want model.Category,
	index int,
	env Envelope,
) (model.Notification, error) {
	invalid := func(reason string) error {
		return &source.ValidationError{Category: want, Index: index, Reason: reason}
	}

	kind, err := model.ParseCategory(env.Kind)
	if err != nil {
		return model.Notification{}, invalid(err.Error())
	}
	if kind != want {
		return model.Notification{}, invalid(fmt.Sprintf("kind %s in %s page", kind, want))
	}
	if len(env.Payload) == 0 {
		return model.Notification{}, invalid("missing payload")
	}

	var n model.Notification
	switch kind {
	case model.CategorySystem:
		var p SystemPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return model.Notification{}, invalid(err.Error())
		}
		n = model.Notification{
			ID:         p.ID,
			Category:   kind,
			Title:      p.Title,
			Body:       p.Message,
			CreatedAt:  p.CreatedAt,
			IsRead:     p.IsRead,
			LinkTarget: p.Link,
			IconKind:   systemIcon(p.Severity),
		}
	case model.CategorySocial:
		var p SocialPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return model.Notification{}, invalid(err.Error())
		}
		n = model.Notification{
			ID:         p.ID,
			Category:   kind,
			Title:      socialTitle(p),
			Body:       p.Excerpt,
			CreatedAt:  p.CreatedAt,
			IsRead:     p.IsRead,
			LinkTarget: p.TargetURL,
			IconKind:   socialIcon(p.Action),
		}
	}

	if n.ID == "" {
		return model.Notification{}, invalid("missing id")
	}
	if n.CreatedAt.IsZero() {
		return model.Notification{}, invalid("missing createdAt")
	}
	return n, nil
}

// systemIcon maps a system severity to an icon kind.
func systemIcon(severity string) model.IconKind {
	switch strings.ToLower(severity) {
	case "warning", "warn":
		return model.IconWarning
	case "alert", "critical", "error":
		return model.IconAlert
	default:
		return model.IconInfo
	}
}

// socialIcon maps a social action to an icon kind.
func socialIcon(action string) model.IconKind {
	switch strings.ToLower(action) {
	case "like", "liked":
		return model.IconLike
	case "comment", "commented", "reply":
		return model.IconComment
	case "follow", "followed":
		return model.IconFollow
	case "mention", "mentioned":
		return model.IconMention
	default:
		return model.IconSocial
	}
}

// socialTitle renders "<actor> <action>" for social records.
func socialTitle(p SocialPayload) string {
	actor := strings.TrimSpace(p.Actor)
	action := strings.TrimSpace(p.Action)
	switch {
	case actor == "":
		return action
	case action == "":
		return actor
	default:
		return actor + " " + action
	}
}
