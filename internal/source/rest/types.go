package rest

import (
	"encoding/json"
	"time"

	"github.com/nhle/notifeed/internal/model"
)

// PageResponse is the response from GET /users/{id}/notifications.
type PageResponse struct {
	Data     []Envelope         `json:"data"`
	MetaData model.PageMetadata `json:"metaData"`
}

// Envelope is one tagged item: kind names the payload shape.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SystemPayload is the payload of a SYSTEM notification.
type SystemPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity,omitempty"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// SocialPayload is the payload of a SOCIAL notification.
type SocialPayload struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Excerpt   string    `json:"excerpt,omitempty"`
	TargetURL string    `json:"targetUrl,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCountResponse is the response from GET .../unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// errorResponse is the error body returned on non-2xx responses.
type errorResponse struct {
	Error string `json:"error"`
}
