// Package moderation fans post workflow events out to connected moderators.
// Subscribers receive them over Server-Sent Events or a WebSocket; see handlers.go.
package moderation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/blog-go/models"
)

// EventType names a post workflow transition.
type EventType string

const (
	PostCreated  EventType = "post.created"
	PostUpdated  EventType = "post.updated"
	PostApproved EventType = "post.approved"
	PostRejected EventType = "post.rejected"
	PostDeleted  EventType = "post.deleted"
)

// Event is one workflow transition. It carries identifiers and states only, never post content.
type Event struct {
	ID       string               `json:"id"`
	Type     EventType            `json:"type"`
	PostID   string               `json:"post_id"`
	AuthorID string               `json:"author_id,omitempty"`
	Title    string               `json:"title,omitempty"`
	Approval models.ApprovalState `json:"approval,omitempty"`
	At       time.Time            `json:"at"`
}

// NewPostEvent builds the event for a transition of post.
func NewPostEvent(eventType EventType, post *models.Post, at time.Time) Event {
	return Event{
		Type:     eventType,
		PostID:   post.ID,
		AuthorID: post.AuthorID,
		Title:    post.Title,
		Approval: post.Approval,
		At:       at,
	}
}

// SSE renders the event in text/event-stream framing:
//
//	id: <id>
//	event: <type>
//	data: <json>
func (e Event) SSE() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encoding moderation event: %w", err)
	}
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	fmt.Fprintf(&b, "event: %s\n", e.Type)
	fmt.Fprintf(&b, "data: %s\n\n", data)
	return b.String(), nil
}
