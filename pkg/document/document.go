// Package document defines the collaborative document's data model and
// its durable storage (spec.md §3, §4.2).
package document

import (
	"time"

	"github.com/kolabo/syncpad/pkg/ot"
)

// Status is the document's publication lifecycle stage.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Cursor is the opaque-to-the-engine cursor/selection state a peer
// broadcasts; the engine never interprets its contents beyond relaying
// it, per spec.md's scope cut on "cursor-position mechanics".
type Cursor struct {
	Position     int  `json:"position"`
	SelectionEnd *int `json:"selectionEnd,omitempty"`
}

// Presence is the per-session display record broadcast to peers of the
// same document.
type Presence struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	DisplayName      string    `json:"displayName"`
	Color            string    `json:"color"`
	Avatar           string    `json:"avatar"`
	JoinedAt         time.Time `json:"joinedAt"`
	Cursor           Cursor    `json:"cursor"`
	LastCursorUpdate time.Time `json:"lastCursorUpdate"`
}

// Metadata carries the document fields that aren't raw text.
type Metadata struct {
	CreatedBy      string    `json:"createdBy"`
	LastModifiedBy string    `json:"lastModifiedBy"`
	WordCount      int       `json:"wordCount"`
	CharacterCount int       `json:"characterCount"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	LastAccessedBy string    `json:"lastAccessedBy,omitempty"`
	// Language is the supplemented syntax-highlighting tag carried over
	// from the teacher's Kolabpad.SetLanguage (see SPEC_FULL.md).
	Language string `json:"language,omitempty"`
}

// Document is the canonical, versioned text record shared by
// participants (spec.md §3).
type Document struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Content        string              `json:"content"`
	Version        int                 `json:"version"`
	OperationsTail []ot.Op             `json:"operations"`
	ActiveUsers    map[string]Presence `json:"activeUsers"`
	Metadata       Metadata            `json:"metadata"`
	// OTP is the supplemented optional access secret (see
	// SPEC_FULL.md item 2); nil means the document is unprotected.
	OTP       *string   `json:"otp,omitempty"`
	LastSaved time.Time `json:"lastSaved"`
}

// New builds an empty document record, as created lazily on first access
// to an unknown id (spec.md §3 Lifecycle).
func New(id, title, userID string) *Document {
	now := now()
	return &Document{
		ID:             id,
		Title:          title,
		Content:        "",
		Version:        0,
		OperationsTail: []ot.Op{},
		ActiveUsers:    map[string]Presence{},
		Metadata: Metadata{
			CreatedBy:      userID,
			LastModifiedBy: userID,
			Status:         StatusDraft,
			CreatedAt:      now,
			UpdatedAt:      now,
			LastAccessedAt: now,
			LastAccessedBy: userID,
		},
	}
}

// Clone returns a deep-enough copy safe to hand to a reader without
// risking a data race with the owning engine's later mutations.
func (d *Document) Clone() *Document {
	cp := *d
	cp.OperationsTail = append([]ot.Op(nil), d.OperationsTail...)
	cp.ActiveUsers = make(map[string]Presence, len(d.ActiveUsers))
	for k, v := range d.ActiveUsers {
		cp.ActiveUsers[k] = v
	}
	return &cp
}

// WordCount recomputes the metadata word count after a flush mutates
// Content (spec.md §4.3 step 4d); the engine sets CharacterCount to the
// content's byte length directly.
func WordCount(content string) int {
	count := 0
	inWord := false
	for _, r := range content {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

func now() time.Time {
	return time.Now().UTC()
}
