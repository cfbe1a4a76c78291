package models

import "time"

// AnchorKind distinguishes free-text topic anchors from saved-paper anchors.
type AnchorKind string

const (
	// KindTopic is a free-text research interest.
	KindTopic AnchorKind = "topic"
	// KindPaper is a previously saved paper.
	KindPaper AnchorKind = "paper"
)

// Anchor is a single research interest: either a topic description or a saved
// paper. Text is the string that gets embedded; Title is the display label.
// For paper anchors the id equals the paper's own id, which makes saving the
// same paper twice idempotent.
type Anchor struct {
	ID      string     `json:"id"`
	Kind    AnchorKind `json:"kind"`
	Text    string     `json:"text"`
	Title   string     `json:"title"`
	AddedAt time.Time  `json:"added_at"`
}
