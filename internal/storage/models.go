package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HuddleRecord is one finished interaction in the durable history log.
// This log exists for the human-browsable history view; the vector memory in
// the retrieval package is a separate sink that receives the same
// interactions independently.
type HuddleRecord struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	ScreenshotText string    `json:"screenshot_text"`
	UserDraft      string    `json:"user_draft"`
	AISuggested    string    `json:"ai_suggested"`
	UserFinal      string    `json:"user_final"`
}
