package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conventional message levels. Any other non-empty level is accepted as-is.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

const (
	maxTitleLength   = 256
	maxContentLength = 16 * 1024
)

// Message is a single notification produced by an upstream system.
// ID and Timestamp are assigned by NewMessage and never change afterwards.
type Message struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with a fresh ID and the current time.
// An empty level defaults to LevelInfo.
func NewMessage(level, title, content, source string) *Message {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = LevelInfo
	}
	return &Message{
		ID:        uuid.New().String(),
		Level:     level,
		Title:     title,
		Content:   content,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks that the message has something to deliver.
func (m *Message) Validate() error {
	if m == nil {
		return invalid("message", "message is required")
	}
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Content) == "" {
		return invalid("title", "title or content is required")
	}
	if len(m.Title) > maxTitleLength {
		return invalid("title", "title must not exceed %d characters", maxTitleLength)
	}
	if len(m.Content) > maxContentLength {
		return invalid("content", "content must not exceed %d bytes", maxContentLength)
	}
	if m.Timestamp.IsZero() {
		return invalid("timestamp", "timestamp is required")
	}
	return nil
}

// LevelTag returns the upper-cased bracket tag used in channel payloads, e.g. "[WARNING]".
func (m *Message) LevelTag() string {
	level := m.Level
	if level == "" {
		level = LevelInfo
	}
	return "[" + strings.ToUpper(level) + "]"
}
