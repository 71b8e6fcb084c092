package notifier

import (
	"fmt"
	"strings"
	"time"

	"notify-dispatch/internal/domain/entity"
)

const (
	// Robots reject oversized payloads; DingTalk and WeChat Work cap markdown at 4096 bytes.
	maxRobotContentLength = 4000
	truncationSuffix      = "..."
)

// levelBadge returns the level prefix shown in chat payloads.
func levelBadge(msg *entity.Message) string {
	switch msg.Level {
	case entity.LevelInfo:
		return "ℹ️ [INFO]"
	case entity.LevelWarning:
		return "⚠️ [WARNING]"
	case entity.LevelCritical:
		return "🚨 [CRITICAL]"
	default:
		return msg.LevelTag()
	}
}

// headline is the badge followed by the title, e.g. "⚠️ [WARNING] Disk full".
func headline(msg *entity.Message) string {
	if msg.Title == "" {
		return levelBadge(msg)
	}
	return levelBadge(msg) + " " + msg.Title
}

// footer names the producer and the creation time.
func footer(msg *entity.Message) string {
	ts := msg.Timestamp.UTC().Format(time.RFC3339)
	if msg.Source == "" {
		return ts
	}
	return fmt.Sprintf("%s · %s", msg.Source, ts)
}

// markdownText renders msg for robots that accept markdown.
func markdownText(msg *entity.Message) string {
	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(headline(msg))
	b.WriteString("\n\n")
	if msg.Content != "" {
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("> ")
	b.WriteString(footer(msg))
	return truncateText(b.String(), maxRobotContentLength, truncationSuffix)
}

// plainText renders msg as plain text, used by Feishu and the email body.
func plainText(msg *entity.Message) string {
	var b strings.Builder
	b.WriteString(headline(msg))
	b.WriteString("\n")
	if msg.Content != "" {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(footer(msg))
	return b.String()
}
