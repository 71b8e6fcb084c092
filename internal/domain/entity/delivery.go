package entity

import "time"

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	StatusSuccess DeliveryStatus = "success"
	StatusFailed  DeliveryStatus = "failed"
)

// Diagnostics with a fixed meaning.
const (
	DiagnosticTimeout   = "timeout"
	DiagnosticCancelled = "cancelled"
)

// DeliveryResult records delivering one message through one channel.
// Error is set iff Status is StatusFailed.
type DeliveryResult struct {
	ChannelName string
	ChannelType ChannelType
	Status      DeliveryStatus
	Error       string
	Attempts    int
	Timestamp   time.Time
}

// Succeeded reports whether the delivery succeeded.
func (r DeliveryResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// NewSuccess builds a successful result for key.
func NewSuccess(key ChannelKey, attempts int, at time.Time) DeliveryResult {
	return DeliveryResult{
		ChannelName: key.Name,
		ChannelType: key.Type,
		Status:      StatusSuccess,
		Attempts:    attempts,
		Timestamp:   at,
	}
}

// NewFailure builds a failed result carrying diagnostic.
func NewFailure(key ChannelKey, diagnostic string, attempts int, at time.Time) DeliveryResult {
	if diagnostic == "" {
		diagnostic = "delivery failed"
	}
	return DeliveryResult{
		ChannelName: key.Name,
		ChannelType: key.Type,
		Status:      StatusFailed,
		Error:       diagnostic,
		Attempts:    attempts,
		Timestamp:   at,
	}
}

// HistoryRecord is one stored (message, channel) delivery outcome.
type HistoryRecord struct {
	ID      string
	Message Message
	Result  DeliveryResult
}

// MessageHistory is the message-centric view of history: one message with
// every channel result recorded for it.
type MessageHistory struct {
	Message Message
	Results []DeliveryResult
}

// GroupByMessage folds per-channel records into per-message entries,
// preserving the order in which each message first appears.
func GroupByMessage(records []*HistoryRecord) []MessageHistory {
	index := make(map[string]int)
	var out []MessageHistory
	for _, rec := range records {
		i, ok := index[rec.Message.ID]
		if !ok {
			i = len(out)
			index[rec.Message.ID] = i
			out = append(out, MessageHistory{Message: rec.Message})
		}
		out[i].Results = append(out[i].Results, rec.Result)
	}
	return out
}
