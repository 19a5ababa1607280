package domain

import "time"

// ConsumerGroupInfo represents information about a dispatch stream consumer group.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingMessageSummary provides a summary of dispatch records not yet archived.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

// StreamOverview summarises the dispatch audit stream.
type StreamOverview struct {
	Length int64               `json:"length"`
	Groups []ConsumerGroupInfo `json:"groups"`
	At     time.Time           `json:"at"`
}
