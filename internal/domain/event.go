package domain

import "github.com/roach88/fluxora/internal/amount"

// Topic names a lifecycle notification.
type Topic string

const (
	TopicCreated   Topic = "created"
	TopicPaused    Topic = "paused"
	TopicResumed   Topic = "resumed"
	TopicCancelled Topic = "cancelled"
	TopicWithdrew  Topic = "withdrew"
)

// Event is the payload published after every committed mutation.
//
// Amount carries the deposit for created, the refund for cancelled and the
// transferred amount for withdrew; it is zero otherwise. Created events also
// carry the full initial record so a log can be folded back into state.
type Event struct {
	// ID and Seq are assigned by the log that stores the event.
	ID  string `json:"id,omitempty"`
	Seq uint64 `json:"seq,omitempty"`

	Topic    Topic         `json:"topic"`
	StreamID StreamID      `json:"stream_id"`
	Time     uint64        `json:"time"`
	Actor    Identity      `json:"actor,omitempty"`
	Amount   amount.Amount `json:"amount"`
	Stream   *Stream       `json:"stream,omitempty"`
}
