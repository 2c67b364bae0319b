package model

import (
	"sort"
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	// SenderSystem is an outbound message sent by the platform or an agent.
	SenderSystem Sender = "system"
	// SenderUser is an inbound message from the lead.
	SenderUser Sender = "user"
)

// Message is a single conversation message. RawPayload carries the
// provider payload verbatim (e.g. an interactive button reply) when the
// message was not plain text.
type Message struct {
	Sender     Sender    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	RawPayload string    `json:"raw_payload,omitempty"`
}

// Transcript is the chronologically ordered conversation for one lead.
// It may be empty. Ties on identical timestamps keep original sequence
// order, so sorting must be stable.
type Transcript []Message

// Sorted returns a copy of the transcript in chronological order.
// The receiver is not modified.
func (t Transcript) Sorted() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LastMessage returns the final message, or nil for an empty transcript.
func (t Transcript) LastMessage() *Message {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// LastFrom returns the most recent message from the given sender, or
// nil if that sender never wrote.
func (t Transcript) LastFrom(sender Sender) *Message {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Sender == sender {
			return &t[i]
		}
	}
	return nil
}

// CountFrom returns how many messages the given sender produced.
func (t Transcript) CountFrom(sender Sender) int {
	n := 0
	for _, m := range t {
		if m.Sender == sender {
			n++
		}
	}
	return n
}
