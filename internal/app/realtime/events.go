// Package realtime fans marketplace events out to WebSocket subscribers.
package realtime

import (
	"strings"
	"sync"
	"time"
)

// Event types pushed to clients.
const (
	EventMessageCreated     = "message.created"
	EventProposalSubmitted  = "proposal.submitted"
	EventProposalAccepted   = "proposal.accepted"
	EventProposalRejected   = "proposal.rejected"
	EventProposalWithdrawn  = "proposal.withdrawn"
	EventProposalExpired    = "proposal.expired"
	EventTaskUpdated        = "task.updated"
	EventProjectCompleted   = "project.completed"
	EventProjectCancelled   = "project.cancelled"
	EventWalletUpdated      = "wallet.updated"
	eventSubscribed         = "subscribed"
	eventUnsubscribed       = "unsubscribed"
	eventError              = "error"
	conversationTopicPrefix = "conversation:"
	userTopicPrefix         = "user:"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher delivers events to a topic.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

func ConversationTopic(id string) string { return conversationTopicPrefix + id }

func UserTopic(id string) string { return userTopicPrefix + id }

// ParseTopic splits a topic into its kind ("conversation" or "user") and id.
func ParseTopic(topic string) (kind, id string, ok bool) {
	switch {
	case strings.HasPrefix(topic, conversationTopicPrefix):
		id = strings.TrimPrefix(topic, conversationTopicPrefix)
		kind = "conversation"
	case strings.HasPrefix(topic, userTopicPrefix):
		id = strings.TrimPrefix(topic, userTopicPrefix)
		kind = "user"
	default:
		return "", "", false
	}
	return kind, id, id != ""
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, string, any) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(topic, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Topic: topic, Payload: payload, At: time.Now().UTC()})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types for topic, in order.
func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Topic == topic {
			out = append(out, e.Type)
		}
	}
	return out
}
