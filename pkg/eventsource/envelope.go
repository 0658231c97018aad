package eventsource

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrymomot/classnotify/pkg/policy"
)

// Action tells the consumer what happened to the entity behind an event.
type Action string

const (
	// ActionUpsert registers the event, replacing pending triggers of the same entity.
	ActionUpsert Action = "upsert"
	// ActionReschedule is an alias of upsert kept for producers that distinguish the two.
	ActionReschedule Action = "reschedule"
	// ActionCancel drops every pending trigger of the entity.
	ActionCancel Action = "cancel"
)

// Envelope is the JSON message read from the events topic.
type Envelope struct {
	Action    Action        `json:"action"`
	Event     *policy.Event `json:"event,omitempty"`
	RelatedID string        `json:"related_id,omitempty"`
}

// Decode parses and checks a message value.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.Join(ErrInvalidEnvelope, err)
	}

	switch env.Action {
	case ActionUpsert, ActionReschedule:
		if env.Event == nil {
			return Envelope{}, fmt.Errorf("%w: %s requires an event", ErrInvalidEnvelope, env.Action)
		}
	case ActionCancel:
		if env.relatedID() == "" {
			return Envelope{}, fmt.Errorf("%w: cancel requires a related id", ErrInvalidEnvelope)
		}
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
	return env, nil
}

func (e Envelope) relatedID() string {
	if e.RelatedID != "" {
		return e.RelatedID
	}
	if e.Event != nil {
		return e.Event.Payload.RelatedID
	}
	return ""
}
