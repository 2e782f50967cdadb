package warpcli

import (
	"encoding/json"

	"github.com/warpdl/warpops/pkg/warpops"
)

// Handler processes the raw params of a pushed event.
type Handler interface {
	Handle(json.RawMessage) error
}

// EventHandler decodes a pushed event into E and passes it to Callback.
type EventHandler[E warpops.Event] struct {
	Callback func(E) error
}

// NewEventHandler wraps cb as a Handler for events of type E.
func NewEventHandler[E warpops.Event](cb func(E) error) *EventHandler[E] {
	return &EventHandler[E]{Callback: cb}
}

func (h *EventHandler[E]) Handle(m json.RawMessage) error {
	var ev E
	if err := json.Unmarshal(m, &ev); err != nil {
		return err
	}
	return h.Callback(ev)
}

// GroupFilter forwards only events that belong to one group.
type GroupFilter struct {
	Group warpops.GroupID
	Next  Handler
}

func (f *GroupFilter) Handle(m json.RawMessage) error {
	var probe struct {
		Group warpops.GroupID `json:"group"`
	}
	if err := json.Unmarshal(m, &probe); err != nil {
		return err
	}
	if probe.Group != f.Group {
		return nil
	}
	return f.Next.Handle(m)
}
