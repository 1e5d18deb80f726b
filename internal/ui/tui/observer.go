package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

// sender is the part of tea.Program the observer needs.
type sender interface {
	Send(msg tea.Msg)
}

// Observer forwards orchestration events to a running program.
type Observer struct {
	program sender
	fields  map[string]string
}

// NewObserver creates an Observer sending to p.
func NewObserver(p sender) *Observer {
	return &Observer{program: p}
}

// Event implements provisioning.Observer.
func (o *Observer) Event(event provisioning.Event) {
	if len(o.fields) > 0 {
		merged := make(map[string]string, len(o.fields)+len(event.Fields))
		for k, v := range o.fields {
			merged[k] = v
		}
		for k, v := range event.Fields {
			merged[k] = v
		}
		event.Fields = merged
	}
	o.program.Send(EventMsg{Event: event})
}

// WithFields implements provisioning.Observer.
func (o *Observer) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Observer{program: o.program, fields: merged}
}
