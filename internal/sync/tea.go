package sync

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/boletin/internal/model"
)

// CountersMsg is a tea.Msg sent when the unread counters change.
type CountersMsg struct {
	Counters model.UnreadCounters
}

// Listener bridges aggregator updates into the Bubble Tea runtime.
type Listener struct {
	updates     chan model.UnreadCounters
	unsubscribe func()
}

// Listen subscribes to a and returns a Listener. Call Close when the
// program exits.
func Listen(a *Aggregator) *Listener {
	l := &Listener{updates: make(chan model.UnreadCounters, 16)}
	l.unsubscribe = a.Subscribe(func(c model.UnreadCounters) {
		select {
		case l.updates <- c:
		default:
			// Drop if channel is full to avoid blocking the aggregator
		}
	})
	return l
}

// Wait returns a tea.Cmd that waits for the next counters update. It
// should be issued again after each CountersMsg to keep listening.
func (l *Listener) Wait() tea.Cmd {
	return func() tea.Msg {
		c, ok := <-l.updates
		if !ok {
			return nil
		}
		return CountersMsg{Counters: c}
	}
}

// Close unsubscribes from the aggregator.
func (l *Listener) Close() {
	l.unsubscribe()
}
