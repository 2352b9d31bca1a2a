package event

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/erp/invoicing/internal/domain/shared"
)

// JournalHandler appends every event it receives to w as JSON lines
type JournalHandler struct {
	mu         sync.Mutex
	w          io.Writer
	serializer *EventSerializer
}

// NewJournalHandler creates a wildcard handler writing to w
func NewJournalHandler(w io.Writer, serializer *EventSerializer) *JournalHandler {
	return &JournalHandler{w: w, serializer: serializer}
}

// Handle implements shared.EventHandler
func (h *JournalHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	line, err := h.serializer.Encode(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(line, '\n'))
	return err
}

// EventTypes implements shared.EventHandler; empty means all events
func (h *JournalHandler) EventTypes() []string {
	return nil
}

// ReadJournal decodes a journal written by JournalHandler. Unknown event
// types fail the read.
func ReadJournal(r io.Reader, serializer *EventSerializer) ([]shared.DomainEvent, error) {
	var events []shared.DomainEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		ev, err := serializer.Decode(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

var _ shared.EventHandler = (*JournalHandler)(nil)
