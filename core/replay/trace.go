package replay

import (
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// TraceReader buffers a sequence of events for step-wise inspection,
// ported from cathedral_replay::trace::TraceReader (buffer/position/
// seek/has_more/peek, here backed by a slice instead of a VecDeque).
type TraceReader struct {
	events   []eventlog.Event
	position int
}

// NewTraceReader returns an empty TraceReader.
func NewTraceReader() *TraceReader {
	return &TraceReader{}
}

// FromEvents returns a TraceReader buffering events in order.
func FromEvents(events []eventlog.Event) *TraceReader {
	return &TraceReader{events: events}
}

// FromLog buffers every event currently durable in log.
func FromLog(log *eventlog.Log) (*TraceReader, error) {
	events := make([]eventlog.Event, log.Len())
	for i := range events {
		ev, err := log.At(i)
		if err != nil {
			return nil, err
		}
		events[i] = ev
	}
	return FromEvents(events), nil
}

// Next returns the event at the current position and advances it,
// failing with KindValidation once the trace is exhausted.
func (r *TraceReader) Next() (eventlog.Event, error) {
	if !r.HasMore() {
		return eventlog.Event{}, ferrors.New(ferrors.KindValidation, "replay.TraceReader.Next")
	}
	ev := r.events[r.position]
	r.position++
	return ev, nil
}

// Peek returns the event at the current position without advancing,
// failing with KindValidation once the trace is exhausted.
func (r *TraceReader) Peek() (eventlog.Event, error) {
	if !r.HasMore() {
		return eventlog.Event{}, ferrors.New(ferrors.KindValidation, "replay.TraceReader.Peek")
	}
	return r.events[r.position], nil
}

// HasMore reports whether any event remains unread.
func (r *TraceReader) HasMore() bool {
	return r.position < len(r.events)
}

// Remaining reports how many events remain unread.
func (r *TraceReader) Remaining() int {
	return len(r.events) - r.position
}

// Position reports the current read cursor.
func (r *TraceReader) Position() int {
	return r.position
}

// Total reports the total buffered event count.
func (r *TraceReader) Total() int {
	return len(r.events)
}

// Reset rewinds the cursor to the beginning.
func (r *TraceReader) Reset() {
	r.position = 0
}

// Seek moves the cursor to pos, failing with KindValidation if pos is
// negative or exceeds the buffered total.
func (r *TraceReader) Seek(pos int) error {
	if pos < 0 || pos > len(r.events) {
		return ferrors.New(ferrors.KindValidation, "replay.TraceReader.Seek")
	}
	r.position = pos
	return nil
}
