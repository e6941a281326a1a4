package eventlog

import "github.com/cathedral-fabric/fabric/core/ferrors"

// Cursor is a streaming reader over a Log, grounded on
// cathedral_log::cursor::Cursor / stream::EventStream. Cursors never
// observe torn writes: they read through Log.At, which only ever
// returns fully-appended events.
type Cursor struct {
	log      *Log
	position int
}

// NewCursor returns a cursor positioned at the start of log.
func NewCursor(log *Log) *Cursor {
	return &Cursor{log: log}
}

// Position reports the cursor's current index.
func (c *Cursor) Position() int {
	return c.position
}

// HasMore reports whether Next would return an event.
func (c *Cursor) HasMore() bool {
	return c.position < c.log.Len()
}

// Next returns the event at the cursor and advances it.
func (c *Cursor) Next() (Event, error) {
	if !c.HasMore() {
		return Event{}, ferrors.New(ferrors.KindNotFound, "eventlog.Cursor.Next")
	}
	ev, err := c.log.At(c.position)
	if err != nil {
		return Event{}, err
	}
	c.position++
	return ev, nil
}

// Peek returns the event at the cursor without advancing it.
func (c *Cursor) Peek() (Event, error) {
	if !c.HasMore() {
		return Event{}, ferrors.New(ferrors.KindNotFound, "eventlog.Cursor.Peek")
	}
	return c.log.At(c.position)
}

// Seek moves the cursor to an absolute position. Seeking beyond the
// log's length, or before its start, fails with KindValidation
// (spec.md §4.7).
func (c *Cursor) Seek(position int) error {
	if position < 0 || position > c.log.Len() {
		return ferrors.New(ferrors.KindValidation, "eventlog.Cursor.Seek")
	}
	c.position = position
	return nil
}

// Reset returns the cursor to the start of the log.
func (c *Cursor) Reset() {
	c.position = 0
}
