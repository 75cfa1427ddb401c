// Package source holds the identity and position model of input files:
// per-record offsets, the persisted resume point and file metadata.
package source

import (
	"fmt"
	"time"
)

// SourceOffset is the persisted resume point of a source. Position is the
// byte offset of the next unread record; Rows is the number of data rows
// consumed so far, or -1 for sources that do not count rows.
type SourceOffset struct {
	Position  int64 `json:"position"`
	Rows      int64 `json:"rows"`
	Timestamp int64 `json:"timestamp"`
}

// StartOffset is the resume point of a source that was never read.
func StartOffset() SourceOffset { return SourceOffset{Position: 0, Rows: 0} }

// IsStart reports whether o points at the beginning of the source.
func (o SourceOffset) IsStart() bool { return o.Position <= 0 }

// Before reports whether o is strictly behind other.
func (o SourceOffset) Before(other SourceOffset) bool { return o.Position < other.Position }

func (o SourceOffset) String() string {
	return fmt.Sprintf("position=%d rows=%d ts=%d", o.Position, o.Rows, o.Timestamp)
}

// RecordOffset is the position of a single record within its source.
type RecordOffset interface {
	// ToSourceOffset is the resume point after this record.
	ToSourceOffset() SourceOffset
	// Rewind is the resume point that reads this record again.
	Rewind() SourceOffset
	// Timestamp is the read time in unix milliseconds.
	Timestamp() int64
	// IsEmpty reports the sentinel offset of records without a position.
	IsEmpty() bool
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// BytesRecordOffset is the byte range [Start, End) of a record.
type BytesRecordOffset struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	TS    int64 `json:"timestamp"`
}

// NewBytesRecordOffset returns the offset of the range [start, end) read now.
func NewBytesRecordOffset(start, end int64) BytesRecordOffset {
	return BytesRecordOffset{Start: start, End: end, TS: nowMillis()}
}

// EmptyBytesOffset is the sentinel (-1, -1, now).
func EmptyBytesOffset() BytesRecordOffset {
	return BytesRecordOffset{Start: -1, End: -1, TS: nowMillis()}
}

func (o BytesRecordOffset) ToSourceOffset() SourceOffset {
	return SourceOffset{Position: o.End, Rows: -1, Timestamp: o.TS}
}

func (o BytesRecordOffset) Rewind() SourceOffset {
	return SourceOffset{Position: o.Start, Rows: -1, Timestamp: o.TS}
}

func (o BytesRecordOffset) Timestamp() int64 { return o.TS }
func (o BytesRecordOffset) IsEmpty() bool    { return o.Start < 0 && o.End < 0 }

func (o BytesRecordOffset) String() string {
	return fmt.Sprintf("[%d,%d)", o.Start, o.End)
}

// RowRecordOffset is the byte range of a row plus its 1-based row number.
type RowRecordOffset struct {
	BytesRecordOffset
	Row int64 `json:"row"`
}

func NewRowRecordOffset(start, end, row int64) RowRecordOffset {
	return RowRecordOffset{BytesRecordOffset: NewBytesRecordOffset(start, end), Row: row}
}

func (o RowRecordOffset) ToSourceOffset() SourceOffset {
	return SourceOffset{Position: o.End, Rows: o.Row, Timestamp: o.TS}
}

func (o RowRecordOffset) Rewind() SourceOffset {
	return SourceOffset{Position: o.Start, Rows: o.Row - 1, Timestamp: o.TS}
}

func (o RowRecordOffset) String() string {
	return fmt.Sprintf("row %d [%d,%d)", o.Row, o.Start, o.End)
}
