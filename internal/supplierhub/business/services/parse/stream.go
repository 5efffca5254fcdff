package parse

// Record is one loosely-typed feed item as produced by a parser.
type Record = map[string]interface{}

// Stream is a pull-based, single-pass, forward-only sequence of records.
// CSV feeds stream row by row; JSON/XML feeds are materialized up front.
type Stream struct {
	next      func() (Record, error)
	read      int
	total     int
	totalSet  bool
	truncated bool
	done      bool
	err       error
}

// NewSliceStream wraps an already materialized record list.
func NewSliceStream(items []Record) *Stream {
	i := 0
	s := &Stream{total: len(items), totalSet: true}
	s.next = func() (Record, error) {
		if i >= len(items) {
			return nil, nil
		}
		rec := items[i]
		i++
		return rec, nil
	}
	return s
}

// NewFuncStream wraps an incremental producer. fn returns (nil, nil) at
// end of input; the total becomes known once the stream is drained.
func NewFuncStream(fn func() (Record, error)) *Stream {
	return &Stream{next: fn}
}

// Next returns the next record. ok is false once the stream is
// exhausted or failed; check Err afterwards.
func (s *Stream) Next() (Record, bool) {
	if s.done || s.err != nil {
		return nil, false
	}
	rec, err := s.next()
	if err != nil {
		s.err = err
		s.done = true
		return nil, false
	}
	if rec == nil {
		s.done = true
		if !s.totalSet {
			s.total = s.read
			s.totalSet = true
		}
		return nil, false
	}
	s.read++
	return rec, true
}

func (s *Stream) Err() error { return s.err }

// Count is the number of records yielded so far.
func (s *Stream) Count() int { return s.read }

// Total is the number of records in the feed, and whether it is known
// yet (streaming parsers only know it once drained).
func (s *Stream) Total() (int, bool) { return s.total, s.totalSet }

// Truncated reports whether the parser stopped at its safety ceiling.
func (s *Stream) Truncated() bool { return s.truncated }

func (s *Stream) markTruncated() { s.truncated = true }
