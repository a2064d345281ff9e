package internal

import "slices"

// Sequencer hands out row identities for one dynamic list of an editor.
// Ids are never reused: the counter only moves forward, even when rows are
// removed. The live list is never empty once the sequencer is constructed.
type Sequencer struct {
	ids  []int
	next int
}

// NewSequencer creates a sequencer holding ids 1..n. n is clamped to at least 1.
func NewSequencer(n int) *Sequencer {
	n = max(n, 1)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return &Sequencer{ids: ids, next: n}
}

func (s *Sequencer) allocate() int {
	s.next++
	return s.next
}

// Allocate appends a fresh id and returns it.
func (s *Sequencer) Allocate() int {
	id := s.allocate()
	s.ids = append(s.ids, id)
	return id
}

// RemoveAndEnsureNonEmpty removes id. When the list becomes empty a fresh id
// is appended so at least one row always remains. Unknown ids are ignored
// unless the list is already empty.
func (s *Sequencer) RemoveAndEnsureNonEmpty(id int) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	if len(s.ids) == 0 {
		s.Allocate()
	}
}

// InsertAt splices a fresh id at index. Out of range indices append.
func (s *Sequencer) InsertAt(index int) int {
	if index < 0 || index >= len(s.ids) {
		return s.Allocate()
	}
	id := s.allocate()
	s.ids = slices.Insert(s.ids, index, id)
	return id
}

// InsertAfter splices a fresh id right after id, or appends when id is unknown.
func (s *Sequencer) InsertAfter(id int) int {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return s.Allocate()
	}
	fresh := s.allocate()
	s.ids = slices.Insert(s.ids, i+1, fresh)
	return fresh
}

// IDs returns a copy of the live ids in order.
func (s *Sequencer) IDs() []int {
	return slices.Clone(s.ids)
}

func (s *Sequencer) Len() int {
	return len(s.ids)
}

// IndexOf returns the position of id, or -1.
func (s *Sequencer) IndexOf(id int) int {
	return slices.Index(s.ids, id)
}

// Contains reports whether id is live.
func (s *Sequencer) Contains(id int) bool {
	return s.IndexOf(id) >= 0
}

// Last returns the highest id handed out so far.
func (s *Sequencer) Last() int {
	return s.next
}
