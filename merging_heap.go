package mergetree

import "github.com/cockroachdb/errors"

// heapItem is one entry in the k-way merge heap: the current row's sort key
// together with which input stream it came from.
type heapItem struct {
	streamIndex int
	key         uint64
}

// mergeHeap is a minimal binary heap ordering heapItems by (key ascending,
// streamIndex ascending). The streamIndex tie-break guarantees that rows
// with equal sort keys exit in input-part order, approximating
// insertion-time order.
//
// init/push/up/down/pop are the same shape as merging_iter_heap.go's
// mergingIterHeap, adapted from byte-slice keys to Row's uint64 key.
type mergeHeap struct {
	items []heapItem
}

func (h *mergeHeap) len() int { return len(h.items) }

func (h *mergeHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.key != b.key {
		return a.key < b.key
	}
	return a.streamIndex < b.streamIndex
}

func (h *mergeHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *mergeHeap) push(item heapItem) {
	h.items = append(h.items, item)
	h.up(h.len() - 1)
}

func (h *mergeHeap) init() {
	n := h.len()
	for i := n/2 - 1; i >= 0; i-- {
		h.down(i, n)
	}
}

func (h *mergeHeap) pop() heapItem {
	n := h.len() - 1
	h.swap(0, n)
	h.down(0, n)
	item := h.items[n]
	h.items = h.items[:n]
	return item
}

func (h *mergeHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *mergeHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
	return i > i0
}

// rowStream wraps a PartReader with one-row-of-lookahead so the merge heap
// can compare current rows across streams without re-reading a block.
type rowStream struct {
	reader PartReader
	block  RowBlock
	pos    int
	cur    Row
	valid  bool
}

func newRowStream(r PartReader) *rowStream {
	return &rowStream{reader: r}
}

func (s *rowStream) open() error {
	if err := s.reader.Open(); err != nil {
		return err
	}
	return s.advance()
}

// advance loads the next row into s.cur, pulling further blocks from the
// reader as needed. s.valid is false once the stream is exhausted.
func (s *rowStream) advance() error {
	for s.pos >= len(s.block.Rows) {
		block, ok, err := s.reader.Next()
		if err != nil {
			s.valid = false
			return err
		}
		if !ok {
			s.valid = false
			return nil
		}
		s.block = block
		s.pos = 0
	}
	s.cur = s.block.Rows[s.pos]
	s.pos++
	s.valid = true
	return nil
}

func (s *rowStream) close() error { return s.reader.Close() }

// KWayMerger merges a fixed set of sorted row streams into one globally
// sorted stream, preserving each stream's relative order on key ties.
type KWayMerger struct {
	streams []*rowStream
	heap    mergeHeap
}

// NewKWayMerger opens readers, in order, as the input streams of a k-way
// merge. readers[i]'s rows tie-break ahead of readers[j]'s for i < j.
func NewKWayMerger(readers []PartReader) (*KWayMerger, error) {
	m := &KWayMerger{streams: make([]*rowStream, len(readers))}
	for i, r := range readers {
		s := newRowStream(r)
		if err := s.open(); err != nil {
			_ = m.Close()
			return nil, errors.Wrapf(err, "mergetree: opening input stream %d", i)
		}
		m.streams[i] = s
		if s.valid {
			m.heap.push(heapItem{streamIndex: i, key: s.cur.Key})
		}
	}
	m.heap.init()
	return m, nil
}

// Next returns the next row in global sort order together with the index of
// the input stream it came from, or ok=false once every stream is
// exhausted.
func (m *KWayMerger) Next() (row Row, streamIndex int, ok bool, err error) {
	if m.heap.len() == 0 {
		return Row{}, 0, false, nil
	}
	item := m.heap.pop()
	s := m.streams[item.streamIndex]
	row = s.cur

	if err := s.advance(); err != nil {
		return Row{}, 0, false, errors.Wrapf(err, "mergetree: reading input stream %d", item.streamIndex)
	}
	if s.valid {
		m.heap.push(heapItem{streamIndex: item.streamIndex, key: s.cur.Key})
	}
	return row, item.streamIndex, true, nil
}

// Close closes every input stream, returning the first error encountered.
func (m *KWayMerger) Close() error {
	var first error
	for _, s := range m.streams {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
