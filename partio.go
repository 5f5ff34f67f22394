package mergetree

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// DefaultMergeBlockSize is the row count per block governing both input
// reads and output writes during a merge.
const DefaultMergeBlockSize = 8192

// RowBlock is a batch of rows moving through the streaming reader/writer
// interfaces, in the part's own sort order.
type RowBlock struct {
	Rows []Row
}

// PartReader streams the rows of one part over its full mark range, via a
// read_prefix/read/read_suffix lifecycle.
type PartReader interface {
	// Open corresponds to read_prefix.
	Open() error
	// Next returns the next block, or ok=false once the part is exhausted.
	// Corresponds to read.
	Next() (block RowBlock, ok bool, err error)
	// Close corresponds to read_suffix.
	Close() error
}

// PartWriter sinks blocks of a merged stream into a new part, via a
// write_prefix/write/write_suffix lifecycle.
type PartWriter interface {
	// Open corresponds to write_prefix.
	Open() error
	// Write corresponds to write(block).
	Write(block RowBlock) error
	// Close corresponds to write_suffix; it returns the mark count of the
	// part just written (marks_count).
	Close() (marksCount uint64, err error)
}

// storedBlock is one compressed, checksummed block as it would live on disk.
// Checksumming mirrors sstable/block/block.go's use of xxhash; compression
// mirrors sstable/block/compression_nocgo.go's use of klauspost/compress's
// pure-Go zstd implementation.
type storedBlock struct {
	checksum   uint64
	compressed []byte
	rowCount   int
}

// PartStore is the in-memory stand-in for the part column store. The real
// on-disk byte layout is out of scope; PartStore fulfills the same streaming
// contract so the rest of the module is runnable without a real storage
// engine, and still exercises the compression/checksum concerns a real
// PartWriter would have.
type PartStore struct {
	mu     sync.Mutex
	blocks map[string][]storedBlock
}

// NewPartStore returns an empty PartStore.
func NewPartStore() *PartStore {
	return &PartStore{blocks: make(map[string][]storedBlock)}
}

func encodeBlock(b RowBlock) (storedBlock, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(b.Rows); err != nil {
		return storedBlock{}, errors.Wrapf(err, "mergetree: encoding block")
	}
	checksum := xxhash.Sum64(raw.Bytes())

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return storedBlock{}, errors.Wrapf(err, "mergetree: creating zstd encoder")
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw.Bytes(), nil)

	return storedBlock{checksum: checksum, compressed: compressed, rowCount: len(b.Rows)}, nil
}

func decodeBlock(sb storedBlock) (RowBlock, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return RowBlock{}, errors.Wrapf(err, "mergetree: creating zstd decoder")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(sb.compressed, nil)
	if err != nil {
		return RowBlock{}, errors.Wrapf(err, "mergetree: decompressing block")
	}
	if got := xxhash.Sum64(raw); got != sb.checksum {
		return RowBlock{}, errors.Newf("mergetree: block checksum mismatch: got %x, want %x", got, sb.checksum)
	}

	var rows []Row
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rows); err != nil {
		return RowBlock{}, errors.Wrapf(err, "mergetree: decoding block")
	}
	return RowBlock{Rows: rows}, nil
}

// memWriter is PartStore's PartWriter.
type memWriter struct {
	store    *PartStore
	partName string
	blocks   []storedBlock
	marks    uint64
}

// NewWriter returns a PartWriter that accumulates blocks under partName.
// The part becomes visible to NewReader only after a successful Close.
func (s *PartStore) NewWriter(partName string) PartWriter {
	return &memWriter{store: s, partName: partName}
}

func (w *memWriter) Open() error { return nil }

func (w *memWriter) Write(block RowBlock) error {
	if len(block.Rows) == 0 {
		return nil
	}
	sb, err := encodeBlock(block)
	if err != nil {
		return err
	}
	w.blocks = append(w.blocks, sb)
	w.marks++
	return nil
}

func (w *memWriter) Close() (uint64, error) {
	w.store.mu.Lock()
	w.store.blocks[w.partName] = w.blocks
	w.store.mu.Unlock()
	return w.marks, nil
}

// memReader is PartStore's PartReader.
type memReader struct {
	store    *PartStore
	partName string
	blocks   []storedBlock
	pos      int
}

// NewReader returns a PartReader over the full mark range of partName.
func (s *PartStore) NewReader(partName string) PartReader {
	return &memReader{store: s, partName: partName}
}

func (r *memReader) Open() error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	blocks, ok := r.store.blocks[r.partName]
	if !ok {
		return errors.Newf("mergetree: no such part %q", r.partName)
	}
	r.blocks = blocks
	return nil
}

func (r *memReader) Next() (RowBlock, bool, error) {
	if r.pos >= len(r.blocks) {
		return RowBlock{}, false, nil
	}
	block, err := decodeBlock(r.blocks[r.pos])
	r.pos++
	if err != nil {
		return RowBlock{}, false, err
	}
	return block, true, nil
}

func (r *memReader) Close() error { return nil }

// Delete removes a part's data. Used once its inputs have been superseded by
// a merge output.
func (s *PartStore) Delete(partName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, partName)
}

// PutRows is a test/demo helper: it writes rows as a single part in
// DefaultMergeBlockSize-sized blocks and returns the resulting mark count.
func (s *PartStore) PutRows(partName string, rows []Row) (uint64, error) {
	w := s.NewWriter(partName)
	if err := w.Open(); err != nil {
		return 0, err
	}
	for i := 0; i < len(rows); i += DefaultMergeBlockSize {
		end := i + DefaultMergeBlockSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.Write(RowBlock{Rows: rows[i:end]}); err != nil {
			return 0, err
		}
	}
	return w.Close()
}

// Rows is a test helper: it reads and concatenates every block of partName.
func (s *PartStore) Rows(partName string) ([]Row, error) {
	r := s.NewReader(partName)
	if err := r.Open(); err != nil {
		return nil, err
	}
	defer r.Close()
	var out []Row
	for {
		block, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, block.Rows...)
	}
	return out, nil
}
