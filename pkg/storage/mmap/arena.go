// Package mmap provides memory-mapped storage arenas for dictionary
// files. Records and strings live in chunked files that are mapped on
// demand, so a dictionary with millions of address nodes opens in
// milliseconds and only the pages actually touched by a search are
// read from disk.
package mmap

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultChunkSize is 64MB.
	DefaultChunkSize = 64 * 1024 * 1024
	ArenaMagic       = 0x484E4342 // "BCNH"
	ArenaVersion     = 1
	ArenaHeaderSize  = 64
)

// Arena kinds stored in the chunk header.
const (
	kindRecord uint8 = 0
	kindBlob   uint8 = 1
)

// Chunk represents a single memory-mapped file.
type Chunk struct {
	ID   int
	File *os.File
	Data []byte
}

// arena holds the state shared by both arena kinds.
type arena struct {
	mu         sync.RWMutex
	dir        string
	prefix     string
	chunkSize  int
	recordSize uint32 // 0 for blob arenas
	kind       uint8
	writable   bool
	chunks     []*Chunk
}

func newArena(dir, prefix string, recordSize uint32, kind uint8, chunkSize int, writable bool) (*arena, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= ArenaHeaderSize {
		return nil, fmt.Errorf("chunk size %d leaves no payload", chunkSize)
	}
	if kind == kindRecord {
		if recordSize == 0 {
			return nil, fmt.Errorf("record size must be > 0")
		}
		if int(recordSize) > chunkSize-ArenaHeaderSize {
			return nil, fmt.Errorf("record size %d exceeds chunk payload capacity", recordSize)
		}
	}

	if writable {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create arena dir: %w", err)
		}
	}

	a := &arena{
		dir:        dir,
		prefix:     prefix,
		chunkSize:  chunkSize,
		recordSize: recordSize,
		kind:       kind,
		writable:   writable,
		chunks:     make([]*Chunk, 0),
	}

	// The chunk size is a layout parameter: reopening with a different
	// one would misaddress every record. Chunk files are always
	// exactly chunkSize bytes, so the size of chunk 0 on disk is
	// authoritative for an existing arena.
	if err := a.probeChunkSize(); err != nil {
		return nil, err
	}

	// Load existing chunks so an arena survives reopening.
	if err := a.loadExistingChunks(); err != nil {
		a.Close()
		return nil, err
	}
	if !a.writable && len(a.chunks) == 0 {
		return nil, fmt.Errorf("arena %s not found in %s", prefix, dir)
	}
	return a, nil
}

func (a *arena) probeChunkSize() error {
	info, err := os.Stat(a.chunkPath(0))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= ArenaHeaderSize {
		return fmt.Errorf("arena chunk %s truncated: %d bytes", a.chunkPath(0), info.Size())
	}
	a.chunkSize = int(info.Size())
	return nil
}

func (a *arena) loadExistingChunks() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) && !a.writable {
			return fmt.Errorf("arena dir %s: %w", a.dir, err)
		}
		return err
	}

	maxChunkID := -1
	pattern := a.prefix + "_%04d.bin"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(entry.Name(), pattern, &id); err == nil {
			if id > maxChunkID {
				maxChunkID = id
			}
		}
	}

	// Open chunks up to maxChunkID sequentially.
	for i := 0; i <= maxChunkID; i++ {
		if err := a.addChunk(i); err != nil {
			return err
		}
	}
	return nil
}

func (a *arena) chunkPath(chunkID int) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s_%04d.bin", a.prefix, chunkID))
}

func (a *arena) addChunk(chunkID int) error {
	fileName := a.chunkPath(chunkID)

	flags := os.O_RDONLY
	if a.writable {
		flags = os.O_CREATE | os.O_RDWR
	}
	file, err := os.OpenFile(fileName, flags, 0644)
	if err != nil {
		return err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	isNewFile := info.Size() == 0

	if isNewFile && !a.writable {
		file.Close()
		return fmt.Errorf("arena chunk %s is empty", fileName)
	}
	if info.Size() < int64(a.chunkSize) {
		if !a.writable {
			file.Close()
			return fmt.Errorf("arena chunk %s truncated: %d bytes", fileName, info.Size())
		}
		if err := file.Truncate(int64(a.chunkSize)); err != nil {
			file.Close()
			return err
		}
	}

	data, err := mmapFile(file.Fd(), a.chunkSize, a.writable)
	if err != nil {
		file.Close()
		return err
	}

	// --- HEADER MANAGEMENT ---
	if isNewFile {
		binary.LittleEndian.PutUint32(data[0:4], ArenaMagic)
		binary.LittleEndian.PutUint32(data[4:8], ArenaVersion)
		binary.LittleEndian.PutUint32(data[8:12], a.recordSize)
		data[12] = a.kind
		// The remaining bytes up to 64 stay 0 (reserved; byte 16 on
		// holds the record count or the blob tail in chunk 0).
	} else {
		magic := binary.LittleEndian.Uint32(data[0:4])
		version := binary.LittleEndian.Uint32(data[4:8])
		fileRecSize := binary.LittleEndian.Uint32(data[8:12])
		fileKind := data[12]

		if magic != ArenaMagic {
			munmapFile(data)
			file.Close()
			return fmt.Errorf("file %s is not a valid arena (magic mismatch)", fileName)
		}
		if version != ArenaVersion {
			munmapFile(data)
			file.Close()
			return fmt.Errorf("file %s unsupported version %d", fileName, version)
		}
		if fileRecSize != a.recordSize {
			munmapFile(data)
			file.Close()
			return fmt.Errorf("file %s record size mismatch: expected %d, got %d",
				fileName, a.recordSize, fileRecSize)
		}
		if fileKind != a.kind {
			munmapFile(data)
			file.Close()
			return fmt.Errorf("file %s arena kind mismatch: expected %d, got %d",
				fileName, a.kind, fileKind)
		}
	}
	// -------------------------

	a.chunks = append(a.chunks, &Chunk{
		ID:   chunkID,
		File: file,
		Data: data,
	})
	return nil
}

// chunkData returns the mapped data of the given chunk, creating it
// and any missing predecessors when the arena is writable.
func (a *arena) chunkData(chunkID int) ([]byte, error) {
	// --- FAST PATH (Read Only) ---
	// If the chunk already exists we read it and exit immediately,
	// which lets any number of goroutines read at once.
	a.mu.RLock()
	if chunkID < len(a.chunks) {
		data := a.chunks[chunkID].Data
		a.mu.RUnlock()
		return data, nil
	}
	a.mu.RUnlock()

	if !a.writable {
		return nil, fmt.Errorf("arena %s: chunk %d out of range", a.prefix, chunkID)
	}

	// --- SLOW PATH (Write) ---
	// The chunk doesn't exist yet. Take the exclusive lock so two
	// goroutines don't create it together.
	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check: another goroutine might have created it while we
	// were waiting for the lock.
	for chunkID >= len(a.chunks) {
		if err := a.addChunk(len(a.chunks)); err != nil {
			return nil, err
		}
	}
	return a.chunks[chunkID].Data, nil
}

// headerField reads a uint64 stored in the chunk 0 header at off.
func (a *arena) headerField(off int) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.chunks) == 0 {
		return 0
	}
	return binary.LittleEndian.Uint64(a.chunks[0].Data[off : off+8])
}

func (a *arena) setHeaderField(off int, v uint64) error {
	data, err := a.chunkData(0)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(data[off:off+8], v)
	return nil
}

// Sync flushes all mapped chunks to disk.
func (a *arena) Sync() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, chunk := range a.chunks {
		if err := msyncFile(chunk.Data); err != nil {
			return fmt.Errorf("sync chunk %d: %w", chunk.ID, err)
		}
	}
	return nil
}

func (a *arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, chunk := range a.chunks {
		if err := munmapFile(chunk.Data); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := chunk.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks = a.chunks[:0]
	return firstErr
}

// --- RECORD ARENA ---

// RecordArena stores fixed-size records addressed by dense sequential
// IDs. Record 0 is the first record of chunk 0; records never span
// chunk boundaries.
type RecordArena struct {
	*arena
	recsPerChunk int
}

// NewRecordArena opens a writable record arena in dir, creating it if
// needed. Files are named prefix_0000.bin, prefix_0001.bin and so on.
// A chunkSize of 0 selects the 64MB default.
func NewRecordArena(dir, prefix string, recordSize int, chunkSize int) (*RecordArena, error) {
	return newRecordArena(dir, prefix, recordSize, chunkSize, true)
}

// OpenRecordArena opens an existing record arena read only.
func OpenRecordArena(dir, prefix string, recordSize int, chunkSize int) (*RecordArena, error) {
	return newRecordArena(dir, prefix, recordSize, chunkSize, false)
}

func newRecordArena(dir, prefix string, recordSize, chunkSize int, writable bool) (*RecordArena, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("record size must be > 0")
	}
	a, err := newArena(dir, prefix, uint32(recordSize), kindRecord, chunkSize, writable)
	if err != nil {
		return nil, err
	}
	return &RecordArena{
		arena:        a,
		recsPerChunk: (a.chunkSize - ArenaHeaderSize) / recordSize,
	}, nil
}

// Record returns the bytes of the record with the given ID, backed
// directly by the mapped file. On a writable arena missing chunks are
// created on demand; on a read-only arena an out-of-range ID is an
// error.
func (ra *RecordArena) Record(id uint32) ([]byte, error) {
	chunkID := int(id) / ra.recsPerChunk
	offset := ArenaHeaderSize + (int(id)%ra.recsPerChunk)*int(ra.recordSize)

	data, err := ra.chunkData(chunkID)
	if err != nil {
		return nil, err
	}
	return data[offset : offset+int(ra.recordSize)], nil
}

// SetCount persists the number of records in the chunk 0 header.
func (ra *RecordArena) SetCount(n uint64) error {
	return ra.setHeaderField(16, n)
}

// Count returns the record count persisted by SetCount.
func (ra *RecordArena) Count() uint64 {
	return ra.headerField(16)
}

// --- BLOB ARENA ---

// BlobArena stores variable-length byte strings addressed by the
// logical offset returned from Alloc. A blob never spans chunks: when
// it does not fit in the current chunk the remaining space is left as
// padding and the blob starts at the next chunk boundary.
type BlobArena struct {
	*arena
	payload int
}

// NewBlobArena opens a writable blob arena in dir, creating it if
// needed. A chunkSize of 0 selects the 64MB default.
func NewBlobArena(dir, prefix string, chunkSize int) (*BlobArena, error) {
	return newBlobArena(dir, prefix, chunkSize, true)
}

// OpenBlobArena opens an existing blob arena read only.
func OpenBlobArena(dir, prefix string, chunkSize int) (*BlobArena, error) {
	return newBlobArena(dir, prefix, chunkSize, false)
}

func newBlobArena(dir, prefix string, chunkSize int, writable bool) (*BlobArena, error) {
	a, err := newArena(dir, prefix, 0, kindBlob, chunkSize, writable)
	if err != nil {
		return nil, err
	}
	return &BlobArena{
		arena:   a,
		payload: a.chunkSize - ArenaHeaderSize,
	}, nil
}

// Alloc appends b to the arena and returns its logical offset. The
// blob can be read back with Bytes(offset, len(b)).
func (ba *BlobArena) Alloc(b []byte) (uint64, error) {
	if len(b) > ba.payload {
		return 0, fmt.Errorf("blob of %d bytes exceeds chunk payload %d", len(b), ba.payload)
	}

	tail := ba.Tail()
	if rem := ba.payload - int(tail)%ba.payload; len(b) > rem {
		// Does not fit in the current chunk: pad up to the boundary.
		tail += uint64(rem)
	}

	off := tail
	if len(b) > 0 {
		dst, err := ba.slice(off, len(b))
		if err != nil {
			return 0, err
		}
		copy(dst, b)
	}
	if err := ba.setHeaderField(16, off+uint64(len(b))); err != nil {
		return 0, err
	}
	return off, nil
}

// Bytes returns the blob of n bytes at the given logical offset,
// backed directly by the mapped file. Callers must not modify it.
func (ba *BlobArena) Bytes(off uint64, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n < 0 || n > ba.payload {
		return nil, fmt.Errorf("blob length %d out of range", n)
	}
	if int(off)%ba.payload+n > ba.payload {
		return nil, fmt.Errorf("blob at %d spans a chunk boundary", off)
	}
	return ba.slice(off, n)
}

// Tail returns the logical offset one past the last allocated blob.
func (ba *BlobArena) Tail() uint64 {
	return ba.headerField(16)
}

func (ba *BlobArena) slice(off uint64, n int) ([]byte, error) {
	chunkID := int(off) / ba.payload
	pos := ArenaHeaderSize + int(off)%ba.payload

	data, err := ba.chunkData(chunkID)
	if err != nil {
		return nil, err
	}
	return data[pos : pos+n], nil
}
