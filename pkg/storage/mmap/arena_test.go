package mmap

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRecordArenaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	// 8 records of 32 bytes per chunk.
	chunkSize := ArenaHeaderSize + 256

	// 1. Create the arena and write records across chunk boundaries.
	ra, err := NewRecordArena(dir, "nodes", 32, chunkSize)
	if err != nil {
		t.Fatalf("NewRecordArena failed: %v", err)
	}
	for id := uint32(0); id < 20; id++ {
		rec, err := ra.Record(id)
		if err != nil {
			t.Fatalf("Record(%d) failed: %v", id, err)
		}
		binary.LittleEndian.PutUint32(rec[0:4], id*7)
		rec[31] = byte(id)
	}
	if err := ra.SetCount(20); err != nil {
		t.Fatalf("SetCount failed: %v", err)
	}
	if err := ra.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := ra.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 2. Reopen read only and verify every record survived.
	ro, err := OpenRecordArena(dir, "nodes", 32, 0)
	if err != nil {
		t.Fatalf("OpenRecordArena failed: %v", err)
	}
	defer ro.Close()

	if got := ro.Count(); got != 20 {
		t.Errorf("Count = %d, want 20", got)
	}
	for id := uint32(0); id < 20; id++ {
		rec, err := ro.Record(id)
		if err != nil {
			t.Fatalf("Record(%d) after reopen failed: %v", id, err)
		}
		if got := binary.LittleEndian.Uint32(rec[0:4]); got != id*7 {
			t.Errorf("record %d: got %d, want %d", id, got, id*7)
		}
		if rec[31] != byte(id) {
			t.Errorf("record %d: trailer byte %d, want %d", id, rec[31], id)
		}
	}

	// 3. A read-only arena must not grow on out-of-range access.
	if _, err := ro.Record(1000); err == nil {
		t.Error("expected error for out-of-range record on read-only arena")
	}
}

func TestRecordArenaValidation(t *testing.T) {
	dir := t.TempDir()

	ra, err := NewRecordArena(dir, "nodes", 32, ArenaHeaderSize+256)
	if err != nil {
		t.Fatalf("NewRecordArena failed: %v", err)
	}
	if _, err := ra.Record(0); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	ra.Close()

	// 1. Opening with a different record size must fail loudly.
	if _, err := OpenRecordArena(dir, "nodes", 64, 0); err == nil {
		t.Error("expected record size mismatch error")
	}

	// 2. Opening a missing arena read only must fail.
	if _, err := OpenRecordArena(t.TempDir(), "nodes", 32, 0); err == nil {
		t.Error("expected error for missing arena")
	}
}

func TestBlobArenaAllocate(t *testing.T) {
	dir := t.TempDir()
	// 32 payload bytes per chunk.
	chunkSize := ArenaHeaderSize + 32

	ba, err := NewBlobArena(dir, "strings", chunkSize)
	if err != nil {
		t.Fatalf("NewBlobArena failed: %v", err)
	}

	// 1. The first blob lands at offset 0.
	blob1 := []byte("東京都新宿区")
	off1, err := ba.Alloc(blob1)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first blob offset = %d, want 0", off1)
	}

	// 2. A blob that does not fit in the remaining space of the chunk
	// starts at the next chunk boundary.
	blob2 := []byte("西新宿二丁目")
	off2, err := ba.Alloc(blob2)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if off2 != 32 {
		t.Fatalf("second blob offset = %d, want 32", off2)
	}
	if got := ba.Tail(); got != 32+uint64(len(blob2)) {
		t.Errorf("Tail = %d, want %d", got, 32+len(blob2))
	}

	// 3. Blobs larger than a chunk payload are rejected.
	if _, err := ba.Alloc(make([]byte, 33)); err == nil {
		t.Error("expected error for oversized blob")
	}
	if err := ba.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 4. Reopen read only: blobs and the tail survive.
	ro, err := OpenBlobArena(dir, "strings", 0)
	if err != nil {
		t.Fatalf("OpenBlobArena failed: %v", err)
	}
	defer ro.Close()

	got1, err := ro.Bytes(off1, len(blob1))
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got1, blob1) {
		t.Errorf("blob 1 = %q, want %q", got1, blob1)
	}
	got2, err := ro.Bytes(off2, len(blob2))
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got2, blob2) {
		t.Errorf("blob 2 = %q, want %q", got2, blob2)
	}
	if got := ro.Tail(); got != 32+uint64(len(blob2)) {
		t.Errorf("Tail after reopen = %d, want %d", got, 32+len(blob2))
	}

	// 5. A blob that would span chunks cannot be read back.
	if _, err := ro.Bytes(30, 10); err == nil {
		t.Error("expected error for blob spanning a chunk boundary")
	}
}
