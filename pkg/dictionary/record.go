package dictionary

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banchi-geo/banchi/pkg/address"
)

// RecordSize is the fixed on-disk size of one node record.
//
// Layout (little endian):
//
//	0:8    name offset into the string arena
//	8:16   name index offset
//	16:24  note offset
//	24:26  name length in bytes
//	26:28  name index length
//	28:30  note length
//	30:34  parent id
//	34:38  sibling id
//	38:42  x (longitude, float32 bits)
//	42:46  y (latitude, float32 bits)
//	46     level
//	47     priority
const RecordSize = 48

// blobRef locates one string inside the string arena.
type blobRef struct {
	off uint64
	n   uint16
}

// nodeRecord is the decoded fixed part of a node. The three strings
// still live in the arena and are resolved by the store.
type nodeRecord struct {
	name      blobRef
	nameIndex blobRef
	note      blobRef
	parentID  uint32
	siblingID uint32
	x         float32
	y         float32
	level     address.Level
	priority  uint8
}

func decodeRecord(b []byte) (nodeRecord, error) {
	if len(b) < RecordSize {
		return nodeRecord{}, fmt.Errorf("record too short: %d bytes: %w", len(b), ErrCorrupt)
	}
	return nodeRecord{
		name:      blobRef{binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint16(b[24:26])},
		nameIndex: blobRef{binary.LittleEndian.Uint64(b[8:16]), binary.LittleEndian.Uint16(b[26:28])},
		note:      blobRef{binary.LittleEndian.Uint64(b[16:24]), binary.LittleEndian.Uint16(b[28:30])},
		parentID:  binary.LittleEndian.Uint32(b[30:34]),
		siblingID: binary.LittleEndian.Uint32(b[34:38]),
		x:         math.Float32frombits(binary.LittleEndian.Uint32(b[38:42])),
		y:         math.Float32frombits(binary.LittleEndian.Uint32(b[42:46])),
		level:     address.Level(int8(b[46])),
		priority:  b[47],
	}, nil
}

func encodeRecord(b []byte, rec nodeRecord) {
	binary.LittleEndian.PutUint64(b[0:8], rec.name.off)
	binary.LittleEndian.PutUint64(b[8:16], rec.nameIndex.off)
	binary.LittleEndian.PutUint64(b[16:24], rec.note.off)
	binary.LittleEndian.PutUint16(b[24:26], rec.name.n)
	binary.LittleEndian.PutUint16(b[26:28], rec.nameIndex.n)
	binary.LittleEndian.PutUint16(b[28:30], rec.note.n)
	binary.LittleEndian.PutUint32(b[30:34], rec.parentID)
	binary.LittleEndian.PutUint32(b[34:38], rec.siblingID)
	binary.LittleEndian.PutUint32(b[38:42], math.Float32bits(rec.x))
	binary.LittleEndian.PutUint32(b[42:46], math.Float32bits(rec.y))
	b[46] = byte(rec.level)
	b[47] = rec.priority
}
