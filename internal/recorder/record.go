package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"
)

// EventType tags a journal record.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventFill
	EventEquity
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 32
	recordChecksumSize        = 4
)

var (
	recordMagic = [4]byte{'R', 'U', 'N', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic            = errors.New("journal invalid magic")
	ErrUnsupportedRecordVer    = errors.New("journal unsupported record version")
	ErrInvalidRecordHeaderSize = errors.New("journal invalid header size")
)

// Event is one decoded journal record. Payload is JSON, keyed by Type.
type Event struct {
	Type    EventType
	Seq     uint64
	Time    time.Time
	Payload []byte
}

func encodeHeader(dst []byte, typ EventType, seq uint64, at time.Time, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(typ))
	binary.LittleEndian.PutUint16(dst[10:12], 0)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[16:24], seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(at.UnixNano()))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (Event, uint32, error) {
	if len(src) < recordHeaderSize {
		return Event{}, 0, ErrInvalidRecordHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return Event{}, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return Event{}, 0, ErrUnsupportedRecordVer
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return Event{}, 0, ErrInvalidRecordHeaderSize
	}
	ev := Event{
		Type: EventType(binary.LittleEndian.Uint16(src[8:10])),
		Seq:  binary.LittleEndian.Uint64(src[16:24]),
		Time: time.Unix(0, int64(binary.LittleEndian.Uint64(src[24:32]))).UTC(),
	}
	payloadLen := binary.LittleEndian.Uint32(src[12:16])
	return ev, payloadLen, nil
}
