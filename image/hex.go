package image

import (
	"bufio"
	"encoding/hex"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/moffa90/go-spiboot/flash"
)

// Intel HEX record types.
const (
	RecordData                   = 0x00
	RecordEOF                    = 0x01
	RecordExtendedSegmentAddress = 0x02
	RecordStartSegmentAddress    = 0x03
	RecordExtendedLinearAddress  = 0x04
	RecordStartLinearAddress     = 0x05
)

const (
	// recordOverhead is byte count + address + type + checksum
	recordOverhead = 5

	// minimumRecordLength is the shortest record line in hex characters,
	// without the leading ':'
	minimumRecordLength = recordOverhead * 2
)

// record is one decoded line.
type record struct {
	kind    byte
	address uint16
	data    []byte
}

// segment is a run of data bytes at an absolute address.
type segment struct {
	address uint32
	data    []byte
}

// parseIntelHex decodes records until the EOF record and flattens them.
func parseIntelHex(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)

	var (
		segments []segment
		upper    uint32
		entry    uint32
		lineNum  int
		sawEOF   bool
	)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines
		if line == "" {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}

		switch rec.kind {
		case RecordData:
			if len(rec.data) == 0 {
				continue
			}
			segments = append(segments, segment{
				address: upper + uint32(rec.address),
				data:    rec.data,
			})
		case RecordEOF:
			sawEOF = true
		case RecordExtendedSegmentAddress:
			if len(rec.data) != 2 {
				return nil, errors.Errorf("line %d: segment address record needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			upper = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 4
		case RecordStartSegmentAddress:
			if len(rec.data) != 4 {
				return nil, errors.Errorf("line %d: start segment record needs 4 bytes, got %d", lineNum, len(rec.data))
			}
			cs := uint32(rec.data[0])<<8 | uint32(rec.data[1])
			ip := uint32(rec.data[2])<<8 | uint32(rec.data[3])
			entry = cs<<4 + ip
		case RecordExtendedLinearAddress:
			if len(rec.data) != 2 {
				return nil, errors.Errorf("line %d: linear address record needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			upper = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 16
		case RecordStartLinearAddress:
			if len(rec.data) != 4 {
				return nil, errors.Errorf("line %d: start linear record needs 4 bytes, got %d", lineNum, len(rec.data))
			}
			entry = uint32(rec.data[0])<<24 | uint32(rec.data[1])<<16 |
				uint32(rec.data[2])<<8 | uint32(rec.data[3])
		default:
			return nil, errors.Errorf("line %d: unknown record type 0x%02X", lineNum, rec.kind)
		}

		if sawEOF {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read hex image")
	}
	if !sawEOF {
		return nil, ErrMissingEOF
	}

	img, err := flatten(segments)
	if err != nil {
		return nil, err
	}
	img.Entry = entry
	return img, nil
}

// parseRecord decodes a single ':'-prefixed record line.
//
// Record format:
//
//	:[ByteCount(1)][Address(2)][Type(1)][Data(N)][Checksum(1)]
//
// All fields are hex-encoded, the address big-endian. The checksum is the
// two's complement of the sum of every preceding byte.
func parseRecord(line string) (record, error) {
	if line[0] != ':' {
		return record{}, errors.New("record must start with ':'")
	}
	line = line[1:]

	if len(line) < minimumRecordLength {
		return record{}, errors.Errorf("record too short: got %d characters, minimum is %d", len(line), minimumRecordLength)
	}

	raw, err := hex.DecodeString(line)
	if err != nil {
		return record{}, errors.Wrap(err, "invalid hex data")
	}

	count := int(raw[0])
	if len(raw) != recordOverhead+count {
		return record{}, errors.Errorf("data length mismatch: got %d bytes, expected %d", len(raw)-recordOverhead, count)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return record{}, errors.Wrapf(ErrChecksum, "got 0x%02X, expected 0x%02X",
			raw[len(raw)-1], recordChecksum(raw[:len(raw)-1]))
	}

	return record{
		kind:    raw[3],
		address: uint16(raw[1])<<8 | uint16(raw[2]),
		data:    raw[4 : 4+count],
	}, nil
}

// recordChecksum computes the two's complement checksum of a record body.
func recordChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// flatten lays the segments out in one buffer. Gaps read as erased flash;
// overlapping records keep the later bytes.
func flatten(segments []segment) (*Image, error) {
	if len(segments) == 0 {
		return nil, ErrEmpty
	}

	low := uint64(segments[0].address)
	high := low
	for _, s := range segments {
		start := uint64(s.address)
		end := start + uint64(len(s.data))
		if start < low {
			low = start
		}
		if end > high {
			high = end
		}
	}
	if high-low > MaxSize {
		return nil, errors.Wrapf(ErrTooLarge, "records span 0x%08X to 0x%08X", low, high)
	}

	data := make([]byte, high-low)
	for i := range data {
		data[i] = flash.ErasedByte
	}
	for _, s := range segments {
		copy(data[uint64(s.address)-low:], s.data)
	}

	return &Image{Base: uint32(low), Data: data}, nil
}
