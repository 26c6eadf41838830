package protocol

import "encoding/binary"

// Checksum algorithm constants.
const (
	// CRC32Polynomial is the CRC-32 polynomial used by the STM32 CRC unit
	CRC32Polynomial = 0x04C11DB7

	// CRC32InitialValue is the accumulator value after a reset
	CRC32InitialValue = 0xFFFFFFFF

	// CRC32HighBitMask is the high bit mask for CRC-32 calculations
	CRC32HighBitMask = 0x80000000

	// BitsPerWord is the number of bits consumed per accumulate step
	BitsPerWord = 32
)

// Checksum is a running 32-bit CRC accumulator.
//
// It behaves like the CRC peripheral the bootloader was built around: every
// byte is fed as a zero-extended 32-bit data word, shifted MSB first, with no
// input or output reflection and no final XOR. A host computes the same value
// by running CRC-32/MPEG-2 over each byte padded to four big-endian bytes.
//
// The zero value is not ready for use; call Reset or use NewChecksum.
type Checksum struct {
	crc uint32
}

// NewChecksum returns an accumulator in its reset state.
func NewChecksum() *Checksum {
	c := &Checksum{}
	c.Reset()
	return c
}

// Reset returns the accumulator to CRC32InitialValue.
func (c *Checksum) Reset() {
	c.crc = CRC32InitialValue
}

// AccumulateByte feeds one byte and returns the running value.
func (c *Checksum) AccumulateByte(b byte) uint32 {
	c.crc ^= uint32(b)
	for i := 0; i < BitsPerWord; i++ {
		if c.crc&CRC32HighBitMask != 0 {
			c.crc = (c.crc << 1) ^ CRC32Polynomial
		} else {
			c.crc <<= 1
		}
	}
	return c.crc
}

// Write feeds p one byte at a time. It never fails.
func (c *Checksum) Write(p []byte) (int, error) {
	for _, b := range p {
		c.AccumulateByte(b)
	}
	return len(p), nil
}

// Sum32 returns the current accumulator value.
func (c *Checksum) Sum32() uint32 {
	return c.crc
}

// Calculate computes the checksum of data from a reset accumulator.
func Calculate(data []byte) uint32 {
	c := NewChecksum()
	_, _ = c.Write(data)
	return c.Sum32()
}

// Validate reports whether the frame's trailer matches its contents.
//
// The checksum covers bytes [0, length-4) and is stored big-endian in
// [length-4, length). Frames shorter than MinFrameSize or longer than the
// buffer never match. The frame is not modified.
func Validate(frame []byte, length int) bool {
	if length < MinFrameSize || length > len(frame) {
		return false
	}
	return verify(frame, length-ChecksumSize)
}

// ValidateChunk reports whether a chunk frame carrying n image bytes is
// intact. The checksum covers [0, n) and is stored at [n, n+4).
func ValidateChunk(buf []byte, n int) bool {
	if n <= 0 || n+ChecksumSize > len(buf) {
		return false
	}
	return verify(buf, n)
}

func verify(buf []byte, covered int) bool {
	expected := binary.BigEndian.Uint32(buf[covered : covered+ChecksumSize])
	return Calculate(buf[:covered]) == expected
}

// appendChecksum appends the big-endian checksum of frame to frame.
func appendChecksum(frame []byte) []byte {
	return binary.BigEndian.AppendUint32(frame, Calculate(frame))
}
