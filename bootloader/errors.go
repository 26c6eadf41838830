package bootloader

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-spiboot/flash"
)

// Sentinel errors.
var (
	// ErrChecksumMismatch indicates a frame whose trailer did not match.
	// The frame was NACKed and discarded.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNoApplication indicates the last-flashed-address record is erased
	ErrNoApplication = errors.New("no application installed")

	// ErrNoProgram indicates a jump target that reads as erased flash
	ErrNoProgram = errors.New("no program at address")

	// ErrReadback indicates a metadata record that reads back different
	// from what was programmed. Programming only clears bits, so the
	// sector holding it has to be erased before the value can change.
	ErrReadback = errors.New("read back differs from programmed value")
)

// TransportError indicates that a blocking exchange did not complete.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport exchange failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandshakeTimeoutError indicates the host never signalled it was ready for
// a response within the retry budget.
type HandshakeTimeoutError struct {
	// Response is what was being offered: "ACK", "NACK" or "version"
	Response string

	// Attempts is the number of exchanges tried
	Attempts int

	// Err is the last transport error seen, if any
	Err error
}

func (e *HandshakeTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s handshake timed out after %d attempts: %v", e.Response, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s handshake timed out after %d attempts", e.Response, e.Attempts)
}

func (e *HandshakeTimeoutError) Unwrap() error {
	return e.Err
}

// SectorRangeError indicates an erase request outside the physical sectors.
type SectorRangeError struct {
	Start   int
	Count   int
	Sectors int
}

func (e *SectorRangeError) Error() string {
	return fmt.Sprintf("sectors %d+%d out of range: device has %d sectors",
		e.Start, e.Count, e.Sectors)
}

// AddressRangeError indicates a write or jump outside its permitted window.
type AddressRangeError struct {
	// Operation is "write" or "jump"
	Operation string

	Address uint32
	Size    uint32

	// Min and Max bound the permitted window [Min, Max)
	Min uint32
	Max uint32
}

func (e *AddressRangeError) Error() string {
	return fmt.Sprintf("%s 0x%08X (+%d bytes) out of range: valid range is 0x%08X-0x%08X",
		e.Operation, e.Address, e.Size, e.Min, e.Max)
}

// IsOutOfRange reports whether err is a sector or address validation failure.
// Such requests are rejected before flash is touched.
func IsOutOfRange(err error) bool {
	var sectorErr *SectorRangeError
	var addrErr *AddressRangeError
	return errors.As(err, &sectorErr) || errors.As(err, &addrErr)
}

// FlashError indicates the flash controller reported a failure.
type FlashError struct {
	// Operation is the controller call that failed
	Operation string

	// Address is the address involved, when there is one
	Address uint32

	// Status is the erase status word, when the operation was an erase
	Status uint32

	Err error
}

func (e *FlashError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("flash %s failed: status 0x%08X", e.Operation, e.Status)
	case e.Address != 0:
		return fmt.Sprintf("flash %s at 0x%08X failed: %v", e.Operation, e.Address, e.Err)
	default:
		return fmt.Sprintf("flash %s failed: %v", e.Operation, e.Err)
	}
}

func (e *FlashError) Unwrap() error {
	return e.Err
}

// StuckError indicates an operation that kept failing past its retry bound.
type StuckError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *StuckError) Error() string {
	return fmt.Sprintf("device stuck: %s failed %d times: %v", e.Operation, e.Attempts, e.Err)
}

func (e *StuckError) Unwrap() error {
	return e.Err
}

// LaunchError indicates control could not be handed to the application.
type LaunchError struct {
	Entry flash.Entry
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Entry, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
