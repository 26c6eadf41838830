package host

import (
	"fmt"

	"github.com/moffa90/go-spiboot/protocol"
)

// NackError indicates the device kept rejecting a frame.
type NackError struct {
	Operation string
	Attempts  int
}

func (e *NackError) Error() string {
	return fmt.Sprintf("%s: rejected by device after %d attempts", e.Operation, e.Attempts)
}

// NoResponseError indicates the device never answered a WaitForAck request
// with ACK or NACK.
type NoResponseError struct {
	Operation string
	Attempts  int

	// Last is the first byte of the last reply seen
	Last byte
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("%s: no ACK or NACK after %d requests (last reply 0x%02X)",
		e.Operation, e.Attempts, e.Last)
}

// VerificationError indicates the version read back after a write does not
// match the one sent.
type VerificationError struct {
	Expected protocol.Version
	Actual   protocol.Version
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("write verification failed: device reports version %s, expected %s",
		e.Actual, e.Expected)
}
