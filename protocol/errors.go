package protocol

import "fmt"

// FrameError indicates a frame that cannot be decoded.
type FrameError struct {
	// Command is the command the frame claimed to carry
	Command Command

	// Length is the frame's length byte
	Length int

	// Reason describes what is wrong with the frame
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s frame (length %d): %s", e.Command, e.Length, e.Reason)
}

// CommandError indicates a command code with no handler.
type CommandError struct {
	Code byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("unknown command 0x%02X", e.Code)
}

// IsCommandError returns true if the error is a CommandError.
func IsCommandError(err error) bool {
	_, ok := err.(*CommandError)
	return ok
}
