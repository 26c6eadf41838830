package bootloader

import "time"

// Progress phases reported by the write engine.
const (
	PhaseReceiving = "receiving"
	PhaseResend    = "resend"
	PhaseCommitted = "committed"
	PhaseFailed    = "failed"
)

// Progress contains information about an image transfer in flight.
// Passed to ProgressCallback after every chunk frame the write engine handles.
type Progress struct {
	// Phase describes the current step:
	//   "receiving" - a chunk was acknowledged and programmed
	//   "resend"    - a chunk failed its checksum and was NACKed
	//   "committed" - the version record was written
	//   "failed"    - the transfer was abandoned and the recovery erase ran
	Phase string

	// Chunk is the number of chunks acknowledged so far
	Chunk int

	// TotalChunks is the number of chunks the transfer takes
	TotalChunks int

	// BytesWritten is the number of image bytes programmed so far
	BytesWritten uint32

	// Outstanding is the number of image bytes still expected from the host
	Outstanding uint32

	// Mismatches is the number of consecutive checksum failures on the
	// current chunk
	Mismatches int

	// ElapsedTime is the time elapsed since the WriteProgram command
	ElapsedTime time.Duration
}

// ProgressCallback is called by the write engine as chunks arrive.
// Implementations should return quickly; the host is waiting on the link.
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the
// bootloader. This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	bl := bootloader.New(link, mem, board, bootloader.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
