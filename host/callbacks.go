package host

import "time"

// Progress phases.
const (
	PhaseWriting   = "writing"
	PhaseVerifying = "verifying"
	PhaseComplete  = "complete"
)

// Progress contains information about an image write.
// Passed to ProgressCallback during WriteProgram.
type Progress struct {
	// Phase describes the current operation phase:
	//   "writing"   - Sending chunks
	//   "verifying" - Reading the version record back
	//   "complete"  - Write finished successfully
	Phase string

	// Percentage is the overall progress (0-100)
	Percentage float64

	// Chunk is the number of chunks acknowledged so far
	Chunk int

	// TotalChunks is the number of chunks in the image
	TotalChunks int

	// BytesWritten is the number of image bytes acknowledged so far
	BytesWritten int

	// Resends is the number of chunks resent after a NACK so far
	Resends int

	// ElapsedTime is the time elapsed since the write started
	ElapsedTime time.Duration
}

// ProgressCallback is called during image writes to report progress.
// Implementations should be fast and non-blocking.
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the programmer.
// This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	prog := host.New(link, host.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
