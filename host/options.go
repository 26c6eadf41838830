package host

import "time"

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during image writes to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Retries is the number of times a NACKed command or chunk is resent
	Retries int

	// AckAttempts is the number of WaitForAck requests made before giving
	// up on a response
	AckAttempts int

	// CommandDelay is the pause after every frame sent to the device
	CommandDelay time.Duration

	// VerifyAfterWrite reads the version record back after an image write
	VerifyAfterWrite bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Retries:          3,
		AckAttempts:      5,
		VerifyAfterWrite: true,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track image writes.
//
// Example:
//
//	prog := host.New(link,
//	    host.WithProgressCallback(func(p host.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := host.New(link, host.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRetries sets how many times a NACKed frame is resent.
//
// Example:
//
//	prog := host.New(link, host.WithRetries(5))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithAckAttempts sets how many WaitForAck requests are made per frame.
func WithAckAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.AckAttempts = attempts
		}
	}
}

// WithCommandDelay sets the pause after every frame. Bridges that relay
// frames asynchronously need one.
//
// Example:
//
//	prog := host.New(link, host.WithCommandDelay(500*time.Millisecond))
func WithCommandDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.CommandDelay = delay
		}
	}
}

// WithVerifyAfterWrite enables or disables reading the version record back
// after an image write. Default is true.
//
// Example:
//
//	prog := host.New(link, host.WithVerifyAfterWrite(false))
func WithVerifyAfterWrite(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterWrite = verify
	}
}
