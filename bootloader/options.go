package bootloader

import (
	"time"

	"github.com/moffa90/go-spiboot/flash"
)

// Config holds the bootloader configuration.
type Config struct {
	// Layout is the flash memory map
	Layout flash.Layout

	// ProgressCallback is called during image transfers (optional)
	ProgressCallback ProgressCallback

	// Logger is used for diagnostic output (optional)
	Logger Logger

	// Sleep waits between polls. Tests replace it to run without delays.
	Sleep func(time.Duration)

	// PollDelay is the wait before every receive exchange
	PollDelay time.Duration

	// IdleDelay is the extra wait after an all-zero frame
	IdleDelay time.Duration

	// ChunkPollDelay is the wait before every chunk receive exchange
	ChunkPollDelay time.Duration

	// HandshakeAttempts bounds the ACK/NACK exchanges waiting for the host
	HandshakeAttempts int

	// HandshakeDelay is the wait before and after each handshake exchange
	HandshakeDelay time.Duration

	// VersionAttempts bounds the exchanges offering the version response
	VersionAttempts int

	// VersionDelay is the wait between version response exchanges
	VersionDelay time.Duration

	// NackAttempts is how many NACK handshakes are tried for a bad chunk
	NackAttempts int

	// StuckChunkLimit is the number of consecutive checksum failures on one
	// chunk after which the transfer is abandoned
	StuckChunkLimit int

	// LockAttempts bounds the retries of a failing flash lock
	LockAttempts int

	// CommitAttempts bounds the retries of a failing version commit
	CommitAttempts int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Layout:            flash.DefaultLayout(),
		Sleep:             time.Sleep,
		PollDelay:         10 * time.Millisecond,
		IdleDelay:         15 * time.Millisecond,
		ChunkPollDelay:    50 * time.Millisecond,
		HandshakeAttempts: 2000,
		HandshakeDelay:    10 * time.Millisecond,
		VersionAttempts:   100,
		VersionDelay:      50 * time.Millisecond,
		NackAttempts:      5,
		StuckChunkLimit:   16,
		LockAttempts:      100,
		CommitAttempts:    10,
	}
}

// Option is a functional option for configuring the Bootloader.
type Option func(*Config)

// WithLayout sets the flash memory map.
func WithLayout(layout flash.Layout) Option {
	return func(c *Config) {
		c.Layout = layout
	}
}

// WithProgressCallback sets a callback function to track image transfers.
//
// Example:
//
//	bl := bootloader.New(link, mem, board,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%d/%d chunks\n", p.Chunk, p.TotalChunks)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for diagnostic output.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSleep replaces the function used to wait between polls.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithoutDelays disables every fixed wait. Useful with in-process transports.
func WithoutDelays() Option {
	return WithSleep(func(time.Duration) {})
}

// WithHandshake sets the ACK/NACK retry budget and spacing.
//
// Example:
//
//	bl := bootloader.New(link, mem, board, bootloader.WithHandshake(500, 5*time.Millisecond))
func WithHandshake(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.HandshakeAttempts = attempts
		}
		if delay >= 0 {
			c.HandshakeDelay = delay
		}
	}
}

// WithVersionRetries sets the retry budget and spacing of the version response.
func WithVersionRetries(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.VersionAttempts = attempts
		}
		if delay >= 0 {
			c.VersionDelay = delay
		}
	}
}

// WithNackAttempts sets how many NACK handshakes are tried for a bad chunk.
func WithNackAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.NackAttempts = attempts
		}
	}
}

// WithStuckChunkLimit sets the consecutive checksum failures tolerated on a
// single chunk before the transfer is abandoned.
func WithStuckChunkLimit(limit int) Option {
	return func(c *Config) {
		if limit > 0 {
			c.StuckChunkLimit = limit
		}
	}
}

// WithLockAttempts bounds the retries of a failing flash lock.
func WithLockAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.LockAttempts = attempts
		}
	}
}

// WithCommitAttempts bounds the retries of a failing version commit.
func WithCommitAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.CommitAttempts = attempts
		}
	}
}
