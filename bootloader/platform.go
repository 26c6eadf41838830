package bootloader

import "github.com/moffa90/go-spiboot/flash"

// Transport performs one blocking full-duplex exchange. The bootloader is
// the clock master: tx is shifted out while rx is filled, and both have the
// same length.
type Transport interface {
	Exchange(tx, rx []byte) error
}

// Platform is the board support the launch controller hands over to.
type Platform interface {
	// Deinit releases every peripheral the bootloader brought up.
	Deinit() error

	// Transfer loads the main stack pointer from entry and branches to its
	// reset handler. On hardware it does not return. Emulated platforms
	// return nil once control is considered handed over; a non-nil error
	// means the transfer did not happen.
	Transfer(entry flash.Entry) error
}
