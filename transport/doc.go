// Package transport provides the byte-exchange links the bootloader and
// the host programmer run over.
//
// Both sides see a link as a single blocking call that shifts a frame out
// and a frame in at the same time:
//
//	Exchange(tx, rx []byte) error
//
// Bus connects a bootloader and a host in the same process. Serial reaches
// a real device through a USB-serial to SPI-slave bridge.
package transport
