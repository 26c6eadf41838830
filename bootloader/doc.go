// Package bootloader implements the device side of the SPI update protocol
// for STM32-class microcontrollers.
//
// # Overview
//
// At reset the bootloader reads the boot flag from flash:
//   - BootNeeded (0xFF, also erased flash): listen for one command
//   - anything else: launch the last flashed application immediately
//
// A command is processed in these steps:
//   - Listen: clock 256-byte frames in until one carries data
//   - Validate: check the CRC-32 trailer over [0, length-4)
//   - Handshake: offer NACK on mismatch, otherwise ACK, until the host
//     clocks in WaitForAck
//   - Execute: GetVersion, EraseSectors, WriteProgram or JumpToAddress
//
// # Basic Usage
//
// The caller supplies the SPI exchange, the flash controller and the
// board's launch hooks:
//
//	bl := bootloader.New(spi, flashCtl, board)
//	if err := bl.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run handles exactly one non-empty frame per call and Boot adds the
// reset-time boot flag decision in front of it. Serve repeats Boot the way
// firmware calls the bootloader from its main loop, until an application
// takes over.
//
// # Emulation
//
// flash.Memory and transport.Bus make the whole state machine runnable in
// process:
//
//	mem := flash.NewMemory(flash.DefaultLayout())
//	bus := transport.NewBus()
//	bl := bootloader.New(bus.Master(), mem, board, bootloader.WithoutDelays())
//	go bl.Serve(ctx)
//
//	prog := host.New(bus.Slave())
//	v, err := prog.GetVersion(ctx)
//
// # Image Writes
//
// WriteProgram is followed by a stream of chunk frames of up to 252 bytes
// plus a CRC-32 trailer. Every good chunk is ACKed and programmed, every bad
// one is NACKed and expected again. When the stream ends the image base is
// recorded as the last flashed address; the version record is committed
// only if every chunk programmed, otherwise sectors 3 to 5 are erased.
//
// # Error Handling
//
// The package provides structured error types:
//   - TransportError: an exchange did not complete
//   - HandshakeTimeoutError: the host never collected an ACK, NACK or version
//   - SectorRangeError, AddressRangeError: rejected before flash is touched
//   - FlashError: unlock, program, erase or read failed
//   - StuckError: a lock, version commit or chunk kept failing
//   - LaunchError: the platform refused the control transfer
//   - protocol.CommandError: unknown command code
//
// ErrChecksumMismatch, ErrNoApplication, ErrNoProgram and ErrReadback are
// sentinels. ErrReadback means a metadata record could not take its new
// value because its sector was not erased first.
package bootloader
