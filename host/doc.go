// Package host is the programming side of the SPI bootloader protocol.
//
// # Overview
//
// Every operation sends a command frame and then asks for the device's
// response by sending WaitForAck until it answers ACK or NACK. A NACKed
// frame is sent again, up to the configured number of retries.
//
// # Basic Usage
//
//	link, err := transport.OpenSerial("/dev/ttyUSB0", 115200)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer link.Close()
//
//	prog := host.New(link)
//
//	img, err := image.Load("app.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := prog.MassErase(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	version := protocol.Version{Major: 1, Minor: 0, Patch: 0}
//	if err := prog.WriteProgram(ctx, img.Data, version, img.Base); err != nil {
//	    log.Fatal(err)
//	}
//	err = prog.JumpToApplication(ctx, protocol.BootNotNeeded)
//
// # Progress Tracking
//
//	prog := host.New(link,
//	    host.WithProgressCallback(func(p host.Progress) {
//	        fmt.Printf("[%s] %.1f%% - chunk %d/%d\n",
//	            p.Phase, p.Percentage, p.Chunk, p.TotalChunks)
//	    }),
//	)
//
// # Error Handling
//
// The package provides structured error types:
//   - NackError: the device rejected a frame on every attempt
//   - NoResponseError: the device never answered ACK or NACK
//   - VerificationError: the version read back after a write differs
//
// The device acknowledges a command before executing it, so a rejected
// erase range or jump target is not reported back over the link. A failed
// image write is detected by the version read back after it.
package host
