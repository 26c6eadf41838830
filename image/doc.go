// Package image loads firmware images for the SPI bootloader.
//
// # Formats
//
// Two formats are understood:
//   - raw binary (.bin): the file is the image, based at a caller supplied
//     address (the application start by default)
//   - Intel HEX (.hex, .ihex): records 00 to 05, each checked against its
//     two's complement checksum
//
// Intel HEX images are flattened into one contiguous block from the lowest
// to the highest data address. Gaps between records are filled with 0xFF so
// that they program as erased flash.
//
// # Usage
//
// Load a file, picking the format from its extension:
//
//	img, err := image.Load("app.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Base: 0x%08X\n", img.Base)
//	fmt.Printf("Size: %d bytes\n", len(img.Data))
//
// Raw binaries take their base from an option:
//
//	img, err := image.Load("app.bin", image.WithBase(0x08010000))
//
// ParseReader sniffs the content when the format is FormatAuto: a leading
// ':' means Intel HEX.
package image
