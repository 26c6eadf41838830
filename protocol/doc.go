// Package protocol implements the wire format of the SPI bootloader.
//
// Every exchange over the link moves a fixed FrameSize (256 byte) buffer in
// both directions at once. Commands, image chunks and handshake markers all
// travel inside that unit.
//
// # Frame Formats
//
//	Command: [LEN][CMD][PAYLOAD...][CHECKSUM(4)]
//	Chunk:   [DATA(1..252)][CHECKSUM(4)]
//	Marker:  [MARKER][0x00 ...]
//
// Where:
//   - LEN = total frame length in bytes, checksum included
//   - CHECKSUM = 32-bit CRC of everything before it, big-endian
//   - a frame whose LEN byte is zero carries no data
//
// # Handshake
//
// The bootloader acknowledges every accepted frame by clocking out Ack
// (0xFF) or Nack (0x01) until the host answers with WaitForAck. Data
// responses such as the version triple are clocked out until the host
// answers with Repeated.
//
// # Command Builders
//
// Hosts use the Build* functions to create frames:
//
//	frame := protocol.BuildGetVersionCmd()
//	frame, err := protocol.BuildWriteProgramCmd(protocol.ProgramRequest{...})
//	chunk, err := protocol.BuildChunk(image[:protocol.ChunkSize])
//
// # Request Decoders
//
// The bootloader validates a received frame and then decodes its payload:
//
//	if !protocol.Validate(buf, length) {
//	    // NACK
//	}
//	req, err := protocol.ParseEraseRequest(buf)
package protocol
