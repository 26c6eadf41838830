package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header returns the length and command bytes of a received frame.
// A zero length means no data was received.
func Header(frame []byte) (length int, cmd Command) {
	if len(frame) < PayloadIndex {
		return 0, 0
	}
	return int(frame[LengthIndex]), Command(frame[CommandIndex])
}

// ParseEraseRequest decodes the payload of a validated EraseSectors frame.
//
// Payload format:
//
//	[START][COUNT]
func ParseEraseRequest(frame []byte) (EraseRequest, error) {
	if err := checkLength(frame, CmdEraseSectors, EraseFrameLength); err != nil {
		return EraseRequest{}, err
	}
	return EraseRequest{
		StartSector: frame[PayloadIndex],
		Count:       frame[PayloadIndex+1],
	}, nil
}

// ParseProgramRequest decodes the payload of a validated WriteProgram frame.
//
// Payload format:
//
//	[MAJOR][MINOR][PATCH][ADDR(4) BE][SIZE(4) BE]
func ParseProgramRequest(frame []byte) (ProgramRequest, error) {
	if err := checkLength(frame, CmdWriteProgram, WriteProgramFrameLength); err != nil {
		return ProgramRequest{}, err
	}
	p := frame[PayloadIndex:]
	return ProgramRequest{
		Version: Version{Major: p[0], Minor: p[1], Patch: p[2]},
		Address: binary.BigEndian.Uint32(p[3:7]),
		Size:    binary.BigEndian.Uint32(p[7:11]),
	}, nil
}

// ParseJumpRequest decodes the payload of a validated JumpToAddress frame.
//
// Payload format:
//
//	[ADDR(4) BE][NEXT_BOOT]
func ParseJumpRequest(frame []byte) (JumpRequest, error) {
	if err := checkLength(frame, CmdJumpToAddress, JumpFrameLength); err != nil {
		return JumpRequest{}, err
	}
	p := frame[PayloadIndex:]
	return JumpRequest{
		Address:  binary.BigEndian.Uint32(p[0:4]),
		NextBoot: p[4],
	}, nil
}

// ParseVersionResponse decodes the frame the bootloader clocks out in
// answer to GetVersion.
//
// Data format (VersionResponseSize bytes, zero padded):
//
//	[MAJOR][MINOR][PATCH]
func ParseVersionResponse(frame []byte) (Version, error) {
	if len(frame) < VersionResponseSize {
		return Version{}, fmt.Errorf("invalid data length for version response: got %d bytes, expected %d",
			len(frame), VersionResponseSize)
	}
	return Version{Major: frame[0], Minor: frame[1], Patch: frame[2]}, nil
}

// checkLength verifies the frame is at least as long as its command needs.
// Trailing payload beyond the fixed fields is ignored.
func checkLength(frame []byte, cmd Command, want int) error {
	length, _ := Header(frame)
	if length < want || len(frame) < want {
		return &FrameError{
			Command: cmd,
			Length:  length,
			Reason:  fmt.Sprintf("need at least %d bytes", want),
		}
	}
	return nil
}
