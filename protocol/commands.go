package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildGetVersionCmd constructs a GetVersion command frame.
//
// Frame structure:
//
//	[LEN][CMD][CHECKSUM(4)]
func BuildGetVersionCmd() []byte {
	frame := make([]byte, 0, GetVersionFrameLength)
	frame = append(frame, GetVersionFrameLength, CmdGetVersion)
	return appendChecksum(frame)
}

// BuildEraseSectorsCmd constructs an EraseSectors command frame.
//
// Frame structure:
//
//	[LEN][CMD][START][COUNT][CHECKSUM(4)]
//
// The range is validated by the bootloader, not here, so out-of-range
// requests can be built deliberately.
func BuildEraseSectorsCmd(start, count byte) []byte {
	frame := make([]byte, 0, EraseFrameLength)
	frame = append(frame, EraseFrameLength, CmdEraseSectors, start, count)
	return appendChecksum(frame)
}

// BuildMassEraseCmd constructs an EraseSectors command frame requesting a
// mass erase.
func BuildMassEraseCmd() []byte {
	return BuildEraseSectorsCmd(MassErase, MassErase)
}

// BuildWriteProgramCmd constructs a WriteProgram command frame.
// The image itself follows as chunk frames built with BuildChunk.
//
// Frame structure:
//
//	[LEN][CMD][MAJOR][MINOR][PATCH][ADDR(4) BE][SIZE(4) BE][CHECKSUM(4)]
func BuildWriteProgramCmd(req ProgramRequest) ([]byte, error) {
	if req.Size == 0 {
		return nil, fmt.Errorf("program size cannot be zero")
	}

	frame := make([]byte, 0, WriteProgramFrameLength)
	frame = append(frame, WriteProgramFrameLength, CmdWriteProgram)
	frame = append(frame, req.Version.Major, req.Version.Minor, req.Version.Patch)
	frame = binary.BigEndian.AppendUint32(frame, req.Address)
	frame = binary.BigEndian.AppendUint32(frame, req.Size)
	return appendChecksum(frame), nil
}

// BuildJumpToAddressCmd constructs a JumpToAddress command frame.
//
// Frame structure:
//
//	[LEN][CMD][ADDR(4) BE][NEXT_BOOT][CHECKSUM(4)]
func BuildJumpToAddressCmd(req JumpRequest) []byte {
	frame := make([]byte, 0, JumpFrameLength)
	frame = append(frame, JumpFrameLength, CmdJumpToAddress)
	frame = binary.BigEndian.AppendUint32(frame, req.Address)
	frame = append(frame, req.NextBoot)
	return appendChecksum(frame)
}

// BuildChunk constructs a chunk frame carrying part of an image.
//
// Frame structure:
//
//	[DATA(1..252)][CHECKSUM(4)]
func BuildChunk(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("chunk cannot be empty")
	}
	if len(data) > ChunkSize {
		return nil, fmt.Errorf("chunk length %d exceeds maximum %d bytes", len(data), ChunkSize)
	}

	frame := make([]byte, 0, len(data)+ChecksumSize)
	frame = append(frame, data...)
	return appendChecksum(frame), nil
}

// MarkerFrame returns a single handshake marker padded to FrameSize.
func MarkerFrame(marker byte) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = marker
	return frame
}
