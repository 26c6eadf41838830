package flash

import (
	"fmt"

	"github.com/moffa90/go-spiboot/protocol"
)

// Entry is the application entry descriptor found at an image base: the
// initial main stack pointer followed by the reset handler address.
type Entry struct {
	Base         uint32
	StackPointer uint32
	Reset        uint32
}

func (e Entry) String() string {
	return fmt.Sprintf("image@0x%08X sp=0x%08X reset=0x%08X", e.Base, e.StackPointer, e.Reset)
}

// Store gives typed access to the persisted metadata block and to entry
// descriptors. Program* methods expect the device to be unlocked.
type Store struct {
	dev    Device
	layout Layout
}

// NewStore returns a Store over dev laid out as layout.
func NewStore(dev Device, layout Layout) *Store {
	return &Store{dev: dev, layout: layout}
}

// Device returns the underlying flash controller.
func (s *Store) Device() Device {
	return s.dev
}

// Layout returns the flash layout.
func (s *Store) Layout() Layout {
	return s.layout
}

// BootFlag reads the boot flag byte.
func (s *Store) BootFlag() (byte, error) {
	return s.dev.ReadByteAt(s.layout.BootFlagAddr)
}

// ProgramBootFlag writes the boot flag byte.
func (s *Store) ProgramBootFlag(v byte) error {
	return s.dev.ProgramByte(s.layout.BootFlagAddr, v)
}

// Version reads the version record.
func (s *Store) Version() (protocol.Version, error) {
	var raw [protocol.VersionResponseSize]byte
	for i := range raw {
		b, err := s.dev.ReadByteAt(s.layout.VersionAddr + uint32(i))
		if err != nil {
			return protocol.Version{}, err
		}
		raw[i] = b
	}
	return protocol.Version{Major: raw[0], Minor: raw[1], Patch: raw[2]}, nil
}

// ProgramVersion writes the version record, major first. It stops at the
// first byte that fails.
func (s *Store) ProgramVersion(v protocol.Version) error {
	for i, b := range []byte{v.Major, v.Minor, v.Patch} {
		if err := s.dev.ProgramByte(s.layout.VersionAddr+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// LastFlashed reads the last-flashed-address record. ErasedWord means no
// application is installed.
func (s *Store) LastFlashed() (uint32, error) {
	return s.dev.ReadWord(s.layout.LastFlashedAddr)
}

// ProgramLastFlashed writes the last-flashed-address record.
func (s *Store) ProgramLastFlashed(addr uint32) error {
	return s.dev.ProgramWord(s.layout.LastFlashedAddr, addr)
}

// EntryAt reads the entry descriptor of the image based at base.
func (s *Store) EntryAt(base uint32) (Entry, error) {
	sp, err := s.dev.ReadWord(base)
	if err != nil {
		return Entry{}, err
	}
	reset, err := s.dev.ReadWord(base + 4)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Base: base, StackPointer: sp, Reset: reset}, nil
}
