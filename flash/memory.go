package flash

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Op names a Memory operation for fault injection and call counting.
type Op int

const (
	OpUnlock Op = iota
	OpLock
	OpProgram
	OpErase
	// OpEraseStatus makes Erase succeed but report a failing status word
	OpEraseStatus
	opCount
)

// Memory is a RAM-backed Device. It enforces the lock discipline and the
// bit-clearing behaviour of real flash, and can inject faults.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	layout Layout
	data   []byte
	locked bool
	faults [opCount]int
	calls  [opCount]int
}

// NewMemory returns an erased, locked Memory laid out as layout.
func NewMemory(layout Layout) *Memory {
	m := &Memory{
		layout: layout,
		data:   make([]byte, layout.Size()),
		locked: true,
	}
	for i := range m.data {
		m.data[i] = ErasedByte
	}
	return m
}

// LoadMemory reads a flash dump produced by Save.
func LoadMemory(r io.Reader, layout Layout) (*Memory, error) {
	m := NewMemory(layout)
	if _, err := io.ReadFull(r, m.data); err != nil {
		return nil, errors.Wrap(err, "read flash image")
	}
	return m, nil
}

// OpenMemory loads a flash dump from path, or returns an erased Memory if
// the file does not exist.
func OpenMemory(path string, layout Layout) (*Memory, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewMemory(layout), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	m, err := LoadMemory(f, layout)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}

// Save writes the full flash contents to w.
func (m *Memory) Save(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := w.Write(m.data)
	return errors.Wrap(err, "write flash image")
}

// SaveFile writes the full flash contents to path.
func (m *Memory) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := m.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// InjectFault makes the next n calls of op fail. A negative n fails every
// call until cleared with InjectFault(op, 0).
func (m *Memory) InjectFault(op Op, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = n
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Locked reports whether the controller is locked.
func (m *Memory) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Bytes returns a copy of [addr, addr+n).
func (m *Memory) Bytes(addr uint32, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.layout.Contains(addr, n) {
		return nil
	}
	off := addr - m.layout.Base
	return append([]byte(nil), m.data[off:off+uint32(n)]...)
}

// Poke writes p at addr, bypassing the lock and bit-clearing rules. It is
// meant for preparing device state.
func (m *Memory) Poke(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.layout.Contains(addr, len(p)) {
		return errors.Wrapf(ErrOutOfRange, "poke 0x%08X+%d", addr, len(p))
	}
	copy(m.data[addr-m.layout.Base:], p)
	return nil
}

// Unlock implements Device.
func (m *Memory) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault(OpUnlock) {
		return ErrUnlockFault
	}
	m.locked = false
	return nil
}

// Lock implements Device.
func (m *Memory) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault(OpLock) {
		return ErrLockFault
	}
	m.locked = true
	return nil
}

// ProgramByte implements Device.
func (m *Memory) ProgramByte(addr uint32, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.program(addr, []byte{v})
}

// ProgramWord implements Device.
func (m *Memory) ProgramWord(addr uint32, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return m.program(addr, buf[:])
}

func (m *Memory) program(addr uint32, p []byte) error {
	if m.fault(OpProgram) {
		return errors.Wrapf(ErrProgramFault, "program 0x%08X", addr)
	}
	if m.locked {
		return errors.Wrapf(ErrLocked, "program 0x%08X", addr)
	}
	if !m.layout.Contains(addr, len(p)) {
		return errors.Wrapf(ErrOutOfRange, "program 0x%08X", addr)
	}
	off := addr - m.layout.Base
	for i, b := range p {
		m.data[off+uint32(i)] &= b
	}
	return nil
}

// Erase implements Device.
func (m *Memory) Erase(cfg EraseConfig) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first, count := cfg.Sector, cfg.Count
	if cfg.Mass {
		first, count = m.layout.ApplicationSectors()
	}
	if m.fault(OpErase) {
		return uint32(first), errors.Wrapf(ErrEraseFault, "erase sector %d", first)
	}
	if m.locked {
		return uint32(first), errors.Wrap(ErrLocked, "erase")
	}
	if count <= 0 || first < 0 || first+count > len(m.layout.Sectors) {
		return uint32(first), errors.Wrapf(ErrOutOfRange, "erase sectors %d+%d", first, count)
	}

	for i := first; i < first+count; i++ {
		start, size, _ := m.layout.Sector(i)
		off := start - m.layout.Base
		for j := off; j < off+size; j++ {
			m.data[j] = ErasedByte
		}
	}
	if m.fault(OpEraseStatus) {
		return uint32(first), nil
	}
	return EraseOK, nil
}

// ReadByteAt implements Device.
func (m *Memory) ReadByteAt(addr uint32) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.layout.Contains(addr, 1) {
		return 0, errors.Wrapf(ErrOutOfRange, "read 0x%08X", addr)
	}
	return m.data[addr-m.layout.Base], nil
}

// ReadWord implements Device.
func (m *Memory) ReadWord(addr uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.layout.Contains(addr, 4) {
		return 0, errors.Wrapf(ErrOutOfRange, "read 0x%08X", addr)
	}
	off := addr - m.layout.Base
	return binary.LittleEndian.Uint32(m.data[off : off+4]), nil
}

// fault counts a call of op and reports whether it should fail.
// Callers hold m.mu.
func (m *Memory) fault(op Op) bool {
	m.calls[op]++
	switch n := m.faults[op]; {
	case n < 0:
		return true
	case n > 0:
		m.faults[op]--
		return true
	}
	return false
}
