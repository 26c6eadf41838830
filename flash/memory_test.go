package flash

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-spiboot/protocol"
)

func TestMemoryStartsErasedAndLocked(t *testing.T) {
	m := NewMemory(DefaultLayout())

	assert.True(t, m.Locked())
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, m.Bytes(DefaultBase, 4))

	err := m.ProgramByte(DefaultApplicationStart, 0x00)
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestMemoryProgramClearsBitsOnly(t *testing.T) {
	m := NewMemory(DefaultLayout())
	require.NoError(t, m.Unlock())

	require.NoError(t, m.ProgramByte(DefaultApplicationStart, 0xF0))
	require.NoError(t, m.ProgramByte(DefaultApplicationStart, 0x0F))

	b, err := m.ReadByteAt(DefaultApplicationStart)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), b)
}

func TestMemoryWordIsLittleEndian(t *testing.T) {
	m := NewMemory(DefaultLayout())
	require.NoError(t, m.Unlock())
	require.NoError(t, m.ProgramWord(DefaultLastFlashedAddr, 0x0800C000))

	assert.Equal(t, []byte{0x00, 0xC0, 0x00, 0x08}, m.Bytes(DefaultLastFlashedAddr, 4))

	w, err := m.ReadWord(DefaultLastFlashedAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0800C000), w)
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(DefaultLayout())
	require.NoError(t, m.Unlock())

	_, err := m.ReadByteAt(0x08040000)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = m.ReadWord(0x0803FFFE)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	err = m.ProgramWord(0x0803FFFE, 0)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMemoryErase(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		name     string
		cfg      EraseConfig
		erased   []uint32
		retained []uint32
	}{
		{
			name:     "single sector",
			cfg:      EraseConfig{Sector: 3, Count: 1},
			erased:   []uint32{0x0800C000},
			retained: []uint32{0x08000000, 0x08010000, DefaultBootFlagAddr},
		},
		{
			name:     "mass erase keeps bootloader",
			cfg:      EraseConfig{Mass: true},
			erased:   []uint32{0x0800C000, 0x08010000, DefaultBootFlagAddr},
			retained: []uint32{0x08000000, 0x08008000},
		},
		{
			name:   "all sectors",
			cfg:    EraseConfig{Sector: 0, Count: 6},
			erased: []uint32{0x08000000, 0x0800C000, DefaultBootFlagAddr},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemory(l)
			for _, a := range append(tt.erased, tt.retained...) {
				require.NoError(t, m.Poke(a, []byte{0x00}))
			}
			require.NoError(t, m.Unlock())

			status, err := m.Erase(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, uint32(EraseOK), status)

			for _, a := range tt.erased {
				assert.Equal(t, []byte{ErasedByte}, m.Bytes(a, 1), "0x%08X", a)
			}
			for _, a := range tt.retained {
				assert.Equal(t, []byte{0x00}, m.Bytes(a, 1), "0x%08X", a)
			}
		})
	}
}

func TestMemoryEraseRejectsBadRange(t *testing.T) {
	m := NewMemory(DefaultLayout())
	require.NoError(t, m.Unlock())

	status, err := m.Erase(EraseConfig{Sector: 4, Count: 3})
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.NotEqual(t, uint32(EraseOK), status)
}

func TestMemoryFaults(t *testing.T) {
	m := NewMemory(DefaultLayout())

	m.InjectFault(OpUnlock, 1)
	assert.Equal(t, ErrUnlockFault, m.Unlock())
	assert.NoError(t, m.Unlock())
	assert.Equal(t, 2, m.Calls(OpUnlock))

	m.InjectFault(OpLock, -1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, ErrLockFault, m.Lock())
	}
	m.InjectFault(OpLock, 0)
	assert.NoError(t, m.Lock())

	require.NoError(t, m.Unlock())
	m.InjectFault(OpEraseStatus, 1)
	status, err := m.Erase(EraseConfig{Sector: 3, Count: 1})
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), status)

	m.InjectFault(OpProgram, 1)
	assert.True(t, errors.Is(m.ProgramByte(DefaultApplicationStart, 0), ErrProgramFault))
}

func TestMemorySaveLoad(t *testing.T) {
	l := DefaultLayout()
	m := NewMemory(l)
	require.NoError(t, m.Poke(DefaultApplicationStart, []byte{1, 2, 3}))

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	assert.Equal(t, int(l.Size()), buf.Len())

	loaded, err := LoadMemory(&buf, l)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, loaded.Bytes(DefaultApplicationStart, 3))

	_, err = LoadMemory(bytes.NewReader([]byte{1, 2}), l)
	assert.Error(t, err)
}

func TestMemoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	l := DefaultLayout()

	fresh, err := OpenMemory(path, l)
	require.NoError(t, err)
	assert.Equal(t, []byte{ErasedByte}, fresh.Bytes(DefaultBootFlagAddr, 1))

	require.NoError(t, fresh.Poke(DefaultBootFlagAddr, []byte{protocol.BootNotNeeded}))
	require.NoError(t, fresh.SaveFile(path))

	reopened, err := OpenMemory(path, l)
	require.NoError(t, err)
	assert.Equal(t, []byte{protocol.BootNotNeeded}, reopened.Bytes(DefaultBootFlagAddr, 1))
}
