package bootloader

import (
	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/protocol"
)

// erase runs an EraseSectors request. A sector range is validated before
// flash is unlocked; a mass erase clears the application sectors.
func (b *Bootloader) erase(req protocol.EraseRequest) error {
	cfg := flash.EraseConfig{Mass: true}

	if req.Mass() {
		b.logInfo("mass erase requested")
	} else {
		start, count := int(req.StartSector), int(req.Count)
		sectors := len(b.config.Layout.Sectors)
		if count == 0 || start >= sectors || start+count > sectors {
			return &SectorRangeError{Start: start, Count: count, Sectors: sectors}
		}
		cfg = flash.EraseConfig{Sector: start, Count: count}
		b.logInfo("erasing sectors", "start", start, "count", count)
	}

	if err := b.dev.Unlock(); err != nil {
		return &FlashError{Operation: "unlock", Err: err}
	}
	err := b.eraseUnlocked(cfg)
	if lockErr := b.lock(); err == nil {
		err = lockErr
	}
	return err
}

// eraseUnlocked erases cfg on an unlocked device and checks the status word.
func (b *Bootloader) eraseUnlocked(cfg flash.EraseConfig) error {
	status, err := b.dev.Erase(cfg)
	if err != nil {
		return &FlashError{Operation: "erase", Status: status, Err: err}
	}
	if status != flash.EraseOK {
		return &FlashError{Operation: "erase", Status: status}
	}
	return nil
}

// recoveryErase erases the sectors holding a partially written image. The device
// must be unlocked.
func (b *Bootloader) recoveryErase() error {
	layout := b.config.Layout
	b.logInfo("recovery erase", "start", layout.RecoveryStart, "count", layout.RecoveryCount)
	return b.eraseUnlocked(flash.EraseConfig{
		Sector: layout.RecoveryStart,
		Count:  layout.RecoveryCount,
	})
}

// lock relocks flash, retrying a failing lock up to LockAttempts times.
func (b *Bootloader) lock() error {
	var err error
	for attempt := 0; attempt < b.config.LockAttempts; attempt++ {
		if err = b.dev.Lock(); err == nil {
			return nil
		}
	}
	b.logError("flash lock stuck", "attempts", b.config.LockAttempts, "error", err)
	return &StuckError{Operation: "lock", Attempts: b.config.LockAttempts, Err: err}
}
