package models

import (
	"errors"
	"fmt"
)

var (
	ErrFormatVersion  = errors.New("ledger: unsupported format version")
	ErrArchiveCorrupt = errors.New("ledger: archive is corrupt")
	ErrWriteRefused   = errors.New("ledger: write refused")
	ErrNotLoaded      = errors.New("ledger: archive not loaded")
	ErrNoPath         = errors.New("ledger: archive has no file")

	// Precondition failures. Every one of them leaves the ledger untouched.
	ErrPrecondition      = errors.New("ledger: precondition failed")
	ErrNilArgument       = fmt.Errorf("%w: nil argument", ErrPrecondition)
	ErrCheckOpen         = fmt.Errorf("%w: check is still open", ErrPrecondition)
	ErrEmptyCheck        = fmt.Errorf("%w: check has no subchecks", ErrPrecondition)
	ErrTrainingCheck     = fmt.Errorf("%w: training check", ErrPrecondition)
	ErrOrderNotFinal     = fmt.Errorf("%w: order is not final", ErrPrecondition)
	ErrNoEmployee        = fmt.Errorf("%w: acting employee required", ErrPrecondition)
	ErrDrawerEmpty       = fmt.Errorf("%w: drawer is empty", ErrPrecondition)
	ErrDrawerArchived    = fmt.Errorf("%w: drawer is archived", ErrPrecondition)
	ErrDrawerNotOpen     = fmt.Errorf("%w: drawer is not open", ErrPrecondition)
	ErrDrawerNotPulled   = fmt.Errorf("%w: drawer is not pulled", ErrPrecondition)
	ErrDrawerNotBalanced = fmt.Errorf("%w: drawer is not balanced", ErrPrecondition)
	ErrNotServerBank     = fmt.Errorf("%w: drawer is not a server bank", ErrPrecondition)
	ErrDrawerNotFound    = fmt.Errorf("%w: drawer not found", ErrPrecondition)
	ErrDuplicateSerial   = fmt.Errorf("%w: serial number already in use", ErrPrecondition)
	ErrBadTender         = fmt.Errorf("%w: invalid tender type", ErrPrecondition)
)

// FormatVersionError is returned by Open when the header version falls
// outside the supported range.
type FormatVersionError struct {
	Path    string
	Version int
}

func (e *FormatVersionError) Error() string {
	return fmt.Sprintf("ledger: %s: format version %d outside [%d, %d]",
		e.Path, e.Version, MinArchiveVersion, ArchiveVersion)
}

func (e *FormatVersionError) Unwrap() error { return ErrFormatVersion }

// CorruptError reports the section in which an archive failed to load.
type CorruptError struct {
	ArchiveID int
	Path      string
	Section   string
	Err       error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger: archive %d (%s) corrupt in %s section: %v",
		e.ArchiveID, e.Path, e.Section, e.Err)
}

func (e *CorruptError) Unwrap() []error { return []error{ErrArchiveCorrupt, e.Err} }
