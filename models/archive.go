package models

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Archive is one sealed accounting period. Only its header is kept in memory
// until it is loaded; after a successful load from disk it is immutable.
//
// The current period is represented by a placeholder archive (see
// NewCurrentArchive) that reads the System's live lists and is never saved.
type Archive struct {
	ID               int
	StartTime        time.Time
	EndTime          time.Time
	FileVersion      int
	LastSerialNumber int
	Tax              TaxSettings

	path     string
	reporter ErrorReporter

	loaded   bool
	changed  bool
	corrupt  bool
	fromDisk bool
	loading  bool

	// set for the current period placeholder
	sys *System

	checks     []*Check
	drawers    []*Drawer
	media      MediaCatalog
	tips       TipDB
	work       WorkDB
	expenses   ExpenseDB
	exceptions *ExceptionDB

	creditExceptions CreditDB
	creditRefunds    CreditDB
	creditVoids      CreditDB
	ccInit           CreditResults
	ccSAFDetails     CreditResults
	ccSettle         CreditResults

	altSettings bool
}

// NewArchive returns an unloaded archive backed by path.
func NewArchive(path string, reporter ErrorReporter) *Archive {
	a := &Archive{path: path, reporter: reporterOrDiscard(reporter)}
	a.exceptions = &ExceptionDB{owner: a}
	return a
}

// newSealedArchive returns an empty, loaded archive that has never been
// written, ready to be filled and saved.
func newSealedArchive(id int, path string, start, end time.Time, reporter ErrorReporter) *Archive {
	a := NewArchive(path, reporter)
	a.ID = id
	a.StartTime = start
	a.EndTime = end
	a.loaded = true
	return a
}

// NewCurrentArchive returns the read-only placeholder for the open period.
func NewCurrentArchive(sys *System) *Archive {
	a := &Archive{sys: sys, loaded: true, reporter: sys.Reporter()}
	if last := sys.Archives.Last(); last != nil {
		a.StartTime = last.EndTime
	}
	a.LastSerialNumber = sys.LastSerial()
	a.Tax = sys.Settings.Tax
	return a
}

func (a *Archive) Path() string     { return a.path }
func (a *Archive) IsLoaded() bool   { return a.loaded }
func (a *Archive) IsChanged() bool  { return a.changed }
func (a *Archive) IsCorrupt() bool  { return a.corrupt }
func (a *Archive) IsFromDisk() bool { return a.fromDisk }
func (a *Archive) IsCurrent() bool  { return a.sys != nil }

func (a *Archive) markChanged() {
	if a.loading || a.sys != nil {
		return
	}
	a.changed = true
}

func (a *Archive) writable() error {
	switch {
	case a.sys != nil:
		return fmt.Errorf("%w: current period is read-only", ErrWriteRefused)
	case a.corrupt:
		return ErrArchiveCorrupt
	case !a.loaded:
		return ErrNotLoaded
	case a.fromDisk:
		return fmt.Errorf("%w: archive %d already on disk", ErrWriteRefused, a.ID)
	}
	return nil
}

func (a *Archive) Checks() []*Check {
	if a.sys != nil {
		return a.sys.checks
	}
	return a.checks
}

func (a *Archive) Drawers() []*Drawer {
	if a.sys != nil {
		return a.sys.drawers
	}
	return a.drawers
}

func (a *Archive) Media() *MediaCatalog {
	if a.sys != nil {
		return &a.sys.Settings.Media
	}
	return &a.media
}

func (a *Archive) Tips() *TipDB {
	if a.sys != nil {
		return &a.sys.Tips
	}
	return &a.tips
}

func (a *Archive) Work() *WorkDB {
	if a.sys != nil {
		return &a.sys.Work
	}
	return &a.work
}

func (a *Archive) Expenses() *ExpenseDB {
	if a.sys != nil {
		return &a.sys.Expenses
	}
	return &a.expenses
}

func (a *Archive) Exceptions() *ExceptionDB {
	if a.sys != nil {
		return a.sys.Exceptions
	}
	return a.exceptions
}

// CreditDBs returns the exception, refund and void card logs.
func (a *Archive) CreditDBs() (exceptions, refunds, voids *CreditDB) {
	if a.sys != nil {
		return &a.sys.CreditExceptions, &a.sys.CreditRefunds, &a.sys.CreditVoids
	}
	return &a.creditExceptions, &a.creditRefunds, &a.creditVoids
}

// CCResults returns the batch init, SAF detail and settlement results.
func (a *Archive) CCResults() (init, safDetails, settle *CreditResults) {
	if a.sys != nil {
		return &a.sys.CCInit, &a.sys.CCSAFDetails, &a.sys.CCSettle
	}
	return &a.ccInit, &a.ccSAFDetails, &a.ccSettle
}

func (a *Archive) noteSerial(serial int) {
	if serial > a.LastSerialNumber {
		a.LastSerialNumber = serial
	}
}

// AddCheck takes a settled check into the archive.
func (a *Archive) AddCheck(c *Check) error {
	if c == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	if c.IsOpen() {
		return ErrCheckOpen
	}
	a.appendCheck(c)
	a.markChanged()
	return nil
}

func (a *Archive) appendCheck(c *Check) {
	a.checks = append(a.checks, c)
	a.noteSerial(c.Serial)
}

func (a *Archive) RemoveCheck(c *Check) error {
	if c == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	for i, x := range a.checks {
		if x == c {
			a.checks = append(a.checks[:i], a.checks[i+1:]...)
			a.markChanged()
			return nil
		}
	}
	return fmt.Errorf("%w: check %d not in archive %d", ErrPrecondition, c.Serial, a.ID)
}

func (a *Archive) AddDrawer(d *Drawer) error {
	if d == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	a.appendDrawer(d)
	a.markChanged()
	return nil
}

func (a *Archive) appendDrawer(d *Drawer) {
	d.ArchiveID = a.ID
	a.drawers = append(a.drawers, d)
	a.noteSerial(d.Serial)
}

func (a *Archive) RemoveDrawer(d *Drawer) error {
	if d == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	for i, x := range a.drawers {
		if x == d {
			a.drawers = append(a.drawers[:i], a.drawers[i+1:]...)
			a.markChanged()
			return nil
		}
	}
	return ErrDrawerNotFound
}

func (a *Archive) AddWorkEntry(we *WorkEntry) error {
	if we == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	a.work.Add(we)
	a.markChanged()
	return nil
}

func (a *Archive) RemoveWorkEntry(we *WorkEntry) bool {
	if a.writable() != nil || !a.work.Remove(we) {
		return false
	}
	a.markChanged()
	return true
}

// AddMedia appends a media row to its kind's table. Rows added while the
// archive is being read do not mark it changed.
func (a *Archive) AddMedia(mi *MediaInfo) error {
	if mi == nil {
		return ErrNilArgument
	}
	if !mi.Kind.Valid() {
		return fmt.Errorf("%w: media kind %d", ErrPrecondition, int(mi.Kind))
	}
	if !a.loading {
		if err := a.writable(); err != nil {
			return err
		}
	}
	a.media[mi.Kind] = append(a.media[mi.Kind], mi)
	a.markChanged()
	return nil
}

// RemoveMedia drops media row id from its kind's table.
func (a *Archive) RemoveMedia(kind MediaKind, id int) bool {
	if a.writable() != nil || !kind.Valid() {
		return false
	}
	rows := a.media[kind]
	for i, mi := range rows {
		if mi.ID == id {
			a.media[kind] = append(rows[:i:i], rows[i+1:]...)
			a.markChanged()
			return true
		}
	}
	return false
}

func (a *Archive) AddExpense(e *Expense) error {
	if e == nil {
		return ErrNilArgument
	}
	if err := a.writable(); err != nil {
		return err
	}
	a.expenses.Add(e)
	a.markChanged()
	return nil
}

func (a *Archive) CaptureTip(userID int, amount int) (*TipEntry, error) {
	if err := a.writable(); err != nil {
		return nil, err
	}
	te := a.tips.Capture(userID, amount)
	a.markChanged()
	return te, nil
}

func (a *Archive) FindCheck(serial int) *Check {
	for _, c := range a.Checks() {
		if c.Serial == serial {
			return c
		}
	}
	return nil
}

func (a *Archive) FindDrawer(serial int) *Drawer {
	for _, d := range a.Drawers() {
		if d.Serial == serial {
			return d
		}
	}
	return nil
}

func (a *Archive) FindMedia(kind MediaKind, id int) *MediaInfo {
	return a.Media().Find(kind, id)
}

func (a *Archive) FindExpense(id int) *Expense {
	return a.Expenses().Find(id)
}

// Contains reports whether t falls inside the archive's period. Archives
// without a start time begin where prev ends.
func (a *Archive) Contains(t time.Time, prevEnd time.Time) bool {
	start := a.StartTime
	if start.IsZero() {
		start = prevEnd
	}
	if t.Before(start) {
		return false
	}
	return a.EndTime.IsZero() || t.Before(a.EndTime)
}

// purge drops everything but the header.
func (a *Archive) purge() {
	a.checks = nil
	a.drawers = nil
	a.media = MediaCatalog{}
	a.tips.Purge()
	a.work.Purge()
	a.expenses.Purge()
	a.exceptions.Purge()
	a.creditExceptions.Purge()
	a.creditRefunds.Purge()
	a.creditVoids.Purge()
	a.ccInit.Purge()
	a.ccSAFDetails.Purge()
	a.ccSettle.Purge()
	a.altSettings = false
}

// Unload frees the archive contents, saving first if they changed. Archives
// already on disk refuse every change, so they never have anything to save.
func (a *Archive) Unload() error {
	if a.sys != nil {
		return nil
	}
	var err error
	if a.changed && a.loaded && !a.corrupt {
		if serr := a.SavePacked(); serr != nil && !errors.Is(serr, ErrWriteRefused) {
			a.reporter.ReportError("archive", "Unload", "autosave", a.path, serr)
			err = serr
		}
	}
	a.purge()
	a.changed = false
	if !a.corrupt {
		a.loaded = false
	}
	return err
}

// ArchiveSummary is the header view used by listings and the catalog.
type ArchiveSummary struct {
	ID               int       `json:"id"`
	Path             string    `json:"path"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	FileVersion      int       `json:"fileVersion"`
	LastSerialNumber int       `json:"lastSerialNumber"`
	Loaded           bool      `json:"loaded"`
	Changed          bool      `json:"changed"`
	Corrupt          bool      `json:"corrupt"`
	Checks           int       `json:"checks"`
	Drawers          int       `json:"drawers"`
	Exceptions       int       `json:"exceptions"`
}

func (a *Archive) Summary() ArchiveSummary {
	s := ArchiveSummary{
		ID:               a.ID,
		Path:             a.path,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		FileVersion:      a.FileVersion,
		LastSerialNumber: a.LastSerialNumber,
		Loaded:           a.loaded,
		Changed:          a.changed,
		Corrupt:          a.corrupt,
		Checks:           len(a.Checks()),
		Drawers:          len(a.Drawers()),
	}
	if db := a.Exceptions(); db != nil {
		s.Exceptions = db.Count()
	}
	return s
}

// drawerScope for drawers held by an archive; changes reach disk on save.

func (a *Archive) scopeDrawers() []*Drawer { return a.drawers }
func (a *Archive) scopeChecks() []*Check   { return a.checks }

func (a *Archive) persistCheck(*Check) error {
	if err := a.writable(); err != nil {
		return err
	}
	a.markChanged()
	return nil
}

func (a *Archive) persistDrawer(*Drawer) error {
	if err := a.writable(); err != nil {
		return err
	}
	a.markChanged()
	return nil
}

func (a *Archive) destroyDrawer(d *Drawer) error { return a.RemoveDrawer(d) }

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }
