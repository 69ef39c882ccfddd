package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

const (
	drawersDir     = "drawers"
	checksDir      = "checks"
	drawerPrefix   = "drawer_"
	checkPrefix    = "check_"
	exceptionsFile = "exceptions.dat"
	expensesFile   = "expenses.dat"
	tipsFile       = "tips.dat"
)

// System holds the live ledger of the current period together with the
// archive chain. Every ledger operation receives it explicitly; nothing is
// kept in package state.
//
// A System is not safe for concurrent use. Callers serialize access, the
// HTTP shell with a single mutex.
type System struct {
	DataDir    string
	ArchiveDir string
	Host       string

	Settings *Settings
	Archives *ArchiveChain

	Exceptions *ExceptionDB
	Expenses   ExpenseDB
	Tips       TipDB
	Work       WorkDB

	CreditExceptions CreditDB
	CreditRefunds    CreditDB
	CreditVoids      CreditDB
	CCInit           CreditResults
	CCSAFDetails     CreditResults
	CCSettle         CreditResults

	drawers    []*Drawer
	checks     []*Check
	lastSerial int
	reporter   ErrorReporter
	now        func() time.Time
	maxLoaded  int
	readOnly   bool
}

type SystemOption func(*System)

func WithReporter(r ErrorReporter) SystemOption {
	return func(s *System) { s.reporter = r }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) SystemOption {
	return func(s *System) { s.now = now }
}

func WithHost(host string) SystemOption {
	return func(s *System) { s.Host = host }
}

func WithArchiveDir(dir string) SystemOption {
	return func(s *System) { s.ArchiveDir = dir }
}

func WithMaxLoadedArchives(n int) SystemOption {
	return func(s *System) { s.maxLoaded = n }
}

// WithReadOnlyArchives keeps the live settings away from the archive chain,
// so loading an old archive never captures alternate settings files.
func WithReadOnlyArchives() SystemOption {
	return func(s *System) { s.readOnly = true }
}

func NewSystem(dataDir string, settings *Settings, opts ...SystemOption) *System {
	if settings == nil {
		settings = NewSettings()
	}
	s := &System{
		DataDir:    dataDir,
		ArchiveDir: filepath.Join(dataDir, "archive"),
		Settings:   settings,
		maxLoaded:  8,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reporter = reporterOrDiscard(s.reporter)
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	chainSettings := settings
	if s.readOnly {
		chainSettings = nil
	}
	s.Archives = NewArchiveChain(chainSettings, s.reporter, s.maxLoaded)
	s.Exceptions = NewExceptionDB(filepath.Join(dataDir, exceptionsFile), s.now)
	return s
}

func (s *System) Now() time.Time           { return s.now() }
func (s *System) Reporter() ErrorReporter  { return s.reporter }
func (s *System) LastSerial() int          { return s.lastSerial }
func (s *System) Drawers() []*Drawer       { return s.drawers }
func (s *System) Checks() []*Check         { return s.checks }
func (s *System) CurrentArchive() *Archive { return NewCurrentArchive(s) }

// NextSerial hands out the next number of the serial space shared by checks
// and drawers.
func (s *System) NextSerial() int {
	s.lastSerial++
	return s.lastSerial
}

func (s *System) noteSerial(serial int) {
	if serial > s.lastSerial {
		s.lastSerial = serial
	}
}

// ArchiveFor returns the archive whose period holds t, or the current
// period placeholder.
func (s *System) ArchiveFor(t time.Time) *Archive {
	if a := s.Archives.Find(t); a != nil {
		return a
	}
	return s.CurrentArchive()
}

// LoadLive reads the live settings, the live ledger and the archive headers
// from disk. Unreadable drawer or check files are reported and skipped.
func (s *System) LoadLive() error {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return err
	}
	if err := s.loadSettings(); err != nil {
		s.reporter.ReportError("system", "LoadLive", "settings", s.settingsPath(), err)
	}
	if _, err := s.Archives.LoadDir(s.ArchiveDir); err != nil {
		return fmt.Errorf("load archives: %w", err)
	}
	for _, a := range s.Archives.All() {
		s.noteSerial(a.LastSerialNumber)
	}

	s.drawers = nil
	err := s.loadDir(drawersDir, drawerPrefix, func(path string) error {
		return datafile.ReadFile(path, func(r *datafile.Reader) error {
			if err := checkRecordVersion(r, "drawer", r.Version(), DrawerVersion); err != nil {
				return err
			}
			d, err := readDrawer(r, r.Version())
			if err != nil {
				return err
			}
			s.drawers = append(s.drawers, d)
			s.noteSerial(d.Serial)
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.checks = nil
	err = s.loadDir(checksDir, checkPrefix, func(path string) error {
		return datafile.ReadFile(path, func(r *datafile.Reader) error {
			if err := checkRecordVersion(r, "check", r.Version(), CheckVersion); err != nil {
				return err
			}
			c, err := readCheck(r, r.Version())
			if err != nil {
				return err
			}
			s.checks = append(s.checks, c)
			s.noteSerial(c.Serial)
			return nil
		})
	})
	if err != nil {
		return err
	}
	sort.Slice(s.drawers, func(i, j int) bool { return s.drawers[i].Serial < s.drawers[j].Serial })
	sort.Slice(s.checks, func(i, j int) bool { return s.checks[i].Serial < s.checks[j].Serial })

	if err := s.Exceptions.Load(); err != nil {
		s.reporter.ReportError("system", "LoadLive", "exceptions", s.Exceptions.Path(), err)
	}
	s.Expenses.Purge()
	if err := s.readLiveFile(expensesFile, ExpenseVersion, func(r *datafile.Reader) error {
		return s.Expenses.read(r, r.Version(), MaxArchiveRecords)
	}); err != nil {
		s.reporter.ReportError("system", "LoadLive", "expenses", expensesFile, err)
	}
	s.Tips.Purge()
	if err := s.readLiveFile(tipsFile, TipVersion, func(r *datafile.Reader) error {
		return s.Tips.read(r, r.Version(), MaxArchiveRecords)
	}); err != nil {
		s.reporter.ReportError("system", "LoadLive", "tips", tipsFile, err)
	}
	return nil
}

func (s *System) settingsPath() string { return filepath.Join(s.DataDir, SettingsFile) }

// loadSettings replaces the contents of s.Settings in place; the archive
// chain shares the same pointer.
func (s *System) loadSettings() error {
	loaded, err := LoadSettings(s.settingsPath())
	if isNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	*s.Settings = *loaded
	return nil
}

// UpdateSettings writes next as the live settings and then adopts it. Later
// seals freeze the new values; archives already on disk keep theirs.
func (s *System) UpdateSettings(next *Settings) error {
	if next == nil {
		return ErrNilArgument
	}
	if err := next.Save(s.settingsPath()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	*s.Settings = *next
	return nil
}

func (s *System) loadDir(sub, prefix string, load func(path string) error) error {
	dir := filepath.Join(s.DataDir, sub)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix)); err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := load(path); err != nil {
			s.reporter.ReportError("system", "LoadLive", sub, path, err)
		}
	}
	return nil
}

func (s *System) readLiveFile(name string, current int, fn func(r *datafile.Reader) error) error {
	err := datafile.ReadFile(filepath.Join(s.DataDir, name), func(r *datafile.Reader) error {
		if err := checkRecordVersion(r, name, r.Version(), current); err != nil {
			return err
		}
		return fn(r)
	})
	if isNotExist(err) {
		return nil
	}
	return err
}

func (s *System) drawerPath(serial int) string {
	return filepath.Join(s.DataDir, drawersDir, drawerPrefix+strconv.Itoa(serial))
}

func (s *System) checkPath(serial int) string {
	return filepath.Join(s.DataDir, checksDir, checkPrefix+strconv.Itoa(serial))
}

// FindDrawer looks up a live drawer, then the loaded archives.
func (s *System) FindDrawer(serial int) *Drawer {
	for _, d := range s.drawers {
		if d.Serial == serial {
			return d
		}
	}
	for _, a := range s.Archives.All() {
		if !a.IsLoaded() {
			continue
		}
		if d := a.FindDrawer(serial); d != nil {
			return d
		}
	}
	return nil
}

func (s *System) FindCheck(serial int) *Check {
	for _, c := range s.checks {
		if c.Serial == serial {
			return c
		}
	}
	return nil
}

// NewDrawer opens a drawer at a terminal position. Number > 0 is a physical
// till, Number < 0 a server bank.
func (s *System) NewDrawer(position int, host string, ownerID int, number int) (*Drawer, error) {
	d := &Drawer{
		Serial:    s.NextSerial(),
		OwnerID:   ownerID,
		StartTime: s.Now(),
		Position:  position,
		Number:    number,
		Host:      host,
	}
	if err := s.SaveDrawer(d); err != nil {
		return nil, err
	}
	s.drawers = append(s.drawers, d)
	return d, nil
}

// AddDrawer takes an existing live drawer into the system.
func (s *System) AddDrawer(d *Drawer) error {
	if d == nil {
		return ErrNilArgument
	}
	if s.FindDrawer(d.Serial) != nil || s.FindCheck(d.Serial) != nil {
		return ErrDuplicateSerial
	}
	d.ArchiveID = 0
	if err := s.SaveDrawer(d); err != nil {
		return err
	}
	s.drawers = append(s.drawers, d)
	s.noteSerial(d.Serial)
	return nil
}

// DestroyDrawer removes a drawer from its container for good.
func (s *System) DestroyDrawer(d *Drawer) error {
	scope, err := s.scopeOf(d)
	if err != nil {
		return err
	}
	return scope.destroyDrawer(d)
}

// SaveDrawer persists a drawer wherever it lives.
func (s *System) SaveDrawer(d *Drawer) error {
	scope, err := s.scopeOf(d)
	if err != nil {
		return err
	}
	return scope.persistDrawer(d)
}

func (s *System) writeDrawer(d *Drawer) error {
	return datafile.WriteFileAtomic(s.drawerPath(d.Serial), DrawerVersion, func(w *datafile.Writer) error {
		d.write(w)
		return w.Err()
	})
}

// AddCheck takes a check into the live ledger.
func (s *System) AddCheck(c *Check) error {
	if c == nil {
		return ErrNilArgument
	}
	if c.Serial <= 0 {
		c.Serial = s.NextSerial()
	} else if s.FindCheck(c.Serial) != nil || s.FindDrawer(c.Serial) != nil {
		return ErrDuplicateSerial
	}
	if err := s.SaveCheck(c); err != nil {
		return err
	}
	s.checks = append(s.checks, c)
	s.noteSerial(c.Serial)
	return nil
}

func (s *System) SaveCheck(c *Check) error {
	return datafile.WriteFileAtomic(s.checkPath(c.Serial), CheckVersion, func(w *datafile.Writer) error {
		c.write(w)
		return w.Err()
	})
}

func (s *System) RemoveCheck(c *Check) error {
	if c == nil {
		return ErrNilArgument
	}
	for i, x := range s.checks {
		if x == c {
			if err := removeFile(s.checkPath(c.Serial)); err != nil {
				return err
			}
			s.checks = append(s.checks[:i], s.checks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: check %d not live", ErrPrecondition, c.Serial)
}

func (s *System) removeLiveDrawer(d *Drawer) error {
	for i, x := range s.drawers {
		if x == d {
			if err := removeFile(s.drawerPath(d.Serial)); err != nil {
				return err
			}
			s.drawers = append(s.drawers[:i], s.drawers[i+1:]...)
			return nil
		}
	}
	return ErrDrawerNotFound
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// AddExpense pays an expense out of a live drawer.
func (s *System) AddExpense(e *Expense) error {
	if e == nil {
		return ErrNilArgument
	}
	d := s.FindDrawer(e.DrawerID)
	if d == nil {
		return ErrDrawerNotFound
	}
	if d.IsArchived() {
		return ErrDrawerArchived
	}
	if d.Status() != DrawerOpen {
		return ErrDrawerNotOpen
	}
	if e.EntryTime.IsZero() {
		e.EntryTime = s.Now()
	}
	s.Expenses.Add(e)
	d.ApplyExpense(e.Amount)
	if err := s.saveLiveFile(expensesFile, ExpenseVersion, s.Expenses.write); err != nil {
		return err
	}
	return s.SaveDrawer(d)
}

// CaptureTip adds to a user's tips for the current period.
func (s *System) CaptureTip(userID int, amount int) (*TipEntry, error) {
	te := s.Tips.Capture(userID, amount)
	return te, s.saveLiveFile(tipsFile, TipVersion, s.Tips.write)
}

func (s *System) saveLiveFile(name string, version int, write func(w *datafile.Writer)) error {
	return datafile.WriteFileAtomic(filepath.Join(s.DataDir, name), version, func(w *datafile.Writer) error {
		write(w)
		return w.Err()
	})
}

// scopeOf returns the container of d for a change: the system for live
// drawers, the archive for archived ones. The archive is loaded and has to
// accept writes, so a refused change leaves the drawer untouched.
func (s *System) scopeOf(d *Drawer) (drawerScope, error) {
	if d == nil {
		return nil, ErrNilArgument
	}
	if !d.IsArchived() {
		return s, nil
	}
	a := s.Archives.FindByID(d.ArchiveID)
	if a == nil {
		return nil, fmt.Errorf("%w: archive %d", ErrDrawerNotFound, d.ArchiveID)
	}
	if err := s.Archives.Load(a); err != nil {
		return nil, err
	}
	if err := a.writable(); err != nil {
		return nil, err
	}
	return a, nil
}

// drawerScope for live drawers: every change is written to its own file.

func (s *System) scopeDrawers() []*Drawer { return s.drawers }
func (s *System) scopeChecks() []*Check   { return s.checks }

func (s *System) persistCheck(c *Check) error   { return s.SaveCheck(c) }
func (s *System) persistDrawer(d *Drawer) error { return s.writeDrawer(d) }
func (s *System) destroyDrawer(d *Drawer) error { return s.removeLiveDrawer(d) }

// Close unloads the archive chain, saving changed archives.
func (s *System) Close() error { return s.Archives.Close() }
