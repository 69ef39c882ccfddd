package models

import (
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

const (
	// ArchiveVersion is the layout SavePacked writes.
	ArchiveVersion = 14
	// MinArchiveVersion is the oldest layout LoadPacked still reads.
	MinArchiveVersion = 2

	// MaxArchiveRecords bounds every record list read from an archive.
	MaxArchiveRecords = 10000
)

// archiveHeader versions:
//
//	 6: start time
//	 8: expenses
//	10: media tables (earlier archives use <path>.media)
//	11: tax settings (earlier archives use <path>.settings)
//	12: VAT rate
//	13: credit card logs and results
//	14: advertise fund
type archiveHeader struct {
	version   int
	id        int
	startTime time.Time
	endTime   time.Time
}

type archiveSection struct {
	name     string
	since    int
	read     func(a *Archive, r *datafile.Reader) error
	write    func(a *Archive, w *datafile.Writer)
	fallback func(a *Archive, settings *Settings)
}

// archiveSections lists the body in file order.
var archiveSections = []archiveSection{
	{name: "drawers", since: 2, read: readDrawersSection, write: writeDrawersSection},
	{name: "checks", since: 2, read: readChecksSection, write: writeChecksSection},
	{name: "tips", since: 2, read: readTipsSection, write: writeTipsSection},
	{name: "exceptions", since: 6, read: readExceptionsSection, write: writeExceptionsSection},
	{name: "expenses", since: 8, read: readExpensesSection, write: writeExpensesSection},
	{name: "media", since: 10, read: readMediaSection, write: writeMediaSection, fallback: fallbackAltMedia},
	{name: "settings", since: 11, read: readSettingsSection, write: writeSettingsSection, fallback: fallbackAltSettings},
	{name: "vat", since: 12, read: readVATSection, write: writeVATSection, fallback: fallbackVAT},
	{name: "credit", since: 13, read: readCreditSection, write: writeCreditSection},
	{name: "advertise", since: 14, read: readAdvertiseSection, write: writeAdvertiseSection, fallback: fallbackAdvertise},
}

func checkRecordVersion(r *datafile.Reader, what string, version int, current int) error {
	if err := r.Err(); err != nil {
		return err
	}
	if version < 1 || version > current {
		return fmt.Errorf("%s record version %d outside [1, %d]", what, version, current)
	}
	return nil
}

func (a *Archive) openHeader() (*os.File, *datafile.Reader, *archiveHeader, error) {
	if a.path == "" {
		return nil, nil, nil, ErrNoPath
	}
	f, err := os.Open(a.path)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := datafile.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("archive %s header: %w", a.path, err)
	}
	h := &archiveHeader{version: r.Version()}
	if h.version < MinArchiveVersion || h.version > ArchiveVersion {
		f.Close()
		return nil, nil, nil, &FormatVersionError{Path: a.path, Version: h.version}
	}
	h.id = r.Int()
	if h.version >= 6 {
		h.startTime = r.Time()
	}
	h.endTime = r.Time()
	if err := r.Err(); err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("archive %s header: %w", a.path, err)
	}
	return f, r, h, nil
}

func (a *Archive) applyHeader(h *archiveHeader) {
	a.FileVersion = h.version
	a.ID = h.id
	a.StartTime = h.startTime
	a.EndTime = h.endTime
}

// Open reads only the header and returns the file's format version. A
// version outside [MinArchiveVersion, ArchiveVersion] fails with a
// FormatVersionError and leaves the archive untouched.
func (a *Archive) Open() (int, error) {
	f, _, h, err := a.openHeader()
	if err != nil {
		a.reporter.ReportError("archive", "Open", "header", a.path, err)
		return 0, err
	}
	defer f.Close()
	a.applyHeader(h)
	return h.version, nil
}

// LoadPacked reads the whole archive. Sections the file predates take their
// values from the alternate files next to it or from settings. Any read
// failure leaves the archive empty, corrupt and refusing writes.
func (a *Archive) LoadPacked(settings *Settings, path ...string) error {
	if a.sys != nil {
		return nil
	}
	if a.corrupt {
		return &CorruptError{ArchiveID: a.ID, Path: a.path, Section: "previous load", Err: ErrArchiveCorrupt}
	}
	if len(path) > 0 && path[0] != "" {
		a.path = path[0]
	}
	if a.loaded {
		if err := a.Unload(); err != nil {
			return err
		}
	}

	f, r, h, err := a.openHeader()
	if err != nil {
		a.reporter.ReportError("archive", "LoadPacked", "header", a.path, err)
		return err
	}
	defer f.Close()
	a.applyHeader(h)

	a.loading = true
	defer func() { a.loading = false }()

	for _, sec := range archiveSections {
		if h.version < sec.since {
			if sec.fallback != nil {
				sec.fallback(a, settings)
			}
			continue
		}
		if err := sec.read(a, r); err != nil {
			return a.markCorrupt(sec.name, err)
		}
	}

	a.loaded = true
	a.changed = false
	a.fromDisk = true
	return nil
}

func (a *Archive) markCorrupt(section string, err error) error {
	a.purge()
	a.corrupt = true
	a.loaded = true
	a.changed = false
	cerr := &CorruptError{ArchiveID: a.ID, Path: a.path, Section: section, Err: err}
	a.reporter.ReportError("archive", "LoadPacked", section, a.path, cerr)
	return cerr
}

// SavePacked writes the archive at ArchiveVersion. It refuses archives that
// are not loaded, corrupt, or already on disk.
func (a *Archive) SavePacked() error {
	switch {
	case a.sys != nil:
		return fmt.Errorf("%w: current period", ErrWriteRefused)
	case !a.loaded:
		return fmt.Errorf("%w: archive %d not loaded", ErrWriteRefused, a.ID)
	case a.corrupt:
		return fmt.Errorf("%w: archive %d corrupt", ErrWriteRefused, a.ID)
	case a.fromDisk:
		return fmt.Errorf("%w: archive %d already on disk", ErrWriteRefused, a.ID)
	case a.path == "":
		return ErrNoPath
	}

	err := datafile.WriteFileAtomic(a.path, ArchiveVersion, func(w *datafile.Writer) error {
		w.Int(a.ID)
		w.Time(a.StartTime)
		w.Time(a.EndTime)
		for _, sec := range archiveSections {
			sec.write(a, w)
		}
		return w.Err()
	})
	if err != nil {
		a.reporter.ReportError("archive", "SavePacked", "write", a.path, err)
		return err
	}
	a.FileVersion = ArchiveVersion
	a.changed = false
	a.fromDisk = true
	return nil
}

func writeDrawersSection(a *Archive, w *datafile.Writer) {
	w.Int(DrawerVersion)
	w.Int(len(a.drawers))
	for _, d := range a.drawers {
		d.write(w)
	}
}

func readDrawersSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "drawer", version, DrawerVersion); err != nil {
		return err
	}
	n, err := r.Count(MaxArchiveRecords)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		d, err := readDrawer(r, version)
		if err != nil {
			return fmt.Errorf("drawer %d: %w", i, err)
		}
		a.appendDrawer(d)
	}
	return nil
}

func writeChecksSection(a *Archive, w *datafile.Writer) {
	w.Int(CheckVersion)
	w.Int(len(a.checks))
	for _, c := range a.checks {
		c.write(w)
	}
}

func readChecksSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "check", version, CheckVersion); err != nil {
		return err
	}
	n, err := r.Count(MaxArchiveRecords)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		c, err := readCheck(r, version)
		if err != nil {
			return fmt.Errorf("check %d: %w", i, err)
		}
		a.appendCheck(c)
	}
	return nil
}

func writeTipsSection(a *Archive, w *datafile.Writer) {
	w.Int(TipVersion)
	a.tips.write(w)
}

func readTipsSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "tip", version, TipVersion); err != nil {
		return err
	}
	return a.tips.read(r, version, MaxArchiveRecords)
}

func writeExceptionsSection(a *Archive, w *datafile.Writer) {
	w.Int(ExceptionVersion)
	a.exceptions.writeBody(w)
}

func readExceptionsSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "exception", version, ExceptionVersion); err != nil {
		return err
	}
	return a.exceptions.readBody(r, version)
}

func writeExpensesSection(a *Archive, w *datafile.Writer) {
	w.Int(ExpenseVersion)
	a.expenses.write(w)
}

func readExpensesSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "expense", version, ExpenseVersion); err != nil {
		return err
	}
	return a.expenses.read(r, version, MaxArchiveRecords)
}

func writeMediaSection(a *Archive, w *datafile.Writer) {
	w.Int(MediaVersion)
	a.media.write(w)
}

func readMediaSection(a *Archive, r *datafile.Reader) error {
	version := r.Int()
	if err := checkRecordVersion(r, "media", version, MediaVersion); err != nil {
		return err
	}
	return readMediaCatalog(r, version, func(mi *MediaInfo) {
		a.AddMedia(mi)
	})
}

// fallbackAltMedia fills the media tables of an archive older than the
// media section. The live catalog is captured into <path>.media the first
// time so later reports see the same rows.
func fallbackAltMedia(a *Archive, settings *Settings) {
	alt := a.path + ".media"
	m, err := readAltMedia(alt)
	if err == nil {
		for _, kind := range MediaKinds() {
			for _, mi := range m[kind] {
				a.AddMedia(mi)
			}
		}
		return
	}
	if !isNotExist(err) {
		a.reporter.ReportError("archive", "LoadPacked", "alt media", alt, err)
	}
	// An unconfigured catalog is never frozen into the old period.
	if settings == nil || settings.Media.Empty() {
		return
	}
	snapshot := settings.Media.Clone()
	for _, kind := range MediaKinds() {
		for _, mi := range snapshot[kind] {
			a.AddMedia(mi)
		}
	}
	if isNotExist(err) {
		if werr := writeAltMedia(alt, &snapshot); werr != nil {
			a.reporter.ReportError("archive", "LoadPacked", "write alt media", alt, werr)
		}
	}
}

func writeSettingsSection(a *Archive, w *datafile.Writer) {
	a.Tax.writeScalars(w)
}

func readSettingsSection(a *Archive, r *datafile.Reader) error {
	return a.Tax.readScalars(r)
}

func fallbackAltSettings(a *Archive, settings *Settings) {
	alt := a.path + ".settings"
	t, err := readAltSettings(alt)
	if err == nil {
		a.Tax = t
		a.altSettings = true
		return
	}
	if !isNotExist(err) {
		a.reporter.ReportError("archive", "LoadPacked", "alt settings", alt, err)
	}
	if settings == nil || settings.Tax.Unset() {
		return
	}
	a.Tax = settings.Tax
	if isNotExist(err) {
		if werr := writeAltSettings(alt, &a.Tax); werr != nil {
			a.reporter.ReportError("archive", "LoadPacked", "write alt settings", alt, werr)
		} else {
			a.altSettings = true
		}
	}
}

func writeVATSection(a *Archive, w *datafile.Writer) { w.Float(a.Tax.TaxVAT) }

func readVATSection(a *Archive, r *datafile.Reader) error {
	a.Tax.TaxVAT = r.Float()
	return r.Err()
}

func fallbackVAT(a *Archive, settings *Settings) {
	if a.altSettings || settings == nil {
		return
	}
	a.Tax.TaxVAT = settings.Tax.TaxVAT
}

func writeCreditSection(a *Archive, w *datafile.Writer) {
	for _, db := range []*CreditDB{&a.creditExceptions, &a.creditRefunds, &a.creditVoids} {
		w.Int(CreditDBVersion)
		db.write(w)
	}
	a.ccInit.write(w)
	a.ccSAFDetails.write(w)
	a.ccSettle.write(w)
}

func readCreditSection(a *Archive, r *datafile.Reader) error {
	for _, db := range []*CreditDB{&a.creditExceptions, &a.creditRefunds, &a.creditVoids} {
		version := r.Int()
		if err := checkRecordVersion(r, "credit", version, CreditDBVersion); err != nil {
			return err
		}
		if err := db.read(r, MaxArchiveRecords); err != nil {
			return err
		}
	}
	for _, cr := range []*CreditResults{&a.ccInit, &a.ccSAFDetails, &a.ccSettle} {
		if err := cr.read(r, MaxArchiveRecords); err != nil {
			return err
		}
	}
	return nil
}

func writeAdvertiseSection(a *Archive, w *datafile.Writer) { w.Float(a.Tax.AdvertiseFund) }

func readAdvertiseSection(a *Archive, r *datafile.Reader) error {
	a.Tax.AdvertiseFund = r.Float()
	return r.Err()
}

func fallbackAdvertise(a *Archive, settings *Settings) {
	if a.altSettings || settings == nil {
		return
	}
	a.Tax.AdvertiseFund = settings.Tax.AdvertiseFund
}
