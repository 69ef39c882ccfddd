package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// SealPeriod closes the current period at end and writes it as a new
// archive. Settled checks, balanced drawers, the exception trail, expenses,
// tips and card logs move into the archive. Drawers still open or waiting to
// be balanced stay live together with the checks settled into them.
func (s *System) SealPeriod(end time.Time) (*Archive, error) {
	if end.IsZero() {
		end = s.Now()
	}
	var start time.Time
	if last := s.Archives.Last(); last != nil {
		if !end.After(last.EndTime) {
			return nil, fmt.Errorf("%w: period end %s not after %s", ErrPrecondition, end, last.EndTime)
		}
		start = last.EndTime
	}

	id := s.Archives.NextID()
	path := filepath.Join(s.ArchiveDir, ArchiveFileName(id))
	a := newSealedArchive(id, path, start, end, s.reporter)
	a.Tax = s.Settings.Tax
	a.media = s.Settings.Media.Clone()

	liveDrawers := map[int]bool{}
	var drawers []*Drawer
	for _, d := range s.drawers {
		if d.Status() != DrawerBalanced {
			liveDrawers[d.Serial] = true
			continue
		}
		drawers = append(drawers, d)
	}
	var checks []*Check
	for _, c := range s.checks {
		if c.IsOpen() || feedsDrawer(c, liveDrawers) {
			continue
		}
		checks = append(checks, c)
	}

	for _, c := range checks {
		a.appendCheck(c)
	}
	for _, d := range drawers {
		a.appendDrawer(d)
	}
	// The live trail and expenses are handed over in memory only; the live
	// files are rewritten once the archive is on disk.
	undoExceptions := s.Exceptions.transplant(a.exceptions)
	s.Expenses.MoveTo(&a.expenses)
	a.tips.Entries = append(a.tips.Entries, s.Tips.Entries...)
	a.work.Entries = append(a.work.Entries, s.Work.Entries...)
	a.creditExceptions.Entries = append(a.creditExceptions.Entries, s.CreditExceptions.Entries...)
	a.creditRefunds.Entries = append(a.creditRefunds.Entries, s.CreditRefunds.Entries...)
	a.creditVoids.Entries = append(a.creditVoids.Entries, s.CreditVoids.Entries...)
	a.ccInit.Results = append(a.ccInit.Results, s.CCInit.Results...)
	a.ccSAFDetails.Results = append(a.ccSAFDetails.Results, s.CCSAFDetails.Results...)
	a.ccSettle.Results = append(a.ccSettle.Results, s.CCSettle.Results...)
	a.noteSerial(s.lastSerial)

	// The archive goes to disk before the live side lets go of anything, so
	// a failed write leaves the period open and intact.
	if err := a.SavePacked(); err != nil {
		for _, d := range drawers {
			d.ArchiveID = 0
		}
		undoExceptions()
		a.expenses.MoveTo(&s.Expenses)
		return nil, fmt.Errorf("seal period %d: %w", id, err)
	}

	for _, c := range checks {
		if err := s.RemoveCheck(c); err != nil {
			s.reporter.ReportError("system", "SealPeriod", "remove check", c.Serial, err)
		}
	}
	for _, d := range drawers {
		if err := s.removeLiveDrawer(d); err != nil {
			s.reporter.ReportError("system", "SealPeriod", "remove drawer", d.Serial, err)
		}
	}
	if err := s.Exceptions.persist(); err != nil {
		s.reporter.ReportError("system", "SealPeriod", "exceptions", s.Exceptions.Path(), err)
	}
	s.Tips.Purge()
	s.Work.Purge()
	for _, name := range []string{expensesFile, tipsFile} {
		if err := removeFile(filepath.Join(s.DataDir, name)); err != nil {
			s.reporter.ReportError("system", "SealPeriod", "remove", name, err)
		}
	}
	s.CreditExceptions.Purge()
	s.CreditRefunds.Purge()
	s.CreditVoids.Purge()
	s.CCInit.Purge()
	s.CCSAFDetails.Purge()
	s.CCSettle.Purge()

	if err := s.Archives.Add(a); err != nil {
		return a, err
	}
	return a, nil
}

func feedsDrawer(c *Check, serials map[int]bool) bool {
	for _, sc := range c.SubChecks {
		if serials[sc.DrawerID] {
			return true
		}
	}
	return false
}
