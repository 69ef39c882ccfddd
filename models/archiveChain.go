package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ArchiveExt is the file extension of archive files in the archive directory.
const ArchiveExt = ".archive"

// ArchiveFileName is the file name of the archive with the given id.
func ArchiveFileName(id int) string { return fmt.Sprintf("%08d%s", id, ArchiveExt) }

// ArchiveChain is the time-ordered list of archives. At most maxLoaded of
// them keep their contents in memory; the least recently used one is
// unloaded when another is loaded.
type ArchiveChain struct {
	archives []*Archive
	loaded   *lru.Cache[int, *Archive]
	settings *Settings
	reporter ErrorReporter
}

func NewArchiveChain(settings *Settings, reporter ErrorReporter, maxLoaded int) *ArchiveChain {
	c := &ArchiveChain{settings: settings, reporter: reporterOrDiscard(reporter)}
	if maxLoaded < 1 {
		maxLoaded = 1
	}
	cache, err := lru.NewWithEvict[int, *Archive](maxLoaded, func(_ int, a *Archive) {
		if err := a.Unload(); err != nil {
			c.reporter.ReportError("archiveChain", "evict", "unload", a.path, err)
		}
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	c.loaded = cache
	return c
}

func (c *ArchiveChain) Len() int { return len(c.archives) }

// All returns the archives oldest first.
func (c *ArchiveChain) All() []*Archive {
	out := make([]*Archive, len(c.archives))
	copy(out, c.archives)
	return out
}

// Add inserts a by end time. An archive with an id already in the chain is
// rejected.
func (c *ArchiveChain) Add(a *Archive) error {
	if a == nil {
		return ErrNilArgument
	}
	if c.FindByID(a.ID) != nil {
		return fmt.Errorf("%w: archive id %d", ErrDuplicateSerial, a.ID)
	}
	i := sort.Search(len(c.archives), func(i int) bool {
		return c.archives[i].EndTime.After(a.EndTime)
	})
	c.archives = append(c.archives, nil)
	copy(c.archives[i+1:], c.archives[i:])
	c.archives[i] = a
	if a.IsLoaded() && !a.IsCorrupt() {
		c.loaded.Add(a.ID, a)
	}
	return nil
}

func (c *ArchiveChain) Remove(a *Archive) bool {
	for i, x := range c.archives {
		if x == a {
			c.archives = append(c.archives[:i], c.archives[i+1:]...)
			c.loaded.Remove(a.ID)
			return true
		}
	}
	return false
}

func (c *ArchiveChain) FindByID(id int) *Archive {
	for _, a := range c.archives {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Find returns the archive whose period holds t, nil when t falls in the
// current period or before the first archive.
func (c *ArchiveChain) Find(t time.Time) *Archive {
	var prevEnd time.Time
	for _, a := range c.archives {
		if a.Contains(t, prevEnd) {
			return a
		}
		prevEnd = a.EndTime
	}
	return nil
}

func (c *ArchiveChain) Last() *Archive {
	if len(c.archives) == 0 {
		return nil
	}
	return c.archives[len(c.archives)-1]
}

// NextID is one past the highest archive id in the chain.
func (c *ArchiveChain) NextID() int {
	next := 1
	for _, a := range c.archives {
		if a.ID >= next {
			next = a.ID + 1
		}
	}
	return next
}

// Load makes sure a's contents are in memory and marks it recently used.
func (c *ArchiveChain) Load(a *Archive) error {
	if a.IsCorrupt() {
		return &CorruptError{ArchiveID: a.ID, Path: a.path, Section: "previous load", Err: ErrArchiveCorrupt}
	}
	if !a.IsLoaded() {
		if err := a.LoadPacked(c.settings); err != nil {
			return err
		}
	}
	c.loaded.Add(a.ID, a)
	return nil
}

// LoadDir reads the header of every archive file in dir. Files that cannot
// be opened are reported and skipped.
func (c *ArchiveChain) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	added := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ArchiveExt) {
			continue
		}
		a := NewArchive(filepath.Join(dir, e.Name()), c.reporter)
		if _, err := a.Open(); err != nil {
			continue
		}
		if err := c.Add(a); err != nil {
			c.reporter.ReportError("archiveChain", "LoadDir", "add", a.path, err)
			continue
		}
		added++
	}
	return added, nil
}

// Close unloads every archive, saving the ones that changed.
func (c *ArchiveChain) Close() error {
	var errs []error
	for _, a := range c.archives {
		if err := a.Unload(); err != nil {
			errs = append(errs, err)
		}
	}
	c.loaded.Purge()
	return errors.Join(errs...)
}

// Scan iterates the archives overlapping [from, to). Zero bounds are open.
func (c *ArchiveChain) Scan(from, to time.Time) *ArchiveScanner {
	return &ArchiveScanner{chain: c, from: from, to: to}
}

// ArchiveScanner walks the chain one archive at a time, loading each as it
// goes. The cursor is an archive id, so a scan can resume with SeekAfter
// after the chain changed.
type ArchiveScanner struct {
	chain  *ArchiveChain
	from   time.Time
	to     time.Time
	lastID int
	end    time.Time
	done   bool
}

// SeekAfter positions the scanner after the archive with the given id.
func (s *ArchiveScanner) SeekAfter(id int) *ArchiveScanner {
	s.lastID = id
	if a := s.chain.FindByID(id); a != nil {
		s.end = a.EndTime
	}
	s.done = false
	return s
}

func (s *ArchiveScanner) Cursor() int { return s.lastID }

func (s *ArchiveScanner) overlaps(a *Archive, prevEnd time.Time) bool {
	start := a.StartTime
	if start.IsZero() {
		start = prevEnd
	}
	if !s.to.IsZero() && !start.Before(s.to) {
		return false
	}
	return s.from.IsZero() || a.EndTime.After(s.from)
}

// Next returns the next overlapping archive, loaded, or nil at the end. A
// load failure is returned with the archive; the scan can continue past it.
func (s *ArchiveScanner) Next() (*Archive, error) {
	if s.done {
		return nil, nil
	}
	archives := s.chain.archives
	i := 0
	if s.lastID != 0 {
		i = len(archives)
		for j, a := range archives {
			if a.ID == s.lastID {
				i = j + 1
				break
			}
		}
		if i == len(archives) {
			i = sort.Search(len(archives), func(j int) bool {
				return archives[j].EndTime.After(s.end)
			})
		}
	}

	for ; i < len(archives); i++ {
		var prevEnd time.Time
		if i > 0 {
			prevEnd = archives[i-1].EndTime
		}
		a := archives[i]
		if !s.overlaps(a, prevEnd) {
			if !s.to.IsZero() && !a.EndTime.Before(s.to) {
				break
			}
			continue
		}
		s.lastID = a.ID
		s.end = a.EndTime
		return a, s.chain.Load(a)
	}
	s.done = true
	return nil, nil
}
