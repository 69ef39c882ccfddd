package models

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ArchiveCatalogEntry indexes one sealed archive so back-office tools can
// find periods without opening archive files.
// Unique constraint: (site_id, archive_id).
type ArchiveCatalogEntry struct {
	ID               int       `gorm:"primary_key" json:"id"`
	SiteId           string    `gorm:"size:64;not null;index:uniq_site_archive,unique" json:"site_id"`
	ArchiveID        int       `gorm:"not null;index:uniq_site_archive,unique" json:"archive_id"`
	Host             string    `gorm:"size:100" json:"host"`
	Path             string    `gorm:"size:255" json:"path"`
	ObjectName       string    `gorm:"size:255" json:"object_name"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `gorm:"index" json:"end_time"`
	FileVersion      int       `json:"file_version"`
	LastSerialNumber int       `json:"last_serial_number"`
	Checks           int       `json:"checks"`
	Drawers          int       `json:"drawers"`
	Exceptions       int       `json:"exceptions"`
	CorrelationId    string    `gorm:"size:64" json:"correlation_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewArchiveCatalogEntry fills an entry from the archive header and counts.
func NewArchiveCatalogEntry(a *Archive, host string) *ArchiveCatalogEntry {
	s := a.Summary()
	return &ArchiveCatalogEntry{
		ArchiveID:        s.ID,
		Host:             host,
		Path:             s.Path,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		FileVersion:      s.FileVersion,
		LastSerialNumber: s.LastSerialNumber,
		Checks:           s.Checks,
		Drawers:          s.Drawers,
		Exceptions:       s.Exceptions,
	}
}

// ArchiveCatalog records sealed archives. Recording the same archive twice
// updates the existing entry.
type ArchiveCatalog interface {
	Record(ctx context.Context, entry *ArchiveCatalogEntry) error
	Find(ctx context.Context, archiveID int) (*ArchiveCatalogEntry, error)
	List(ctx context.Context) ([]*ArchiveCatalogEntry, error)
}

// MemoryArchiveCatalog keeps entries in process, for tools and tests that run
// without the catalog database.
type MemoryArchiveCatalog struct {
	mu      sync.Mutex
	entries map[int]*ArchiveCatalogEntry
	nextID  int
}

func NewMemoryArchiveCatalog() *MemoryArchiveCatalog {
	return &MemoryArchiveCatalog{entries: map[int]*ArchiveCatalogEntry{}}
}

func (c *MemoryArchiveCatalog) Record(_ context.Context, entry *ArchiveCatalogEntry) error {
	if entry == nil {
		return ErrNilArgument
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *entry
	if old, ok := c.entries[entry.ArchiveID]; ok {
		cp.ID = old.ID
		cp.CreatedAt = old.CreatedAt
	} else {
		c.nextID++
		cp.ID = c.nextID
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	c.entries[entry.ArchiveID] = &cp
	return nil
}

func (c *MemoryArchiveCatalog) Find(_ context.Context, archiveID int) (*ArchiveCatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[archiveID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (c *MemoryArchiveCatalog) List(_ context.Context) ([]*ArchiveCatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ArchiveCatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}
