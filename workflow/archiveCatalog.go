package workflow

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/utils"
	"gorm.io/gorm"
)

var ErrCatalogNoSite = errors.New("archive catalog: site id missing from context")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GormArchiveCatalog stores catalog entries in the catalog database. Rows are
// scoped to the site id carried by the context.
type GormArchiveCatalog struct {
	db *gorm.DB
}

func NewGormArchiveCatalog(db *gorm.DB) *GormArchiveCatalog {
	return &GormArchiveCatalog{db: db}
}

func (c *GormArchiveCatalog) Migrate() error {
	return c.db.AutoMigrate(&models.ArchiveCatalogEntry{})
}

// Record inserts the entry. When the archive is already catalogued for the
// site the existing row is updated in place.
func (c *GormArchiveCatalog) Record(ctx context.Context, entry *models.ArchiveCatalogEntry) error {
	if entry == nil {
		return models.ErrNilArgument
	}
	siteId, ok := utils.GetSiteIdFromContext(ctx)
	if !ok || siteId == "" {
		return ErrCatalogNoSite
	}
	entry.SiteId = siteId

	db := c.db.WithContext(ctx)
	if err := db.Create(entry).Error; err == nil {
		return nil
	} else if !isDuplicateKeyErr(err) {
		return err
	}

	return db.Model(&models.ArchiveCatalogEntry{}).
		Where("site_id = ? AND archive_id = ?", siteId, entry.ArchiveID).
		Updates(map[string]interface{}{
			"host":               entry.Host,
			"path":               entry.Path,
			"object_name":        entry.ObjectName,
			"start_time":         entry.StartTime,
			"end_time":           entry.EndTime,
			"file_version":       entry.FileVersion,
			"last_serial_number": entry.LastSerialNumber,
			"checks":             entry.Checks,
			"drawers":            entry.Drawers,
			"exceptions":         entry.Exceptions,
			"correlation_id":     entry.CorrelationId,
		}).Error
}

func (c *GormArchiveCatalog) Find(ctx context.Context, archiveID int) (*models.ArchiveCatalogEntry, error) {
	var entry models.ArchiveCatalogEntry
	err := c.db.WithContext(ctx).Where("archive_id = ?", archiveID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *GormArchiveCatalog) List(ctx context.Context) ([]*models.ArchiveCatalogEntry, error) {
	var entries []*models.ArchiveCatalogEntry
	if err := c.db.WithContext(ctx).Order("end_time").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
