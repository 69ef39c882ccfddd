package workflow

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/utils"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{fmt.Errorf("insert: %w", &mysqlDriver.MySQLError{Number: 1062}), true},
		{&mysqlDriver.MySQLError{Number: 1452}, false},
		{fmt.Errorf("plain"), false},
		{nil, false},
	}
	for i, tc := range cases {
		if got := isDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("case %d: isDuplicateKeyErr(%v) = %v", i, tc.err, got)
		}
	}
}

func TestGormArchiveCatalogRequiresSite(t *testing.T) {
	c := NewGormArchiveCatalog(nil)
	if err := c.Record(context.Background(), &models.ArchiveCatalogEntry{ArchiveID: 1}); err != ErrCatalogNoSite {
		t.Fatalf("Record without site err = %v", err)
	}
}

func TestGormArchiveCatalogIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run against the catalog database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := config.ConnectDatabaseWithRetry(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c := NewGormArchiveCatalog(config.GetDB())
	if err := c.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	site := fmt.Sprintf("test-%d", time.Now().UnixNano())
	ctx = utils.SetSiteIdInContext(ctx, site)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	entry := &models.ArchiveCatalogEntry{ArchiveID: 1, Host: "term-1", EndTime: end, Checks: 3}
	if err := c.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	again := &models.ArchiveCatalogEntry{ArchiveID: 1, Host: "term-1", EndTime: end, Checks: 4, ObjectName: "archives/00000001.archive"}
	if err := c.Record(ctx, again); err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}

	got, err := c.Find(ctx, 1)
	if err != nil || got == nil {
		t.Fatalf("Find = %v, %v", got, err)
	}
	if got.Checks != 4 || got.ObjectName != again.ObjectName || got.SiteId != site {
		t.Fatalf("entry = %+v", got)
	}

	other := utils.SetSiteIdInContext(ctx, site+"-other")
	if e, err := c.Find(other, 1); err != nil || e != nil {
		t.Fatalf("another site saw the entry: %v, %v", e, err)
	}
}
