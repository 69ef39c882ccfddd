package reports_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/models/reports"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func reportDrawers() []*models.Drawer {
	pulled := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	return []*models.Drawer{
		{
			Serial: 12, Number: 2, Host: "term-2",
			Balances: []*models.DrawerBalance{
				{TenderType: models.TenderCash, TenderID: models.NoTenderID, Amount: 500, Count: 1},
			},
		},
		{
			Serial: 10, Number: 1, Host: "term-1", PullTime: pulled,
			Balances: []*models.DrawerBalance{
				{TenderType: models.TenderCreditCard, TenderID: 3, Amount: 1500, Count: 1, Entered: 1500},
				{TenderType: models.TenderCash, TenderID: models.NoTenderID, Amount: 1250, Count: 2, Entered: 1200},
				{TenderType: models.TenderCoupon, TenderID: 1},
			},
		},
	}
}

func TestBuildDrawerReport(t *testing.T) {
	rows := reports.BuildDrawerReport(reportDrawers())
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (empty balances dropped)", len(rows))
	}

	want := []struct {
		serial int
		tender string
		amount string
		diff   string
	}{
		{10, "Cash", "12.50", "-0.50"},
		{10, "Credit Card", "15.00", "0.00"},
		{12, "Cash", "5.00", "-5.00"},
	}
	for i, w := range want {
		r := rows[i]
		if r.DrawerSerial != w.serial || r.Tender != w.tender {
			t.Fatalf("row %d = %d/%s, want %d/%s", i, r.DrawerSerial, r.Tender, w.serial, w.tender)
		}
		if r.Amount.StringFixed(2) != w.amount {
			t.Fatalf("row %d amount = %s, want %s", i, r.Amount.StringFixed(2), w.amount)
		}
		if r.Difference.StringFixed(2) != w.diff {
			t.Fatalf("row %d difference = %s, want %s", i, r.Difference.StringFixed(2), w.diff)
		}
	}
	if rows[0].Status != "pulled" || rows[0].PullTime == nil || rows[0].BalanceTime != nil {
		t.Fatalf("row 0 status = %s pull=%v balance=%v", rows[0].Status, rows[0].PullTime, rows[0].BalanceTime)
	}
}

func TestExportDrawerReport(t *testing.T) {
	rows := reports.BuildDrawerReport(reportDrawers())
	path := filepath.Join(t.TempDir(), "drawers.xlsx")
	if err := reports.ExportDrawerReport(rows, path); err != nil {
		t.Fatalf("ExportDrawerReport: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	cases := map[string]string{
		"A1": "Drawer",
		"L1": "Difference",
		"A2": "10",
		"G2": "Cash",
		"J2": "12.50",
		"E2": "2024-03-01T18:00:00Z",
		"A4": "12",
	}
	for cell, want := range cases {
		got, err := f.GetCellValue("Drawers", cell)
		if err != nil {
			t.Fatalf("GetCellValue %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s = %q, want %q", cell, got, want)
		}
	}
}

func TestNewDrawerTotals(t *testing.T) {
	d := &models.Drawer{Serial: 3, Number: -1, OwnerID: 9, TotalDifference: -75}
	d.FindBalance(models.TenderCashAvail, models.NoTenderID, true).Amount = 4210

	got := reports.NewDrawerTotals(d)
	if !got.ServerBank || got.Status != "open" {
		t.Fatalf("totals = %+v", got)
	}
	if !got.CashAvailable.Equal(decimal.RequireFromString("42.10")) {
		t.Fatalf("cash available = %s, want 42.10", got.CashAvailable)
	}
	if !got.TotalDifference.Equal(decimal.RequireFromString("-0.75")) {
		t.Fatalf("total difference = %s, want -0.75", got.TotalDifference)
	}
}

func TestArchiveSummaryLoadsLazily(t *testing.T) {
	t.Setenv("ENABLE_REPORT_CACHE", "")
	dir := t.TempDir()
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	sys := models.NewSystem(dir, models.NewSettings(), models.WithHost("term-1"))
	if err := sys.LoadLive(); err != nil {
		t.Fatalf("LoadLive: %v", err)
	}
	if _, err := sys.SealPeriod(end); err != nil {
		t.Fatalf("SealPeriod: %v", err)
	}

	reloaded := models.NewSystem(dir, models.NewSettings(), models.WithHost("term-1"))
	if err := reloaded.LoadLive(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if a := reloaded.Archives.FindByID(1); a == nil || a.IsLoaded() {
		t.Fatalf("archive 1 should be known but unloaded after reload")
	}

	s, err := reports.ArchiveSummary(context.Background(), reloaded, 1)
	if err != nil {
		t.Fatalf("ArchiveSummary: %v", err)
	}
	if s == nil || s.ID != 1 || !s.Loaded || !s.EndTime.Equal(end) {
		t.Fatalf("summary = %+v", s)
	}

	missing, err := reports.ArchiveSummary(context.Background(), reloaded, 99)
	if err != nil || missing != nil {
		t.Fatalf("missing archive = %+v, %v", missing, err)
	}
}
