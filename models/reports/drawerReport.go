package reports

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const drawerReportSheet = "Drawers"

// DrawerReportRow is one tender line of one drawer. Amounts are in currency
// units; the ledger stores them in cents.
type DrawerReportRow struct {
	DrawerSerial int             `json:"drawer_serial"`
	Number       int             `json:"number"`
	Host         string          `json:"host"`
	Status       string          `json:"status"`
	PullTime     *time.Time      `json:"pull_time,omitempty"`
	BalanceTime  *time.Time      `json:"balance_time,omitempty"`
	Tender       string          `json:"tender"`
	TenderID     int             `json:"tender_id"`
	Count        int             `json:"count"`
	Amount       decimal.Decimal `json:"amount"`
	Entered      decimal.Decimal `json:"entered"`
	Difference   decimal.Decimal `json:"difference"`
}

// DrawerTotals summarizes a drawer for listings.
type DrawerTotals struct {
	Serial          int             `json:"serial"`
	Number          int             `json:"number"`
	OwnerID         int             `json:"owner_id"`
	Host            string          `json:"host"`
	Status          string          `json:"status"`
	ServerBank      bool            `json:"server_bank"`
	ArchiveID       int             `json:"archive_id"`
	TotalChecks     int             `json:"total_checks"`
	TotalPayments   int             `json:"total_payments"`
	CashAvailable   decimal.Decimal `json:"cash_available"`
	TotalDifference decimal.Decimal `json:"total_difference"`
}

func cents(v int) decimal.Decimal {
	return decimal.New(int64(v), -2)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func NewDrawerTotals(d *models.Drawer) *DrawerTotals {
	return &DrawerTotals{
		Serial:          d.Serial,
		Number:          d.Number,
		OwnerID:         d.OwnerID,
		Host:            d.Host,
		Status:          d.Status().String(),
		ServerBank:      d.IsServerBank(),
		ArchiveID:       d.ArchiveID,
		TotalChecks:     d.TotalChecks,
		TotalPayments:   d.TotalPayments,
		CashAvailable:   cents(d.Amount(models.TenderCashAvail, models.NoTenderID)),
		TotalDifference: cents(d.TotalDifference),
	}
}

// BuildDrawerReport flattens drawers into rows ordered by drawer serial, then
// tender type and id. Balances with neither an amount nor an entered value
// are left out.
func BuildDrawerReport(drawers []*models.Drawer) []*DrawerReportRow {
	sorted := make([]*models.Drawer, len(drawers))
	copy(sorted, drawers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Serial < sorted[j].Serial })

	var rows []*DrawerReportRow
	for _, d := range sorted {
		balances := make([]*models.DrawerBalance, 0, len(d.Balances))
		for _, b := range d.Balances {
			if b.Amount == 0 && b.Entered == 0 {
				continue
			}
			balances = append(balances, b)
		}
		sort.Slice(balances, func(i, j int) bool {
			if balances[i].TenderType != balances[j].TenderType {
				return balances[i].TenderType < balances[j].TenderType
			}
			return balances[i].TenderID < balances[j].TenderID
		})
		for _, b := range balances {
			amount, entered := cents(b.Amount), cents(b.Entered)
			rows = append(rows, &DrawerReportRow{
				DrawerSerial: d.Serial,
				Number:       d.Number,
				Host:         d.Host,
				Status:       d.Status().String(),
				PullTime:     optionalTime(d.PullTime),
				BalanceTime:  optionalTime(d.BalanceTime),
				Tender:       b.TenderType.String(),
				TenderID:     b.TenderID,
				Count:        b.Count,
				Amount:       amount,
				Entered:      entered,
				Difference:   entered.Sub(amount),
			})
		}
	}
	return rows
}

var drawerReportHeadings = []string{
	"Drawer", "Number", "Host", "Status", "Pulled", "Balanced",
	"Tender", "TenderID", "Count", "Amount", "Entered", "Difference",
}

func newDrawerWorkbook(rows []*DrawerReportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", drawerReportSheet); err != nil {
		return nil, err
	}

	// Add headers
	for i, h := range drawerReportHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(drawerReportSheet, cell, h)
	}

	// Add data
	for i, r := range rows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(drawerReportSheet, "A"+row, r.DrawerSerial)
		f.SetCellValue(drawerReportSheet, "B"+row, r.Number)
		f.SetCellValue(drawerReportSheet, "C"+row, r.Host)
		f.SetCellValue(drawerReportSheet, "D"+row, r.Status)
		if r.PullTime != nil {
			f.SetCellValue(drawerReportSheet, "E"+row, r.PullTime.Format(time.RFC3339))
		}
		if r.BalanceTime != nil {
			f.SetCellValue(drawerReportSheet, "F"+row, r.BalanceTime.Format(time.RFC3339))
		}
		f.SetCellValue(drawerReportSheet, "G"+row, r.Tender)
		f.SetCellValue(drawerReportSheet, "H"+row, r.TenderID)
		f.SetCellValue(drawerReportSheet, "I"+row, r.Count)
		f.SetCellValue(drawerReportSheet, "J"+row, r.Amount.StringFixed(2))
		f.SetCellValue(drawerReportSheet, "K"+row, r.Entered.StringFixed(2))
		f.SetCellValue(drawerReportSheet, "L"+row, r.Difference.StringFixed(2))
	}
	return f, nil
}

// WriteDrawerReport writes rows as an .xlsx workbook to w.
func WriteDrawerReport(w io.Writer, rows []*DrawerReportRow) error {
	f, err := newDrawerWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ExportDrawerReport saves rows as an .xlsx workbook at filename.
func ExportDrawerReport(rows []*DrawerReportRow, filename string) error {
	f, err := newDrawerWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
