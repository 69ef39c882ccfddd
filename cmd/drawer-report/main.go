package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/models/reports"
)

func main() {
	dataDir := flag.String("data-dir", os.Getenv("LEDGER_DATA_DIR"), "Ledger data directory (default $LEDGER_DATA_DIR)")
	archiveID := flag.Int("archive", 0, "Optional: report the drawers of this archive instead of the live ones")
	out := flag.String("out", "drawers.xlsx", "Output .xlsx file")
	flag.Parse()

	if strings.TrimSpace(*dataDir) == "" {
		fmt.Fprintln(os.Stderr, "--data-dir is required")
		os.Exit(1)
	}

	sys := models.NewSystem(*dataDir, models.NewSettings(),
		models.WithReporter(models.NewLogrusReporter(config.GetLogger())),
		models.WithMaxLoadedArchives(2),
		models.WithReadOnlyArchives())
	if err := sys.LoadLive(); err != nil {
		fmt.Fprintf(os.Stderr, "load ledger: %v\n", err)
		os.Exit(1)
	}

	drawers := sys.Drawers()
	if *archiveID > 0 {
		a := sys.Archives.FindByID(*archiveID)
		if a == nil {
			fmt.Fprintf(os.Stderr, "archive %d not found\n", *archiveID)
			os.Exit(1)
		}
		if err := sys.Archives.Load(a); err != nil {
			fmt.Fprintf(os.Stderr, "load archive %d: %v\n", *archiveID, err)
			os.Exit(1)
		}
		drawers = a.Drawers()
	}

	rows := reports.BuildDrawerReport(drawers)
	if err := reports.ExportDrawerReport(rows, *out); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d rows for %d drawers to %s\n", len(rows), len(drawers), *out)
}
