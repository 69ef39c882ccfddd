package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_ledger/appctx"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/models/reports"
	"github.com/mmdatafocus/pos_ledger/utils"
	"github.com/mmdatafocus/pos_ledger/workflow"
)

func parseDay(flagName, v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --%s date: %v\n", flagName, err)
		os.Exit(1)
	}
	return d
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	dir := flag.String("dir", os.Getenv("LEDGER_ARCHIVE_DIR"), "Archive directory (default $LEDGER_ARCHIVE_DIR)")
	id := flag.Int("id", 0, "Optional: show one archive with its drawers")
	fromStr := flag.String("from", "", "Optional: scan archives overlapping this day onwards (YYYY-MM-DD)")
	toStr := flag.String("to", "", "Optional: scan archives before this day (YYYY-MM-DD)")
	restore := flag.Bool("restore", false, "Download --id from the cold storage bucket into --dir first")
	bucket := flag.String("bucket", os.Getenv("COLD_STORAGE_BUCKET"), "Cold storage bucket for --restore")
	catalog := flag.Bool("catalog", false, "List the catalog entries for --site instead of reading files")
	site := flag.String("site", os.Getenv("LEDGER_SITE_ID"), "Site id for --catalog")
	allSites := flag.Bool("all-sites", false, "With --catalog: list every site's entries")
	flag.Parse()

	ctx := context.Background()

	if *catalog {
		if strings.TrimSpace(*site) == "" && !*allSites {
			fmt.Fprintln(os.Stderr, "--site or --all-sites is required with --catalog")
			os.Exit(1)
		}
		connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := config.ConnectDatabaseWithRetry(connectCtx); err != nil {
			fmt.Fprintf(os.Stderr, "connect catalog: %v\n", err)
			os.Exit(1)
		}
		catalogCtx := utils.SetSiteIdInContext(ctx, *site)
		if *allSites {
			catalogCtx = appctx.Set(catalogCtx, appctx.ContextKeyAllSites, true)
		}
		entries, err := workflow.NewGormArchiveCatalog(config.GetDB()).List(catalogCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list catalog: %v\n", err)
			os.Exit(1)
		}
		printJSON(entries)
		return
	}

	if strings.TrimSpace(*dir) == "" {
		fmt.Fprintln(os.Stderr, "--dir is required")
		os.Exit(1)
	}

	if *restore {
		if *id <= 0 {
			fmt.Fprintln(os.Stderr, "--restore needs --id")
			os.Exit(1)
		}
		dst := filepath.Join(*dir, models.ArchiveFileName(*id))
		if err := utils.DownloadArchiveFromGCS(ctx, *bucket, workflow.ArchiveObjectName(*id), dst); err != nil {
			fmt.Fprintf(os.Stderr, "restore archive %d: %v\n", *id, err)
			os.Exit(1)
		}
		fmt.Printf("restored archive %d to %s\n", *id, dst)
	}

	from, to := parseDay("from", *fromStr), parseDay("to", *toStr)

	// Inspection never freezes live settings into old archives.
	reporter := models.NewLogrusReporter(config.GetLogger())
	chain := models.NewArchiveChain(nil, reporter, 4)
	if _, err := chain.LoadDir(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *dir, err)
		os.Exit(1)
	}
	code := inspect(chain, *id, *dir, from, to)
	if err := chain.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close archives: %v\n", err)
	}
	os.Exit(code)
}

// inspect prints one archive, the summaries or a scan and returns the exit
// code.
func inspect(chain *models.ArchiveChain, id int, dir string, from, to time.Time) int {
	if id > 0 {
		a := chain.FindByID(id)
		if a == nil {
			fmt.Fprintf(os.Stderr, "archive %d not found in %s\n", id, dir)
			return 1
		}
		if err := chain.Load(a); err != nil {
			fmt.Fprintf(os.Stderr, "load archive %d: %v\n", id, err)
			return 1
		}
		drawers := make([]*reports.DrawerTotals, 0, len(a.Drawers()))
		for _, d := range a.Drawers() {
			drawers = append(drawers, reports.NewDrawerTotals(d))
		}
		printJSON(map[string]any{
			"archive": a.Summary(),
			"drawers": drawers,
		})
		return 0
	}

	if from.IsZero() && to.IsZero() {
		out := make([]models.ArchiveSummary, 0, chain.Len())
		for _, a := range chain.All() {
			out = append(out, a.Summary())
		}
		printJSON(out)
		return 0
	}

	scan := chain.Scan(from, to)
	failed := 0
	for {
		a, err := scan.Next()
		if a == nil {
			break
		}
		var corrupt *models.CorruptError
		if errors.As(err, &corrupt) {
			failed++
			fmt.Fprintf(os.Stderr, "archive %d corrupt in %s section (skipping)\n", a.ID, corrupt.Section)
			continue
		} else if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "archive %d: %v (skipping)\n", a.ID, err)
			continue
		}
		s := a.Summary()
		fmt.Printf("archive=%d start=%s end=%s version=%d checks=%d drawers=%d exceptions=%d last_serial=%d\n",
			s.ID, s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339), s.FileVersion,
			s.Checks, s.Drawers, s.Exceptions, s.LastSerialNumber)
	}
	if failed > 0 {
		return 2
	}
	return 0
}
