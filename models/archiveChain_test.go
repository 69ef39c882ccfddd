package models

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func day(n int) time.Time { return testEpoch.Add(time.Duration(n) * 24 * time.Hour) }

// writeDays saves one archive per day, ids 1..n, each holding one check.
func writeDays(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		a := newSealedArchive(i, filepath.Join(dir, ArchiveFileName(i)), day(i-1), day(i), nil)
		if err := a.AddCheck(settledCheck(100*i, 0, cashPayment(i))); err != nil {
			t.Fatalf("AddCheck: %v", err)
		}
		if err := a.SavePacked(); err != nil {
			t.Fatalf("SavePacked %d: %v", i, err)
		}
	}
}

func TestArchiveChainFind(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 3)

	chain := NewArchiveChain(NewSettings(), nil, 2)
	n, err := chain.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 3 || chain.Len() != 3 {
		t.Fatalf("LoadDir added %d, chain has %d; want 3", n, chain.Len())
	}

	cases := []struct {
		at   time.Time
		want int
	}{
		{day(0), 1},
		{day(1).Add(-time.Second), 1},
		{day(1), 2},
		{day(2).Add(time.Hour), 3},
		{day(3), 0},
		{day(-1), 0},
	}
	for _, tc := range cases {
		got := chain.Find(tc.at)
		switch {
		case tc.want == 0 && got != nil:
			t.Fatalf("Find(%s) = archive %d, want none", tc.at, got.ID)
		case tc.want != 0 && (got == nil || got.ID != tc.want):
			t.Fatalf("Find(%s) = %v, want archive %d", tc.at, got, tc.want)
		}
	}
	if chain.Last().ID != 3 || chain.NextID() != 4 {
		t.Fatalf("Last=%d NextID=%d", chain.Last().ID, chain.NextID())
	}
	if err := chain.Add(NewArchive("", nil)); err != nil {
		t.Fatalf("Add id 0: %v", err)
	}
	dup := NewArchive("", nil)
	dup.ID = 2
	if err := chain.Add(dup); !errors.Is(err, ErrDuplicateSerial) {
		t.Fatalf("Add duplicate id err = %v", err)
	}
}

func TestArchiveScannerEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 3)

	chain := NewArchiveChain(NewSettings(), nil, 1)
	if _, err := chain.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	sc := chain.Scan(time.Time{}, time.Time{})
	var seen []*Archive
	for {
		a, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if a == nil {
			break
		}
		if !a.IsLoaded() || a.FindCheck(100*a.ID) == nil {
			t.Fatalf("archive %d not loaded by the scanner", a.ID)
		}
		for _, prev := range seen {
			if prev.IsLoaded() {
				t.Fatalf("archive %d still loaded with a cache of one", prev.ID)
			}
		}
		seen = append(seen, a)
	}
	if len(seen) != 3 {
		t.Fatalf("scanned %d archives, want 3", len(seen))
	}
}

func TestArchiveScannerRange(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 4)

	chain := NewArchiveChain(NewSettings(), nil, 4)
	if _, err := chain.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	sc := chain.Scan(day(1).Add(time.Hour), day(3))
	var ids []int
	for {
		a, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if a == nil {
			break
		}
		ids = append(ids, a.ID)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("scanned %v, want [2 3]", ids)
	}

	resumed := chain.Scan(time.Time{}, time.Time{}).SeekAfter(2)
	a, err := resumed.Next()
	if err != nil || a == nil || a.ID != 3 {
		t.Fatalf("resumed scan = %v, %v; want archive 3", a, err)
	}
}

func TestArchiveScannerContinuesPastCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	writeDays(t, dir, 2)
	a := newSealedArchive(3, filepath.Join(dir, ArchiveFileName(3)), day(2), day(3), nil)
	if err := a.SavePacked(); err != nil {
		t.Fatalf("SavePacked: %v", err)
	}

	chain := NewArchiveChain(NewSettings(), nil, 4)
	if _, err := chain.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	bad := chain.FindByID(2)
	bad.corrupt = true

	sc := chain.Scan(time.Time{}, time.Time{})
	var failed, ok int
	for {
		a, err := sc.Next()
		if a == nil && err == nil {
			break
		}
		if err != nil {
			if !errors.Is(err, ErrArchiveCorrupt) {
				t.Fatalf("Next err = %v", err)
			}
			failed++
			continue
		}
		ok++
	}
	if failed != 1 || ok != 2 {
		t.Fatalf("failed=%d ok=%d, want 1 and 2", failed, ok)
	}
}
