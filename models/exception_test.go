package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExceptionValidation(t *testing.T) {
	db := NewExceptionDB("", nil)
	check := settledCheck(10, 1, cashPayment(100))
	order := check.SubChecks[0].Orders[0]

	training := settledCheck(11, 1)
	training.Flags = CheckFlagTraining
	pending := &Order{ItemName: "Soup", Cost: 400, Count: 1}

	cases := []struct {
		name  string
		check *Check
		order *Order
		user  *Employee
		want  error
	}{
		{"nil check", nil, order, testManager, ErrNilArgument},
		{"no user", check, order, nil, ErrNoEmployee},
		{"user without id", check, order, &Employee{Name: "x"}, ErrNoEmployee},
		{"empty check", &Check{Serial: 12}, order, testManager, ErrEmptyCheck},
		{"training check", training, order, testManager, ErrTrainingCheck},
		{"nil order", check, nil, testManager, ErrNilArgument},
		{"order not final", check, pending, testManager, ErrOrderNotFinal},
	}
	for _, tc := range cases {
		_, err := db.AddItemException(tc.check, tc.order, ItemExceptionVoid, "", tc.user)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if db.Count() != 0 {
		t.Fatalf("rejected exceptions were recorded: %d", db.Count())
	}

	if _, err := db.AddTableException(check, testManager, "T1", "T9"); err != nil {
		t.Fatalf("AddTableException: %v", err)
	}
	if _, err := db.AddRebuildException(check, testManager); err != nil {
		t.Fatalf("AddRebuildException: %v", err)
	}
	ie, err := db.AddItemException(check, order, ItemExceptionComp, "birthday", testManager)
	if err != nil {
		t.Fatalf("AddItemException: %v", err)
	}
	if ie.ItemCost != 1200 || ie.CheckSerial != 10 || ie.UserID != testManager.ID {
		t.Fatalf("item exception %+v", ie)
	}
	if items, tables, rebuilds := db.ForCheck(10); items != 1 || tables != 1 || rebuilds != 1 {
		t.Fatalf("ForCheck = %d %d %d", items, tables, rebuilds)
	}
}

func TestStandaloneExceptionsPersist(t *testing.T) {
	clock := &testClock{t: testEpoch}
	path := filepath.Join(t.TempDir(), "exceptions.dat")
	db := NewExceptionDB(path, clock.now)
	check := settledCheck(10, 1, cashPayment(100))

	if _, err := db.AddTableException(check, testManager, "T1", "T2"); err != nil {
		t.Fatalf("AddTableException: %v", err)
	}
	if _, err := db.AddItemException(check, check.SubChecks[0].Orders[0], ItemExceptionVoid, "wrong table", testManager); err != nil {
		t.Fatalf("AddItemException: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("second write left no backup: %v", err)
	}

	loaded := NewExceptionDB(path, nil)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("loaded %d exceptions, want 2", loaded.Count())
	}
	if got := loaded.ItemList[0]; got.Reason != "wrong table" || !got.Time.Equal(testEpoch) {
		t.Fatalf("loaded item exception %+v", got)
	}

	missing := NewExceptionDB(filepath.Join(t.TempDir(), "none.dat"), nil)
	if err := missing.Load(); err != nil || missing.Count() != 0 {
		t.Fatalf("Load of missing file = %v with %d records", err, missing.Count())
	}
}

func TestExceptionMoveToArchive(t *testing.T) {
	live := NewExceptionDB(filepath.Join(t.TempDir(), "exceptions.dat"), nil)
	check := settledCheck(10, 1, cashPayment(100))
	if _, err := live.AddRebuildException(check, testManager); err != nil {
		t.Fatalf("AddRebuildException: %v", err)
	}

	a := newSealedArchive(1, "", testEpoch, testEpoch, nil)
	if err := live.MoveTo(a.Exceptions()); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if live.Count() != 0 || a.Exceptions().Count() != 1 {
		t.Fatalf("after MoveTo live=%d archive=%d", live.Count(), a.Exceptions().Count())
	}
	if !a.IsChanged() {
		t.Fatalf("archive not marked changed by MoveTo")
	}

	reread := NewExceptionDB(live.Path(), nil)
	if err := reread.Load(); err != nil || reread.Count() != 0 {
		t.Fatalf("live file after MoveTo: %v, %d records", err, reread.Count())
	}
}

func TestExceptionAppendDroppedWhenWriteFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	check := settledCheck(10, 1, cashPayment(100))

	standalone := NewExceptionDB(filepath.Join(blocker, "exceptions.dat"), nil)
	if _, err := standalone.AddTableException(check, testManager, "T1", "T2"); err == nil {
		t.Fatalf("AddTableException into an unwritable path succeeded")
	}
	if standalone.Count() != 0 {
		t.Fatalf("failed append left %d records", standalone.Count())
	}

	a := fullArchive(t, filepath.Join(dir, ArchiveFileName(3)))
	if err := a.SavePacked(); err != nil {
		t.Fatalf("SavePacked: %v", err)
	}
	before := a.Exceptions().Count()
	if _, err := a.Exceptions().AddRebuildException(check, testManager); !errors.Is(err, ErrWriteRefused) {
		t.Fatalf("AddRebuildException on disk archive err = %v, want ErrWriteRefused", err)
	}
	if _, err := a.Exceptions().AddItemException(check, check.SubChecks[0].Orders[0], ItemExceptionVoid, "", testManager); !errors.Is(err, ErrWriteRefused) {
		t.Fatalf("AddItemException on disk archive err = %v, want ErrWriteRefused", err)
	}
	if a.Exceptions().Count() != before || a.IsChanged() {
		t.Fatalf("disk archive trail %d -> %d changed=%v", before, a.Exceptions().Count(), a.IsChanged())
	}
}

func TestExceptionMoveToRefusedKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	live := NewExceptionDB(filepath.Join(dir, "exceptions.dat"), nil)
	check := settledCheck(10, 1, cashPayment(100))
	if _, err := live.AddRebuildException(check, testManager); err != nil {
		t.Fatalf("AddRebuildException: %v", err)
	}

	a := fullArchive(t, filepath.Join(dir, ArchiveFileName(4)))
	if err := a.SavePacked(); err != nil {
		t.Fatalf("SavePacked: %v", err)
	}
	before := a.Exceptions().Count()
	if err := live.MoveTo(a.Exceptions()); !errors.Is(err, ErrWriteRefused) {
		t.Fatalf("MoveTo disk archive err = %v, want ErrWriteRefused", err)
	}
	if live.Count() != 1 || a.Exceptions().Count() != before {
		t.Fatalf("after refused MoveTo live=%d archive=%d", live.Count(), a.Exceptions().Count())
	}

	reread := NewExceptionDB(live.Path(), nil)
	if err := reread.Load(); err != nil || reread.Count() != 1 {
		t.Fatalf("live file after refused MoveTo: %v, %d records", err, reread.Count())
	}
}
