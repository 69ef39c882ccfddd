package models

import (
	"github.com/mmdatafocus/pos_ledger/datafile"
)

const TipVersion = 1

// TipEntry is one employee's captured tips for the period.
type TipEntry struct {
	UserID int
	Amount int
	Paid   int
}

func (t *TipEntry) Owed() int { return t.Amount - t.Paid }

type TipDB struct {
	Entries []*TipEntry
}

func (db *TipDB) Find(userID int) *TipEntry {
	for _, te := range db.Entries {
		if te.UserID == userID {
			return te
		}
	}
	return nil
}

// Capture adds amount to the user's entry, creating it on first use.
func (db *TipDB) Capture(userID int, amount int) *TipEntry {
	te := db.Find(userID)
	if te == nil {
		te = &TipEntry{UserID: userID}
		db.Entries = append(db.Entries, te)
	}
	te.Amount += amount
	return te
}

func (db *TipDB) Purge() { db.Entries = nil }

func (db *TipDB) write(w *datafile.Writer) {
	w.Int(len(db.Entries))
	for _, te := range db.Entries {
		w.Int(te.UserID)
		w.Int(te.Amount)
		w.Int(te.Paid)
	}
}

func (db *TipDB) read(r *datafile.Reader, _ int, limit int) error {
	n, err := r.Count(limit)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		db.Entries = append(db.Entries, &TipEntry{
			UserID: r.Int(),
			Amount: r.Int(),
			Paid:   r.Int(),
		})
	}
	return r.Err()
}
