package models

import (
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

const ExpenseVersion = 1

// Expense is cash paid out of a drawer for a house expense.
type Expense struct {
	ID          int
	DrawerID    int
	UserID      int
	AccountID   int
	Amount      int
	EntryTime   time.Time
	Description string
}

type ExpenseDB struct {
	Expenses []*Expense
}

func (db *ExpenseDB) Find(id int) *Expense {
	for _, e := range db.Expenses {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (db *ExpenseDB) Add(e *Expense) { db.Expenses = append(db.Expenses, e) }

// DrawerTotal sums the expenses paid out of one drawer.
func (db *ExpenseDB) DrawerTotal(drawerSerial int) int {
	total := 0
	for _, e := range db.Expenses {
		if e.DrawerID == drawerSerial {
			total += e.Amount
		}
	}
	return total
}

// MoveTo transfers every expense to other.
func (db *ExpenseDB) MoveTo(other *ExpenseDB) {
	other.Expenses = append(other.Expenses, db.Expenses...)
	db.Expenses = nil
}

func (db *ExpenseDB) Purge() { db.Expenses = nil }

func (db *ExpenseDB) write(w *datafile.Writer) {
	w.Int(len(db.Expenses))
	for _, e := range db.Expenses {
		w.Int(e.ID)
		w.Int(e.DrawerID)
		w.Int(e.UserID)
		w.Int(e.AccountID)
		w.Int(e.Amount)
		w.Time(e.EntryTime)
		w.String(e.Description)
	}
}

func (db *ExpenseDB) read(r *datafile.Reader, _ int, limit int) error {
	n, err := r.Count(limit)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		db.Expenses = append(db.Expenses, &Expense{
			ID:          r.Int(),
			DrawerID:    r.Int(),
			UserID:      r.Int(),
			AccountID:   r.Int(),
			Amount:      r.Int(),
			EntryTime:   r.Time(),
			Description: r.String(),
		})
	}
	return r.Err()
}
