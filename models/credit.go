package models

import (
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

const (
	CreditDBVersion = 1
	CCResultVersion = 1
)

const maxResultLines = 1000

// CreditEntry is one card transaction kept for audit. The gateway protocol
// that produced it lives elsewhere.
type CreditEntry struct {
	CardType    int
	Last4       string
	Amount      int
	Approval    string
	CheckSerial int
	Time        time.Time
}

// CreditDB is an append-only log of card transactions of one kind
// (exceptions, refunds or voids).
type CreditDB struct {
	Entries []*CreditEntry
}

func (db *CreditDB) Add(ce *CreditEntry) { db.Entries = append(db.Entries, ce) }

func (db *CreditDB) Purge() { db.Entries = nil }

func (db *CreditDB) write(w *datafile.Writer) {
	w.Int(len(db.Entries))
	for _, ce := range db.Entries {
		w.Int(ce.CardType)
		w.String(ce.Last4)
		w.Int(ce.Amount)
		w.String(ce.Approval)
		w.Int(ce.CheckSerial)
		w.Time(ce.Time)
	}
}

func (db *CreditDB) read(r *datafile.Reader, limit int) error {
	n, err := r.Count(limit)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		db.Entries = append(db.Entries, &CreditEntry{
			CardType:    r.Int(),
			Last4:       r.String(),
			Amount:      r.Int(),
			Approval:    r.String(),
			CheckSerial: r.Int(),
			Time:        r.Time(),
		})
	}
	return r.Err()
}

// CreditResult is a printed gateway response (batch init, SAF details,
// settlement) captured verbatim for the period.
type CreditResult struct {
	Time     time.Time
	Terminal string
	Lines    []string
}

type CreditResults struct {
	Results []*CreditResult
}

func (cr *CreditResults) Add(res *CreditResult) { cr.Results = append(cr.Results, res) }

func (cr *CreditResults) Purge() { cr.Results = nil }

func (cr *CreditResults) write(w *datafile.Writer) {
	w.Int(CCResultVersion)
	w.Int(len(cr.Results))
	for _, res := range cr.Results {
		w.Time(res.Time)
		w.String(res.Terminal)
		w.Int(len(res.Lines))
		for _, l := range res.Lines {
			w.String(l)
		}
	}
}

func (cr *CreditResults) read(r *datafile.Reader, limit int) error {
	version := r.Int()
	if err := checkRecordVersion(r, "cc result", version, CCResultVersion); err != nil {
		return err
	}
	n, err := r.Count(limit)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		res := &CreditResult{
			Time:     r.Time(),
			Terminal: r.String(),
		}
		nl, err := r.Count(maxResultLines)
		if err != nil {
			return err
		}
		for j := 0; j < nl; j++ {
			res.Lines = append(res.Lines, r.String())
		}
		cr.Results = append(cr.Results, res)
	}
	return r.Err()
}
