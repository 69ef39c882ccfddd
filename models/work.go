package models

import "time"

// WorkEntry is one clock-in/clock-out shift.
type WorkEntry struct {
	UserID int
	JobID  int
	Start  time.Time
	End    time.Time
}

func (we *WorkEntry) IsOpen() bool { return we.End.IsZero() }

// WorkDB is carried by an archive in memory only; time clock history is kept
// by the labor layer, not in the archive file.
type WorkDB struct {
	Entries []*WorkEntry
}

func (db *WorkDB) Add(we *WorkEntry) { db.Entries = append(db.Entries, we) }

func (db *WorkDB) Remove(we *WorkEntry) bool {
	for i, e := range db.Entries {
		if e == we {
			db.Entries = append(db.Entries[:i], db.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func (db *WorkDB) Purge() { db.Entries = nil }
