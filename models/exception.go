package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

// ExceptionVersion is the record layout written for exceptions.
// 2: item exceptions carry a reason.
const ExceptionVersion = 2

const maxExceptions = 10000

type ItemExceptionType int

const (
	ItemExceptionVoid ItemExceptionType = iota + 1
	ItemExceptionComp
	ItemExceptionUnvoid
	ItemExceptionUncomp
)

func (t ItemExceptionType) String() string {
	switch t {
	case ItemExceptionVoid:
		return "void"
	case ItemExceptionComp:
		return "comp"
	case ItemExceptionUnvoid:
		return "unvoid"
	case ItemExceptionUncomp:
		return "uncomp"
	}
	return fmt.Sprintf("exception(%d)", int(t))
}

type ItemException struct {
	Time        time.Time
	UserID      int
	Type        ItemExceptionType
	Reason      string
	ItemName    string
	ItemFamily  int
	ItemCost    int
	CheckSerial int
}

type TableException struct {
	Time        time.Time
	UserID      int
	SourceTable string
	TargetTable string
	CheckSerial int
}

type RebuildException struct {
	Time        time.Time
	UserID      int
	CheckSerial int
}

// ExceptionDB is the append-only audit trail of voids, comps, table transfers
// and check rebuilds. Records are never edited; on archival rollover the
// whole trail moves to the archive with MoveTo.
//
// An ExceptionDB belongs either to an archive (owner set, changes mark the
// archive dirty) or stands alone in its own file (path set, every append
// rewrites the file after backing up the previous one).
type ExceptionDB struct {
	ItemList    []*ItemException
	TableList   []*TableException
	RebuildList []*RebuildException

	owner exceptionOwner
	path  string
	now   func() time.Time
}

type exceptionOwner interface {
	writable() error
	markChanged()
}

// NewExceptionDB returns a standalone trail persisted at path.
func NewExceptionDB(path string, now func() time.Time) *ExceptionDB {
	return &ExceptionDB{path: path, now: now}
}

func (db *ExceptionDB) Path() string { return db.path }

func (db *ExceptionDB) clock() time.Time {
	if db.now != nil {
		return db.now()
	}
	return time.Now().UTC()
}

func validateCheckForException(check *Check, user *Employee) error {
	if check == nil {
		return ErrNilArgument
	}
	if user == nil || user.ID <= 0 {
		return ErrNoEmployee
	}
	if check.IsEmpty() {
		return ErrEmptyCheck
	}
	if check.IsTraining() {
		return ErrTrainingCheck
	}
	return nil
}

// AddItemException records a void or comp of a finalized order.
func (db *ExceptionDB) AddItemException(check *Check, order *Order, exType ItemExceptionType, reason string, user *Employee) (*ItemException, error) {
	if err := validateCheckForException(check, user); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNilArgument
	}
	if !order.IsFinal() {
		return nil, ErrOrderNotFinal
	}

	ie := &ItemException{
		Time:        db.clock(),
		UserID:      user.ID,
		Type:        exType,
		Reason:      reason,
		ItemName:    order.ItemName,
		ItemFamily:  order.ItemFamily,
		ItemCost:    order.Cost,
		CheckSerial: check.Serial,
	}
	db.ItemList = append(db.ItemList, ie)
	if err := db.persist(); err != nil {
		db.ItemList = db.ItemList[:len(db.ItemList)-1]
		return nil, err
	}
	return ie, nil
}

// AddTableException records a check moving from one table to another.
func (db *ExceptionDB) AddTableException(check *Check, user *Employee, fromTable string, toTable string) (*TableException, error) {
	if err := validateCheckForException(check, user); err != nil {
		return nil, err
	}

	te := &TableException{
		Time:        db.clock(),
		UserID:      user.ID,
		SourceTable: fromTable,
		TargetTable: toTable,
		CheckSerial: check.Serial,
	}
	db.TableList = append(db.TableList, te)
	if err := db.persist(); err != nil {
		db.TableList = db.TableList[:len(db.TableList)-1]
		return nil, err
	}
	return te, nil
}

// AddRebuildException records a settled check being reopened for rebuild.
func (db *ExceptionDB) AddRebuildException(check *Check, user *Employee) (*RebuildException, error) {
	if err := validateCheckForException(check, user); err != nil {
		return nil, err
	}

	re := &RebuildException{
		Time:        db.clock(),
		UserID:      user.ID,
		CheckSerial: check.Serial,
	}
	db.RebuildList = append(db.RebuildList, re)
	if err := db.persist(); err != nil {
		db.RebuildList = db.RebuildList[:len(db.RebuildList)-1]
		return nil, err
	}
	return re, nil
}

// persist makes the latest append durable. On error the caller drops the
// record again, so the trail never holds an entry its caller saw fail.
func (db *ExceptionDB) persist() error {
	if db.owner != nil {
		if err := db.owner.writable(); err != nil {
			return err
		}
		db.owner.markChanged()
		return nil
	}
	if db.path == "" {
		return nil
	}
	return db.Save()
}

// MoveTo hands every record to other and leaves db empty. The receiving
// side is persisted first; if that fails the records stay with db.
func (db *ExceptionDB) MoveTo(other *ExceptionDB) error {
	if other == nil {
		return ErrNilArgument
	}
	if db == other {
		return nil
	}
	undo := db.transplant(other)
	if err := other.persist(); err != nil {
		undo()
		return err
	}
	return db.persist()
}

// transplant moves the lists onto other without persisting either side.
// The returned func puts them back.
func (db *ExceptionDB) transplant(other *ExceptionDB) (undo func()) {
	items, tables, rebuilds := len(other.ItemList), len(other.TableList), len(other.RebuildList)
	other.ItemList = append(other.ItemList, db.ItemList...)
	other.TableList = append(other.TableList, db.TableList...)
	other.RebuildList = append(other.RebuildList, db.RebuildList...)
	db.Purge()
	return func() {
		db.ItemList = append(db.ItemList, other.ItemList[items:]...)
		db.TableList = append(db.TableList, other.TableList[tables:]...)
		db.RebuildList = append(db.RebuildList, other.RebuildList[rebuilds:]...)
		other.ItemList = other.ItemList[:items]
		other.TableList = other.TableList[:tables]
		other.RebuildList = other.RebuildList[:rebuilds]
	}
}

func (db *ExceptionDB) Count() int {
	return len(db.ItemList) + len(db.TableList) + len(db.RebuildList)
}

// ForCheck counts the exceptions raised against one check.
func (db *ExceptionDB) ForCheck(serial int) (items, tables, rebuilds int) {
	for _, ie := range db.ItemList {
		if ie.CheckSerial == serial {
			items++
		}
	}
	for _, te := range db.TableList {
		if te.CheckSerial == serial {
			tables++
		}
	}
	for _, re := range db.RebuildList {
		if re.CheckSerial == serial {
			rebuilds++
		}
	}
	return items, tables, rebuilds
}

func (db *ExceptionDB) Purge() {
	db.ItemList = nil
	db.TableList = nil
	db.RebuildList = nil
}

// Save rewrites the standalone file, keeping the previous one as .bak.
func (db *ExceptionDB) Save() error {
	if db.path == "" {
		return ErrNoPath
	}
	if err := datafile.BackupFile(db.path); err != nil {
		return fmt.Errorf("backup exceptions: %w", err)
	}
	return datafile.WriteFileAtomic(db.path, ExceptionVersion, func(w *datafile.Writer) error {
		db.writeBody(w)
		return w.Err()
	})
}

// Load replaces the contents with the standalone file. A missing file leaves
// the trail empty.
func (db *ExceptionDB) Load() error {
	if db.path == "" {
		return ErrNoPath
	}
	db.Purge()
	err := datafile.ReadFile(db.path, func(r *datafile.Reader) error {
		if err := checkRecordVersion(r, "exception", r.Version(), ExceptionVersion); err != nil {
			return err
		}
		return db.readBody(r, r.Version())
	})
	if err != nil && isNotExist(err) {
		return nil
	}
	if err != nil {
		db.Purge()
	}
	return err
}

func (db *ExceptionDB) writeBody(w *datafile.Writer) {
	w.Int(len(db.ItemList))
	for _, ie := range db.ItemList {
		w.Time(ie.Time)
		w.Int(ie.UserID)
		w.Int(int(ie.Type))
		w.String(ie.Reason)
		w.String(ie.ItemName)
		w.Int(ie.ItemFamily)
		w.Int(ie.ItemCost)
		w.Int(ie.CheckSerial)
	}
	w.Int(len(db.TableList))
	for _, te := range db.TableList {
		w.Time(te.Time)
		w.Int(te.UserID)
		w.String(te.SourceTable)
		w.String(te.TargetTable)
		w.Int(te.CheckSerial)
	}
	w.Int(len(db.RebuildList))
	for _, re := range db.RebuildList {
		w.Time(re.Time)
		w.Int(re.UserID)
		w.Int(re.CheckSerial)
	}
}

func (db *ExceptionDB) readBody(r *datafile.Reader, version int) error {
	n, err := r.Count(maxExceptions)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ie := &ItemException{
			Time:   r.Time(),
			UserID: r.Int(),
			Type:   ItemExceptionType(r.Int()),
		}
		if version >= 2 {
			ie.Reason = r.String()
		}
		ie.ItemName = r.String()
		ie.ItemFamily = r.Int()
		ie.ItemCost = r.Int()
		ie.CheckSerial = r.Int()
		db.ItemList = append(db.ItemList, ie)
	}

	if n, err = r.Count(maxExceptions); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		db.TableList = append(db.TableList, &TableException{
			Time:        r.Time(),
			UserID:      r.Int(),
			SourceTable: r.String(),
			TargetTable: r.String(),
			CheckSerial: r.Int(),
		})
	}

	if n, err = r.Count(maxExceptions); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		db.RebuildList = append(db.RebuildList, &RebuildException{
			Time:        r.Time(),
			UserID:      r.Int(),
			CheckSerial: r.Int(),
		})
	}
	return r.Err()
}
