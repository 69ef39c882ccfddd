package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

// DrawerVersion is the record layout written for drawers.
// 2: terminal host and the media balanced mask.
const DrawerVersion = 2

const (
	maxDrawerBalances = 1000
	maxDrawerPayments = 10000
)

type DrawerStatus int

const (
	DrawerOpen DrawerStatus = iota
	DrawerPulled
	DrawerBalanced
)

func (s DrawerStatus) String() string {
	switch s {
	case DrawerOpen:
		return "open"
	case DrawerPulled:
		return "pulled"
	case DrawerBalanced:
		return "balanced"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Drawer is one cash-handling session: a physical till (Number > 0) or a
// server's personal bank (Number < 0).
type Drawer struct {
	Serial      int
	OwnerID     int
	PullerID    int
	StartTime   time.Time
	PullTime    time.Time
	BalanceTime time.Time
	Position    int
	Number      int
	Host        string

	// MediaBalanced has bit TenderType.Bit() set for every tender the
	// operator has counted by hand.
	MediaBalanced   uint64
	TotalDifference int
	TotalChecks     int
	TotalPayments   int

	// ArchiveID is the archive holding the drawer, 0 while it is live.
	ArchiveID int

	Balances []*DrawerBalance
	Payments []*DrawerPayment
}

// DrawerBalance is the computed and counted amount of one tender key.
type DrawerBalance struct {
	TenderType TenderType
	TenderID   int
	Amount     int
	Count      int
	Entered    int
}

// DrawerPayment is a manual payout from the drawer, such as a tip payout.
type DrawerPayment struct {
	TenderType TenderType
	TargetID   int
	Amount     int
	UserID     int
	Time       time.Time
}

// Status is derived from the two timestamps only.
func (d *Drawer) Status() DrawerStatus {
	if !d.BalanceTime.IsZero() {
		return DrawerBalanced
	}
	if !d.PullTime.IsZero() {
		return DrawerPulled
	}
	return DrawerOpen
}

func (d *Drawer) IsServerBank() bool { return d.Number < 0 }

func (d *Drawer) IsArchived() bool { return d.ArchiveID != 0 }

func (d *Drawer) IsBalanced(t TenderType) bool { return d.MediaBalanced&t.Bit() != 0 }

// FindBalance looks up the (type, id) balance. With makeNew a zero entry is
// appended when none exists.
func (d *Drawer) FindBalance(t TenderType, id int, makeNew bool) *DrawerBalance {
	for _, b := range d.Balances {
		if b.TenderType == t && b.TenderID == id {
			return b
		}
	}
	if !makeNew {
		return nil
	}
	b := &DrawerBalance{TenderType: t, TenderID: id}
	d.Balances = append(d.Balances, b)
	return b
}

// Amount is the computed amount of a tender key, 0 when there is none.
func (d *Drawer) Amount(t TenderType, id int) int {
	if b := d.FindBalance(t, id, false); b != nil {
		return b.Amount
	}
	return 0
}

// Entered is the counted amount of a tender key, 0 when there is none.
func (d *Drawer) Entered(t TenderType, id int) int {
	if b := d.FindBalance(t, id, false); b != nil {
		return b.Entered
	}
	return 0
}

// TypeAmount sums the computed amounts of every key of a tender type.
func (d *Drawer) TypeAmount(t TenderType) int {
	total := 0
	for _, b := range d.Balances {
		if b.TenderType == t {
			total += b.Amount
		}
	}
	return total
}

// SetEntered records what the operator counted for a tender key.
func (d *Drawer) SetEntered(t TenderType, id int, amount int) error {
	if !t.Valid() {
		return ErrBadTender
	}
	d.FindBalance(t, id, true).Entered = amount
	return nil
}

func (d *Drawer) MarkBalanced(t TenderType) error {
	if !t.Valid() {
		return ErrBadTender
	}
	d.MediaBalanced |= t.Bit()
	return nil
}

// Reconcile enters a counted amount and flags the tender as hand-counted.
func (d *Drawer) Reconcile(t TenderType, id int, counted int) error {
	if err := d.SetEntered(t, id, counted); err != nil {
		return err
	}
	return d.MarkBalanced(t)
}

// ApplyExpense adjusts the expense balance. Expenses are applied as they are
// entered; Total never recomputes them.
func (d *Drawer) ApplyExpense(amount int) {
	b := d.FindBalance(TenderExpense, NoTenderID, true)
	b.Amount += amount
	b.Count++
}

func (d *Drawer) write(w *datafile.Writer) {
	w.Int(d.Serial)
	w.Int(d.OwnerID)
	w.Int(d.PullerID)
	w.Time(d.StartTime)
	w.Time(d.PullTime)
	w.Time(d.BalanceTime)
	w.Int(d.Position)
	w.Int(d.Number)
	w.String(d.Host)
	w.Uint64(d.MediaBalanced)
	w.Int(d.TotalDifference)
	w.Int(d.TotalChecks)
	w.Int(d.TotalPayments)

	w.Int(len(d.Balances))
	for _, b := range d.Balances {
		w.Int(int(b.TenderType))
		w.Int(b.TenderID)
		w.Int(b.Amount)
		w.Int(b.Count)
		w.Int(b.Entered)
	}
	w.Int(len(d.Payments))
	for _, p := range d.Payments {
		w.Int(int(p.TenderType))
		w.Int(p.TargetID)
		w.Int(p.Amount)
		w.Int(p.UserID)
		w.Time(p.Time)
	}
}

func readDrawer(r *datafile.Reader, version int) (*Drawer, error) {
	d := &Drawer{
		Serial:      r.Int(),
		OwnerID:     r.Int(),
		PullerID:    r.Int(),
		StartTime:   r.Time(),
		PullTime:    r.Time(),
		BalanceTime: r.Time(),
		Position:    r.Int(),
		Number:      r.Int(),
	}
	if version >= 2 {
		d.Host = r.String()
		d.MediaBalanced = r.Uint64()
	}
	d.TotalDifference = r.Int()
	d.TotalChecks = r.Int()
	d.TotalPayments = r.Int()

	nb, err := r.Count(maxDrawerBalances)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nb; i++ {
		d.Balances = append(d.Balances, &DrawerBalance{
			TenderType: TenderType(r.Int()),
			TenderID:   r.Int(),
			Amount:     r.Int(),
			Count:      r.Int(),
			Entered:    r.Int(),
		})
	}
	np, err := r.Count(maxDrawerPayments)
	if err != nil {
		return nil, err
	}
	for i := 0; i < np; i++ {
		d.Payments = append(d.Payments, &DrawerPayment{
			TenderType: TenderType(r.Int()),
			TargetID:   r.Int(),
			Amount:     r.Int(),
			UserID:     r.Int(),
			Time:       r.Time(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !d.PullTime.IsZero() || !d.BalanceTime.IsZero() {
		if d.PullTime.IsZero() {
			return nil, fmt.Errorf("drawer %d balanced without being pulled", d.Serial)
		}
	}
	return d, nil
}
