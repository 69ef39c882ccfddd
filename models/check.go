package models

import (
	"time"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

// CheckVersion is the record layout written for checks.
// 2: guests count.
const CheckVersion = 2

const (
	CheckFlagTraining = 1 << iota
	CheckFlagTaxExempt
)

type SubCheckStatus int

const (
	SubCheckOpen SubCheckStatus = iota
	SubCheckClosed
	SubCheckVoided
)

const (
	OrderFinal = 1 << iota
	OrderComp
	OrderVoid
	OrderSent
)

const (
	maxSubChecks = 100
	maxOrders    = 1000
	maxPayments  = 1000
)

// Employee is the acting user of an audited operation.
type Employee struct {
	ID       int
	Name     string
	Training bool
}

// Check is a guest bill. The ledger only archives and iterates checks; the
// order-entry layer builds them.
type Check struct {
	Serial    int
	Type      int
	OwnerID   int
	Table     string
	Guests    int
	TimeOpen  time.Time
	Flags     int
	SubChecks []*SubCheck
}

type SubCheck struct {
	Number     int
	Status     SubCheckStatus
	DrawerID   int // serial of the drawer that settled it, 0 when none
	SettleUser int
	SettleTime time.Time
	Orders     []*Order
	Payments   []*Payment
}

type Order struct {
	ItemName   string
	ItemFamily int
	Cost       int
	Count      int
	Status     int
}

type Payment struct {
	TenderType TenderType
	TenderID   int
	Amount     int
	UserID     int
	Flags      int
}

func (c *Check) IsTraining() bool { return c.Flags&CheckFlagTraining != 0 }

// IsOpen reports whether any subcheck is still unsettled. A check with no
// subchecks has not been settled either.
func (c *Check) IsOpen() bool {
	if len(c.SubChecks) == 0 {
		return true
	}
	for _, sc := range c.SubChecks {
		if sc.Status == SubCheckOpen {
			return true
		}
	}
	return false
}

func (c *Check) IsEmpty() bool { return len(c.SubChecks) == 0 }

// UsesDrawer reports whether any subcheck was settled into the drawer.
func (c *Check) UsesDrawer(serial int) bool {
	for _, sc := range c.SubChecks {
		if sc.DrawerID == serial {
			return true
		}
	}
	return false
}

func (o *Order) IsFinal() bool { return o.Status&OrderFinal != 0 }
func (o *Order) IsComp() bool  { return o.Status&OrderComp != 0 }
func (o *Order) IsVoid() bool  { return o.Status&OrderVoid != 0 }

func (o *Order) Total() int { return o.Cost * o.Count }

// PaymentTotal sums every payment on the subcheck.
func (sc *SubCheck) PaymentTotal() int {
	total := 0
	for _, p := range sc.Payments {
		total += p.Amount
	}
	return total
}

func (c *Check) write(w *datafile.Writer) {
	w.Int(c.Serial)
	w.Int(c.Type)
	w.Int(c.OwnerID)
	w.String(c.Table)
	w.Int(c.Guests)
	w.Time(c.TimeOpen)
	w.Int(c.Flags)
	w.Int(len(c.SubChecks))
	for _, sc := range c.SubChecks {
		w.Int(sc.Number)
		w.Int(int(sc.Status))
		w.Int(sc.DrawerID)
		w.Int(sc.SettleUser)
		w.Time(sc.SettleTime)
		w.Int(len(sc.Orders))
		for _, o := range sc.Orders {
			w.String(o.ItemName)
			w.Int(o.ItemFamily)
			w.Int(o.Cost)
			w.Int(o.Count)
			w.Int(o.Status)
		}
		w.Int(len(sc.Payments))
		for _, p := range sc.Payments {
			w.Int(int(p.TenderType))
			w.Int(p.TenderID)
			w.Int(p.Amount)
			w.Int(p.UserID)
			w.Int(p.Flags)
		}
	}
}

func readCheck(r *datafile.Reader, version int) (*Check, error) {
	c := &Check{
		Serial:  r.Int(),
		Type:    r.Int(),
		OwnerID: r.Int(),
		Table:   r.String(),
	}
	if version >= 2 {
		c.Guests = r.Int()
	}
	c.TimeOpen = r.Time()
	c.Flags = r.Int()

	nsub, err := r.Count(maxSubChecks)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nsub; i++ {
		sc := &SubCheck{
			Number:     r.Int(),
			Status:     SubCheckStatus(r.Int()),
			DrawerID:   r.Int(),
			SettleUser: r.Int(),
			SettleTime: r.Time(),
		}
		norders, err := r.Count(maxOrders)
		if err != nil {
			return nil, err
		}
		for j := 0; j < norders; j++ {
			sc.Orders = append(sc.Orders, &Order{
				ItemName:   r.String(),
				ItemFamily: r.Int(),
				Cost:       r.Int(),
				Count:      r.Int(),
				Status:     r.Int(),
			})
		}
		npay, err := r.Count(maxPayments)
		if err != nil {
			return nil, err
		}
		for j := 0; j < npay; j++ {
			sc.Payments = append(sc.Payments, &Payment{
				TenderType: TenderType(r.Int()),
				TenderID:   r.Int(),
				Amount:     r.Int(),
				UserID:     r.Int(),
				Flags:      r.Int(),
			})
		}
		c.SubChecks = append(c.SubChecks, sc)
	}
	return c, r.Err()
}
