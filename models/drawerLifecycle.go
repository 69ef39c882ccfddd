package models

import (
	"fmt"
	"time"
)

// drawerScope is the container a drawer lives in: the live system or the
// archive that holds it. Pull, Balance and the merges persist through it.
type drawerScope interface {
	scopeDrawers() []*Drawer
	scopeChecks() []*Check
	persistCheck(c *Check) error
	persistDrawer(d *Drawer) error
	destroyDrawer(d *Drawer) error
}

// Pull closes the drawer for counting. On success the drawer is totaled and
// persisted, and a numbered till gets a fresh open drawer at the same
// position so the terminal keeps taking money.
func (d *Drawer) Pull(sys *System, user *Employee) (*Drawer, error) {
	if sys == nil {
		return nil, ErrNilArgument
	}
	if user == nil || user.ID <= 0 {
		return nil, ErrNoEmployee
	}
	if d.IsArchived() {
		return nil, ErrDrawerArchived
	}
	if d.Status() != DrawerOpen {
		return nil, ErrDrawerNotOpen
	}
	scope, err := sys.scopeOf(d)
	if err != nil {
		return nil, err
	}
	checks := scope.scopeChecks()
	if d.IsEmpty(checks) {
		return nil, ErrDrawerEmpty
	}

	d.PullTime = sys.Now()
	d.PullerID = user.ID
	if err := d.Total(checks, true); err != nil {
		d.PullTime, d.PullerID = time.Time{}, 0
		return nil, err
	}
	if err := scope.persistDrawer(d); err != nil {
		d.PullTime, d.PullerID = time.Time{}, 0
		return nil, fmt.Errorf("pull drawer %d: %w", d.Serial, err)
	}

	if d.Number <= 0 {
		return nil, nil
	}
	next, err := sys.NewDrawer(d.Position, d.Host, d.OwnerID, d.Number)
	if err != nil {
		return nil, fmt.Errorf("replace pulled drawer %d: %w", d.Serial, err)
	}
	return next, nil
}

// Balance finishes the count of a pulled drawer. Balanced drawers no longer
// recompute on Total unless forced.
func (d *Drawer) Balance(sys *System, user *Employee) error {
	if sys == nil {
		return ErrNilArgument
	}
	if user == nil || user.ID <= 0 {
		return ErrNoEmployee
	}
	if d.Status() != DrawerPulled {
		return ErrDrawerNotPulled
	}
	scope, err := sys.scopeOf(d)
	if err != nil {
		return err
	}
	if err := d.Total(scope.scopeChecks(), true); err != nil {
		return err
	}
	d.BalanceTime = sys.Now()
	if err := scope.persistDrawer(d); err != nil {
		d.BalanceTime = time.Time{}
		return fmt.Errorf("balance drawer %d: %w", d.Serial, err)
	}
	return nil
}

// AddPayment records a manual payout from an open drawer and retotals it.
func (d *Drawer) AddPayment(sys *System, t TenderType, targetID int, amount int, user *Employee) (*DrawerPayment, error) {
	if sys == nil {
		return nil, ErrNilArgument
	}
	if !t.Valid() {
		return nil, ErrBadTender
	}
	if user == nil || user.ID <= 0 {
		return nil, ErrNoEmployee
	}
	if d.Status() != DrawerOpen {
		return nil, ErrDrawerNotOpen
	}
	scope, err := sys.scopeOf(d)
	if err != nil {
		return nil, err
	}
	dp := &DrawerPayment{
		TenderType: t,
		TargetID:   targetID,
		Amount:     amount,
		UserID:     user.ID,
		Time:       sys.Now(),
	}
	d.Payments = append(d.Payments, dp)
	if err := d.Total(scope.scopeChecks(), false); err != nil {
		return nil, err
	}
	return dp, scope.persistDrawer(d)
}
