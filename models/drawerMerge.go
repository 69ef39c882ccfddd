package models

import (
	"fmt"
)

// MergeServerBanks folds every other balanced server bank of the same owner
// in the drawer's container into d, which must be a balanced server bank
// itself. It returns how many drawers were merged.
func (d *Drawer) MergeServerBanks(sys *System) (int, error) {
	if !d.IsServerBank() {
		return 0, ErrNotServerBank
	}
	if d.Status() != DrawerBalanced {
		return 0, ErrDrawerNotBalanced
	}
	return d.mergeMatching(sys, func(o *Drawer) bool {
		return o.IsServerBank() &&
			o.OwnerID == d.OwnerID &&
			o.Status() == DrawerBalanced
	})
}

// MergeSystems folds the drawers of the same terminal into d, or every other
// drawer of the container when mergeAll is set.
func (d *Drawer) MergeSystems(sys *System, mergeAll bool) (int, error) {
	return d.mergeMatching(sys, func(o *Drawer) bool {
		return mergeAll || o.Host == d.Host
	})
}

func (d *Drawer) mergeMatching(sys *System, match func(o *Drawer) bool) (int, error) {
	if sys == nil {
		return 0, ErrNilArgument
	}
	scope, err := sys.scopeOf(d)
	if err != nil {
		return 0, err
	}

	var siblings []*Drawer
	for _, o := range scope.scopeDrawers() {
		if o == d || o.Serial == d.Serial {
			continue
		}
		if match(o) {
			siblings = append(siblings, o)
		}
	}
	if len(siblings) == 0 {
		return 0, nil
	}

	checks := scope.scopeChecks()
	merged := 0
	for _, o := range siblings {
		if err := d.absorb(scope, checks, o); err != nil {
			return merged, fmt.Errorf("merge drawer %d into %d: %w", o.Serial, d.Serial, err)
		}
		merged++
	}

	if err := d.Total(checks, true); err != nil {
		return merged, err
	}
	return merged, scope.persistDrawer(d)
}

// absorb moves everything o owns onto d and destroys o. Computed amounts are
// not folded since Total rebuilds them from the repointed checks; expenses
// are the exception because Total never recomputes them.
func (d *Drawer) absorb(scope drawerScope, checks []*Check, o *Drawer) error {
	for _, c := range checks {
		repointed := false
		for _, sc := range c.SubChecks {
			if sc.DrawerID == o.Serial {
				sc.DrawerID = d.Serial
				repointed = true
			}
		}
		if repointed {
			if err := scope.persistCheck(c); err != nil {
				return err
			}
		}
	}

	d.Payments = append(d.Payments, o.Payments...)
	o.Payments = nil

	for _, b := range o.Balances {
		target := d.FindBalance(b.TenderType, b.TenderID, true)
		target.Entered += b.Entered
		if b.TenderType == TenderExpense {
			target.Amount += b.Amount
			target.Count += b.Count
		}
	}
	d.MediaBalanced |= o.MediaBalanced

	if !o.StartTime.IsZero() && (d.StartTime.IsZero() || o.StartTime.Before(d.StartTime)) {
		d.StartTime = o.StartTime
	}
	if o.PullTime.After(d.PullTime) && !d.PullTime.IsZero() {
		d.PullTime = o.PullTime
	}
	if o.BalanceTime.After(d.BalanceTime) && !d.BalanceTime.IsZero() {
		d.BalanceTime = o.BalanceTime
	}

	return scope.destroyDrawer(o)
}
