package models

import "fmt"

// Total recomputes every balance of the drawer from the checks settled into
// it and from its manual payments. Entered amounts are left alone, as is the
// expense balance, which is maintained as expenses are entered.
//
// A balanced drawer is frozen; pass force to recompute it anyway.
func (d *Drawer) Total(checks []*Check, force bool) error {
	if d.Status() == DrawerBalanced && !force {
		return nil
	}
	if err := d.validateTenders(checks); err != nil {
		return err
	}

	for _, b := range d.Balances {
		if b.TenderType == TenderExpense {
			continue
		}
		b.Amount = 0
		b.Count = 0
	}
	d.TotalChecks = 0
	d.TotalPayments = 0

	cash := d.FindBalance(TenderCash, NoTenderID, true)
	for _, c := range checks {
		if c == nil || c.IsTraining() {
			continue
		}
		counted := false
		for _, sc := range c.SubChecks {
			if sc.DrawerID != d.Serial {
				continue
			}
			counted = true
			for _, o := range sc.Orders {
				if o.IsFinal() && o.IsComp() && !o.IsVoid() {
					d.addTender(cash, TenderItemComp, NoTenderID, o.Total())
				}
			}
			for _, p := range sc.Payments {
				d.addTender(cash, p.TenderType, p.TenderID, p.Amount)
				d.TotalPayments++
			}
		}
		if counted {
			d.TotalChecks++
		}
	}

	for _, dp := range d.Payments {
		d.addTender(cash, dp.TenderType, NoTenderID, dp.Amount)
	}

	expense := d.FindBalance(TenderExpense, NoTenderID, true)
	avail := d.FindBalance(TenderCashAvail, NoTenderID, true)
	avail.Amount = cash.Amount - expense.Amount
	avail.Entered = cash.Entered - expense.Entered

	d.TotalDifference = 0
	for _, b := range d.Balances {
		if d.IsBalanced(b.TenderType) {
			d.TotalDifference += b.Entered - b.Amount
		}
	}
	return nil
}

// validateTenders rejects the total before any balance is touched.
func (d *Drawer) validateTenders(checks []*Check) error {
	for _, c := range checks {
		if c == nil || c.IsTraining() {
			continue
		}
		for _, sc := range c.SubChecks {
			if sc.DrawerID != d.Serial {
				continue
			}
			for _, p := range sc.Payments {
				if !p.TenderType.Valid() {
					return fmt.Errorf("%w: check %d pays with tender %d", ErrBadTender, c.Serial, int(p.TenderType))
				}
			}
		}
	}
	for _, dp := range d.Payments {
		if !dp.TenderType.Valid() {
			return fmt.Errorf("%w: drawer payment tender %d", ErrBadTender, int(dp.TenderType))
		}
	}
	return nil
}

// addTender folds one amount into its bucket. Change given back and tips
// paid out both leave the cash balance.
func (d *Drawer) addTender(cash *DrawerBalance, t TenderType, id int, amount int) {
	if !t.HasSubID() {
		id = NoTenderID
	}
	b := d.FindBalance(t, id, true)
	b.Amount += amount
	b.Count++
	if t == TenderChange || t == TenderPaidTip {
		cash.Amount -= amount
	}
}

// hasActivity reports whether anything would land in the drawer on Total.
func (d *Drawer) hasActivity(checks []*Check) bool {
	if len(d.Payments) > 0 {
		return true
	}
	if d.Amount(TenderExpense, NoTenderID) != 0 {
		return true
	}
	for _, c := range checks {
		if c != nil && !c.IsTraining() && c.UsesDrawer(d.Serial) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the drawer carries no settled checks, payouts or
// expenses.
func (d *Drawer) IsEmpty(checks []*Check) bool { return !d.hasActivity(checks) }
