package models

import "fmt"

type TenderType int

const (
	TenderCash TenderType = iota
	TenderCheck
	TenderChargeCard
	TenderCoupon
	TenderGiftCertificate
	TenderComp
	TenderAccount
	TenderChargeRoom
	TenderDiscount
	TenderCaptainTip
	TenderEmployeeMeal
	TenderCreditCard
	TenderDebitCard
	TenderChange
	TenderGratuity
	TenderMoneyLost
	TenderItemComp
	TenderPaidTip
	TenderExpense
	TenderCashAvail
	TenderOverage
	TenderChargedTip

	tenderTypeCount
)

// NoTenderID keys the type-wide balance of a tender type.
const NoTenderID = -1

var tenderNames = [...]string{
	TenderCash:            "Cash",
	TenderCheck:           "Check",
	TenderChargeCard:      "Charge Card",
	TenderCoupon:          "Coupon",
	TenderGiftCertificate: "Gift Certificate",
	TenderComp:            "Comp",
	TenderAccount:         "Account",
	TenderChargeRoom:      "Room Charge",
	TenderDiscount:        "Discount",
	TenderCaptainTip:      "Captain Tip",
	TenderEmployeeMeal:    "Employee Meal",
	TenderCreditCard:      "Credit Card",
	TenderDebitCard:       "Debit Card",
	TenderChange:          "Change",
	TenderGratuity:        "Gratuity",
	TenderMoneyLost:       "Money Lost",
	TenderItemComp:        "Item Comp",
	TenderPaidTip:         "Paid Tip",
	TenderExpense:         "Expense",
	TenderCashAvail:       "Cash Available",
	TenderOverage:         "Overage",
	TenderChargedTip:      "Charged Tip",
}

func (t TenderType) String() string {
	if t >= 0 && int(t) < len(tenderNames) {
		return tenderNames[t]
	}
	return fmt.Sprintf("Tender(%d)", int(t))
}

func (t TenderType) Valid() bool {
	return t >= 0 && t < tenderTypeCount
}

// HasSubID reports whether payments of this type are balanced per
// (type, id) rather than type-wide. The id is the card brand, coupon,
// comp, discount or meal it refers to.
func (t TenderType) HasSubID() bool {
	switch t {
	case TenderChargeCard, TenderCreditCard, TenderDebitCard,
		TenderCoupon, TenderComp, TenderDiscount, TenderEmployeeMeal:
		return true
	}
	return false
}

// Bit is the tender's flag in Drawer.MediaBalanced.
func (t TenderType) Bit() uint64 {
	return uint64(1) << uint(t)
}

// TenderTypes lists every tender type in ledger order.
func TenderTypes() []TenderType {
	out := make([]TenderType, 0, tenderTypeCount)
	for t := TenderType(0); t < tenderTypeCount; t++ {
		out = append(out, t)
	}
	return out
}
