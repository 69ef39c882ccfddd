package models

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingReporter struct {
	contexts []string
	errs     []error
}

func (r *recordingReporter) ReportError(_ string, _ string, context string, _ any, err error) {
	r.contexts = append(r.contexts, context)
	r.errs = append(r.errs, err)
}

func newTestSystem(t *testing.T, opts ...SystemOption) (*System, *testClock) {
	t.Helper()
	clock := &testClock{t: testEpoch}
	opts = append([]SystemOption{WithClock(clock.now), WithHost("term-1")}, opts...)
	sys := NewSystem(t.TempDir(), NewSettings(), opts...)
	if err := sys.LoadLive(); err != nil {
		t.Fatalf("load system: %v", err)
	}
	return sys, clock
}

func cashPayment(amount int) *Payment {
	return &Payment{TenderType: TenderCash, TenderID: NoTenderID, Amount: amount, UserID: 1}
}

// settledCheck returns a closed single-subcheck check settled into drawer.
func settledCheck(serial int, drawer int, payments ...*Payment) *Check {
	return &Check{
		Serial:   serial,
		OwnerID:  1,
		Table:    "T1",
		Guests:   2,
		TimeOpen: testEpoch,
		SubChecks: []*SubCheck{{
			Number:     1,
			Status:     SubCheckClosed,
			DrawerID:   drawer,
			SettleUser: 1,
			SettleTime: testEpoch.Add(time.Hour),
			Orders: []*Order{
				{ItemName: "Burger", ItemFamily: 2, Cost: 1200, Count: 1, Status: OrderFinal},
			},
			Payments: payments,
		}},
	}
}

var testManager = &Employee{ID: 7, Name: "Manager"}
