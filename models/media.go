package models

import (
	"fmt"

	"github.com/mmdatafocus/pos_ledger/datafile"
)

// MediaVersion is the record layout written for media catalog rows.
const MediaVersion = 1

// MaxMediaRows bounds each media table in an archive.
const MaxMediaRows = 1000

type MediaKind int

const (
	MediaDiscount MediaKind = iota
	MediaCoupon
	MediaCreditCard
	MediaComp
	MediaMeal

	mediaKindCount
)

var mediaKindNames = [...]string{
	MediaDiscount:   "discount",
	MediaCoupon:     "coupon",
	MediaCreditCard: "creditcard",
	MediaComp:       "comp",
	MediaMeal:       "meal",
}

func (k MediaKind) String() string {
	if k >= 0 && k < mediaKindCount {
		return mediaKindNames[k]
	}
	return fmt.Sprintf("media(%d)", int(k))
}

func (k MediaKind) Valid() bool { return k >= 0 && k < mediaKindCount }

// MediaKinds lists the catalogs in file order.
func MediaKinds() []MediaKind {
	return []MediaKind{MediaDiscount, MediaCoupon, MediaCreditCard, MediaComp, MediaMeal}
}

// MediaInfo is one house-defined discount, coupon, card brand, comp or
// employee meal type.
type MediaInfo struct {
	Kind   MediaKind
	ID     int
	Name   string
	Amount int
	Flags  int
}

// MediaCatalog holds the five media tables.
type MediaCatalog [mediaKindCount][]*MediaInfo

func (m *MediaCatalog) Find(kind MediaKind, id int) *MediaInfo {
	if !kind.Valid() {
		return nil
	}
	for _, mi := range m[kind] {
		if mi.ID == id {
			return mi
		}
	}
	return nil
}

func (m *MediaCatalog) Empty() bool {
	for k := range m {
		if len(m[k]) > 0 {
			return false
		}
	}
	return true
}

// Clone deep-copies the catalog so a snapshot never aliases live rows.
func (m *MediaCatalog) Clone() MediaCatalog {
	var out MediaCatalog
	for k := range m {
		for _, mi := range m[k] {
			cp := *mi
			out[k] = append(out[k], &cp)
		}
	}
	return out
}

func (m *MediaCatalog) write(w *datafile.Writer) {
	for _, kind := range MediaKinds() {
		w.Int(len(m[kind]))
		for _, mi := range m[kind] {
			w.Int(mi.ID)
			w.String(mi.Name)
			w.Int(mi.Amount)
			w.Int(mi.Flags)
		}
	}
}

// readMediaCatalog reads five tables, calling add for each row.
func readMediaCatalog(r *datafile.Reader, _ int, add func(*MediaInfo)) error {
	for _, kind := range MediaKinds() {
		n, err := r.Count(MaxMediaRows)
		if err != nil {
			return fmt.Errorf("%s table: %w", kind, err)
		}
		for i := 0; i < n; i++ {
			mi := &MediaInfo{
				Kind:   kind,
				ID:     r.Int(),
				Name:   r.String(),
				Amount: r.Int(),
				Flags:  r.Int(),
			}
			if err := r.Err(); err != nil {
				return fmt.Errorf("%s table: %w", kind, err)
			}
			add(mi)
		}
	}
	return nil
}
