package models

import (
	"github.com/mmdatafocus/pos_ledger/datafile"
)

// SettingsFileVersion is the layout of the live settings file and of the
// standalone alternate settings and alternate media files.
const SettingsFileVersion = 1

// SettingsFile holds the live settings under the data directory.
const SettingsFile = "settings.dat"

// TaxSettings is the tax and rounding configuration an archive freezes at
// seal time so reports against it never drift with the live settings.
type TaxSettings struct {
	TaxFood        float64 `json:"tax_food"`
	TaxAlcohol     float64 `json:"tax_alcohol"`
	TaxRoom        float64 `json:"tax_room"`
	TaxMerchandise float64 `json:"tax_merchandise"`
	TaxGST         float64 `json:"tax_gst"`
	TaxPST         float64 `json:"tax_pst"`
	TaxHST         float64 `json:"tax_hst"`
	TaxQST         float64 `json:"tax_qst"`
	RoyaltyRate    float64 `json:"royalty_rate"`

	PriceRounding       int `json:"price_rounding"`
	ChangeForChecks     int `json:"change_for_checks"`
	ChangeForCredit     int `json:"change_for_credit"`
	ChangeForGift       int `json:"change_for_gift"`
	ChangeForRoomCharge int `json:"change_for_room_charge"`
	DiscountAlcohol     int `json:"discount_alcohol"`

	TaxVAT        float64 `json:"tax_vat"`
	AdvertiseFund float64 `json:"advertise_fund"`
}

// Settings is the live configuration the ledger consults: current tax
// settings and the current media catalog.
type Settings struct {
	Tax   TaxSettings
	Media MediaCatalog
}

func NewSettings() *Settings {
	return &Settings{}
}

// LoadSettings reads a live settings file written by Save.
func LoadSettings(path string) (*Settings, error) {
	s := NewSettings()
	err := datafile.ReadFile(path, func(r *datafile.Reader) error {
		if err := checkRecordVersion(r, "settings", r.Version(), SettingsFileVersion); err != nil {
			return err
		}
		if err := s.Tax.readScalars(r); err != nil {
			return err
		}
		s.Tax.TaxVAT = r.Float()
		s.Tax.AdvertiseFund = r.Float()
		if err := r.Err(); err != nil {
			return err
		}
		return readMediaCatalog(r, r.Version(), func(mi *MediaInfo) {
			s.Media[mi.Kind] = append(s.Media[mi.Kind], mi)
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Save(path string) error {
	return datafile.WriteFileAtomic(path, SettingsFileVersion, func(w *datafile.Writer) error {
		s.Tax.writeScalars(w)
		w.Float(s.Tax.TaxVAT)
		w.Float(s.Tax.AdvertiseFund)
		s.Media.write(w)
		return w.Err()
	})
}

// Unset reports whether no tax setting was ever configured.
func (t TaxSettings) Unset() bool { return t == TaxSettings{} }

// the 15 scalars stored from archive version 11 on
func (t *TaxSettings) writeScalars(w *datafile.Writer) {
	w.Float(t.TaxFood)
	w.Float(t.TaxAlcohol)
	w.Float(t.TaxRoom)
	w.Float(t.TaxMerchandise)
	w.Float(t.TaxGST)
	w.Float(t.TaxPST)
	w.Float(t.TaxHST)
	w.Float(t.TaxQST)
	w.Float(t.RoyaltyRate)
	w.Int(t.PriceRounding)
	w.Int(t.ChangeForChecks)
	w.Int(t.ChangeForCredit)
	w.Int(t.ChangeForGift)
	w.Int(t.ChangeForRoomCharge)
	w.Int(t.DiscountAlcohol)
}

func (t *TaxSettings) readScalars(r *datafile.Reader) error {
	var s TaxSettings
	s.TaxFood = r.Float()
	s.TaxAlcohol = r.Float()
	s.TaxRoom = r.Float()
	s.TaxMerchandise = r.Float()
	s.TaxGST = r.Float()
	s.TaxPST = r.Float()
	s.TaxHST = r.Float()
	s.TaxQST = r.Float()
	s.RoyaltyRate = r.Float()
	s.PriceRounding = r.Int()
	s.ChangeForChecks = r.Int()
	s.ChangeForCredit = r.Int()
	s.ChangeForGift = r.Int()
	s.ChangeForRoomCharge = r.Int()
	s.DiscountAlcohol = r.Int()
	if err := r.Err(); err != nil {
		return err
	}
	s.TaxVAT, s.AdvertiseFund = t.TaxVAT, t.AdvertiseFund
	*t = s
	return nil
}

// alternate settings file: the 15 scalars plus VAT and advertise fund
func writeAltSettings(path string, t *TaxSettings) error {
	return datafile.WriteFileAtomic(path, SettingsFileVersion, func(w *datafile.Writer) error {
		t.writeScalars(w)
		w.Float(t.TaxVAT)
		w.Float(t.AdvertiseFund)
		return w.Err()
	})
}

func readAltSettings(path string) (TaxSettings, error) {
	var t TaxSettings
	err := datafile.ReadFile(path, func(r *datafile.Reader) error {
		if err := t.readScalars(r); err != nil {
			return err
		}
		t.TaxVAT = r.Float()
		t.AdvertiseFund = r.Float()
		return r.Err()
	})
	return t, err
}

func writeAltMedia(path string, m *MediaCatalog) error {
	return datafile.WriteFileAtomic(path, SettingsFileVersion, func(w *datafile.Writer) error {
		m.write(w)
		return w.Err()
	})
}

func readAltMedia(path string) (MediaCatalog, error) {
	var m MediaCatalog
	err := datafile.ReadFile(path, func(r *datafile.Reader) error {
		return readMediaCatalog(r, r.Version(), func(mi *MediaInfo) {
			m[mi.Kind] = append(m[mi.Kind], mi)
		})
	})
	return m, err
}
