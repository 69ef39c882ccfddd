package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	want := NewSettings()
	want.Tax = TaxSettings{TaxFood: 0.07, TaxGST: 0.05, PriceRounding: 5, DiscountAlcohol: 1, TaxVAT: 0.2, AdvertiseFund: 0.015}
	want.Media[MediaCoupon] = []*MediaInfo{{Kind: MediaCoupon, ID: 3, Name: "Two for one", Amount: 500}}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got.Tax != want.Tax {
		t.Fatalf("tax = %+v, want %+v", got.Tax, want.Tax)
	}
	if mi := got.Media.Find(MediaCoupon, 3); mi == nil || mi.Name != "Two for one" || mi.Amount != 500 {
		t.Fatalf("coupon 3 = %+v", mi)
	}
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "none.dat")); !isNotExist(err) {
		t.Fatalf("LoadSettings of missing file err = %v", err)
	}
}

func TestLoadLiveReadsSettings(t *testing.T) {
	sys, _ := newTestSystem(t)
	next := NewSettings()
	next.Tax.TaxFood = 0.08
	next.Media[MediaDiscount] = []*MediaInfo{{Kind: MediaDiscount, ID: 1, Name: "Staff", Amount: 50}}
	if err := sys.UpdateSettings(next); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if err := sys.UpdateSettings(nil); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("UpdateSettings(nil) err = %v", err)
	}

	settings := NewSettings()
	reloaded := NewSystem(sys.DataDir, settings)
	if err := reloaded.LoadLive(); err != nil {
		t.Fatalf("LoadLive: %v", err)
	}
	if reloaded.Settings != settings || settings.Tax.TaxFood != 0.08 || settings.Media.Find(MediaDiscount, 1) == nil {
		t.Fatalf("live settings not loaded in place: %+v", settings.Tax)
	}

	// The archive chain shares the pointer, so old archives see them too.
	path := filepath.Join(t.TempDir(), "old.archive")
	writeV9(t, path)
	a := NewArchive(path, nil)
	if err := a.LoadPacked(reloaded.Settings); err != nil {
		t.Fatalf("LoadPacked: %v", err)
	}
	if a.Tax.TaxFood != 0.08 || a.Media().Find(MediaDiscount, 1) == nil {
		t.Fatalf("old archive tax = %+v", a.Tax)
	}
}

func TestOldArchiveIgnoresUnsetSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.archive")
	writeV9(t, path)

	for _, settings := range []*Settings{nil, NewSettings()} {
		a := NewArchive(path, nil)
		if err := a.LoadPacked(settings); err != nil {
			t.Fatalf("LoadPacked: %v", err)
		}
		for _, alt := range []string{path + ".media", path + ".settings"} {
			if _, err := os.Stat(alt); !os.IsNotExist(err) {
				t.Fatalf("alternate file %s written from unset settings: %v", alt, err)
			}
		}
	}

	live := NewSettings()
	live.Tax.TaxFood = 0.06
	live.Media[MediaComp] = []*MediaInfo{{Kind: MediaComp, ID: 2, Name: "Manager comp"}}
	a := NewArchive(path, nil)
	if err := a.LoadPacked(live); err != nil {
		t.Fatalf("LoadPacked: %v", err)
	}
	if a.Tax.TaxFood != 0.06 || a.Media().Find(MediaComp, 2) == nil {
		t.Fatalf("configured settings not captured: %+v", a.Tax)
	}
	for _, alt := range []string{path + ".media", path + ".settings"} {
		if _, err := os.Stat(alt); err != nil {
			t.Fatalf("alternate file %s not written: %v", alt, err)
		}
	}
}

func TestReadOnlyArchivesSkipLiveSettings(t *testing.T) {
	dir := t.TempDir()
	live := NewSettings()
	live.Tax.TaxFood = 0.09
	if err := live.Save(filepath.Join(dir, SettingsFile)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	archiveDir := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(archiveDir, ArchiveFileName(3))
	writeV9(t, path)

	sys := NewSystem(dir, NewSettings(), WithReadOnlyArchives())
	if err := sys.LoadLive(); err != nil {
		t.Fatalf("LoadLive: %v", err)
	}
	if sys.Settings.Tax.TaxFood != 0.09 {
		t.Fatalf("live settings not loaded: %+v", sys.Settings.Tax)
	}
	a := sys.Archives.FindByID(3)
	if a == nil {
		t.Fatalf("archive 3 not in chain")
	}
	if err := sys.Archives.Load(a); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Tax.TaxFood != 0 {
		t.Fatalf("read-only chain applied live tax %+v", a.Tax)
	}
	if _, err := os.Stat(path + ".settings"); !os.IsNotExist(err) {
		t.Fatalf("read-only chain wrote %s.settings: %v", path, err)
	}
}
