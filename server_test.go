package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/workflow"
)

var serverEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*gin.Engine, *models.System) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("ENABLE_REPORT_CACHE", "")
	t.Setenv("LEDGER_COLD_STORAGE_ENABLED", "")
	t.Setenv("LEDGER_CATALOG_ENABLED", "")

	sys := models.NewSystem(t.TempDir(), models.NewSettings(),
		models.WithHost("term-1"),
		models.WithClock(func() time.Time { return serverEpoch }))
	if err := sys.LoadLive(); err != nil {
		t.Fatalf("LoadLive: %v", err)
	}
	s := newLedgerServer(sys, workflow.NewArchiveRollover(sys, nil), config.GetLogger())
	return newRouter(s, config.GetLogger()), sys
}

func serve(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func addSale(t *testing.T, sys *models.System, drawer int, amount int) {
	t.Helper()
	c := &models.Check{
		OwnerID:  1,
		TimeOpen: serverEpoch,
		SubChecks: []*models.SubCheck{{
			Number:     1,
			Status:     models.SubCheckClosed,
			DrawerID:   drawer,
			SettleTime: serverEpoch,
			Orders:     []*models.Order{{ItemName: "Soup", Cost: amount, Count: 1, Status: models.OrderFinal}},
			Payments:   []*models.Payment{{TenderType: models.TenderCash, TenderID: models.NoTenderID, Amount: amount}},
		}},
	}
	if err := sys.AddCheck(c); err != nil {
		t.Fatalf("AddCheck: %v", err)
	}
}

func TestRoutesBasic(t *testing.T) {
	r, _ := newTestServer(t)
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusNoContent},
		{http.MethodGet, "/archives", http.StatusOK},
		{http.MethodGet, "/archives/7", http.StatusNotFound},
		{http.MethodGet, "/archives/abc", http.StatusBadRequest},
		{http.MethodGet, "/drawers", http.StatusOK},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
		{http.MethodPost, "/drawers/99/merge-server-banks", http.StatusNotFound},
	}
	for _, tc := range cases {
		if w := serve(r, tc.method, tc.path, nil); w.Code != tc.want {
			t.Fatalf("%s %s = %d, want %d (%s)", tc.method, tc.path, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestDrawerPullAndBalanceRoutes(t *testing.T) {
	r, sys := newTestServer(t)
	d, err := sys.NewDrawer(1, "term-1", 5, 1)
	if err != nil {
		t.Fatalf("NewDrawer: %v", err)
	}
	empty, err := sys.NewDrawer(2, "term-1", 5, 2)
	if err != nil {
		t.Fatalf("NewDrawer: %v", err)
	}
	addSale(t, sys, d.Serial, 800)

	if w := serve(r, http.MethodPost, "/drawers/1/pull", map[string]int{}); w.Code != http.StatusBadRequest {
		t.Fatalf("pull without user = %d", w.Code)
	}
	if w := serve(r, http.MethodPost, pathFor(empty.Serial, "pull"), map[string]int{"user_id": 7}); w.Code != http.StatusConflict {
		t.Fatalf("pull empty drawer = %d, want 409", w.Code)
	}
	if w := serve(r, http.MethodPost, pathFor(d.Serial, "balance"), map[string]int{"user_id": 7}); w.Code != http.StatusConflict {
		t.Fatalf("balance open drawer = %d, want 409", w.Code)
	}

	w := serve(r, http.MethodPost, pathFor(d.Serial, "pull"), map[string]int{"user_id": 7})
	if w.Code != http.StatusOK {
		t.Fatalf("pull = %d (%s)", w.Code, w.Body.String())
	}
	var pulled struct {
		Drawer struct {
			Status        string `json:"status"`
			CashAvailable string `json:"cash_available"`
		} `json:"drawer"`
		Replacement *struct {
			Serial int `json:"serial"`
		} `json:"replacement"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pulled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pulled.Drawer.Status != "pulled" || pulled.Drawer.CashAvailable != "8" || pulled.Replacement == nil {
		t.Fatalf("pull body = %s", w.Body.String())
	}

	if w := serve(r, http.MethodPost, pathFor(d.Serial, "balance"), map[string]int{"user_id": 7}); w.Code != http.StatusOK {
		t.Fatalf("balance = %d (%s)", w.Code, w.Body.String())
	}
	if d.Status() != models.DrawerBalanced {
		t.Fatalf("drawer status = %s", d.Status())
	}
}

func TestSealAndReadArchiveRoutes(t *testing.T) {
	r, sys := newTestServer(t)
	d, _ := sys.NewDrawer(1, "term-1", 5, 1)
	addSale(t, sys, d.Serial, 500)
	if _, err := d.Pull(sys, &models.Employee{ID: 7}); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if err := d.Balance(sys, &models.Employee{ID: 7}); err != nil {
		t.Fatalf("Balance: %v", err)
	}

	end := serverEpoch.Add(12 * time.Hour)
	w := serve(r, http.MethodPost, "/archives/seal", map[string]time.Time{"end": end})
	if w.Code != http.StatusCreated {
		t.Fatalf("seal = %d (%s)", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/archives/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get archive = %d (%s)", w.Code, w.Body.String())
	}
	var summary models.ArchiveSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.ID != 1 || summary.Checks != 1 || summary.Drawers != 1 || !summary.EndTime.Equal(end) {
		t.Fatalf("summary = %+v", summary)
	}

	w = serve(r, http.MethodGet, "/archives", nil)
	var list []models.ArchiveSummary
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list = %s (%v)", w.Body.String(), err)
	}

	if w := serve(r, http.MethodPost, "/archives/seal", map[string]time.Time{"end": serverEpoch}); w.Code != http.StatusConflict {
		t.Fatalf("sealing an earlier end = %d, want 409", w.Code)
	}
}

func TestDrawerReportRoute(t *testing.T) {
	r, sys := newTestServer(t)
	d, _ := sys.NewDrawer(1, "term-1", 5, 1)
	addSale(t, sys, d.Serial, 500)

	w := serve(r, http.MethodGet, "/drawers/report.xlsx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("report body is not an xlsx archive")
	}
}

func TestMergeServerBanksOnSealedArchiveRefused(t *testing.T) {
	r, sys := newTestServer(t)
	var banks []*models.Drawer
	for i := 0; i < 2; i++ {
		d, err := sys.NewDrawer(i+1, "term-1", 5, -1)
		if err != nil {
			t.Fatalf("NewDrawer: %v", err)
		}
		addSale(t, sys, d.Serial, 300)
		if _, err := d.Pull(sys, &models.Employee{ID: 7}); err != nil {
			t.Fatalf("Pull: %v", err)
		}
		if err := d.Balance(sys, &models.Employee{ID: 7}); err != nil {
			t.Fatalf("Balance: %v", err)
		}
		banks = append(banks, d)
	}
	if w := serve(r, http.MethodPost, "/archives/seal", map[string]time.Time{"end": serverEpoch.Add(time.Hour)}); w.Code != http.StatusCreated {
		t.Fatalf("seal = %d (%s)", w.Code, w.Body.String())
	}

	w := serve(r, http.MethodPost, pathFor(banks[0].Serial, "merge-server-banks"), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("merge on sealed archive = %d, want 409 (%s)", w.Code, w.Body.String())
	}
	if a := sys.Archives.Last(); a == nil || len(a.Drawers()) != 2 || a.IsChanged() {
		t.Fatalf("sealed archive changed by a refused merge")
	}
}

func TestSettingsRoutes(t *testing.T) {
	r, sys := newTestServer(t)

	bad := map[string]any{"media": []map[string]any{{"kind": 9, "id": 1, "name": "x"}}}
	if w := serve(r, http.MethodPut, "/settings", bad); w.Code != http.StatusBadRequest {
		t.Fatalf("put unknown media kind = %d, want 400", w.Code)
	}

	body := map[string]any{
		"tax":   map[string]any{"tax_food": 0.07, "price_rounding": 5},
		"media": []map[string]any{{"kind": int(models.MediaDiscount), "id": 1, "name": "Happy Hour", "amount": 10}},
	}
	if w := serve(r, http.MethodPut, "/settings", body); w.Code != http.StatusOK {
		t.Fatalf("put settings = %d (%s)", w.Code, w.Body.String())
	}

	w := serve(r, http.MethodGet, "/settings", nil)
	var got settingsRequest
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tax.TaxFood != 0.07 || got.Tax.PriceRounding != 5 || len(got.Media) != 1 || got.Media[0].Name != "Happy Hour" {
		t.Fatalf("settings = %s", w.Body.String())
	}

	reloaded := models.NewSystem(sys.DataDir, models.NewSettings())
	if err := reloaded.LoadLive(); err != nil {
		t.Fatalf("LoadLive: %v", err)
	}
	if reloaded.Settings.Tax.TaxFood != 0.07 || reloaded.Settings.Media.Find(models.MediaDiscount, 1) == nil {
		t.Fatalf("reloaded settings = %+v", reloaded.Settings)
	}

	if w := serve(r, http.MethodPost, "/archives/seal", map[string]time.Time{"end": serverEpoch.Add(time.Hour)}); w.Code != http.StatusCreated {
		t.Fatalf("seal = %d (%s)", w.Code, w.Body.String())
	}
	a := sys.Archives.Last()
	if a.Tax.TaxFood != 0.07 || a.Media().Find(models.MediaDiscount, 1) == nil {
		t.Fatalf("sealed archive tax=%+v", a.Tax)
	}
}

func pathFor(serial int, action string) string {
	return "/drawers/" + strconv.Itoa(serial) + "/" + action
}
