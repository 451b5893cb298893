package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/modfed/fedhost/adapters/clock"
	"github.com/modfed/fedhost/adapters/idgen"
	"github.com/modfed/fedhost/adapters/memory"
	"github.com/modfed/fedhost/adapters/metrics"
	"github.com/modfed/fedhost/app"
	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/domain/share"
)

// stubEntries serves canned containers and errors by remote name.
type stubEntries struct {
	containers map[string]entry.Container
	errs       map[string]error
}

func (s *stubEntries) LoadEntry(ctx context.Context, d manifest.Descriptor) (entry.Container, error) {
	if err, ok := s.errs[d.Name]; ok {
		return nil, err
	}
	c, ok := s.containers[d.Name]
	if !ok {
		return nil, &entry.UnreachableError{Remote: d.Name, Location: d.EntryLocation, Err: errors.New("not stubbed")}
	}
	return c, nil
}

type webFixture struct {
	handler    *Handler
	server     *httptest.Server
	entries    *stubEntries
	negotiator *share.Negotiator
	manifests  *app.ManifestService
}

func newWebFixture(t *testing.T, descs []manifest.Descriptor) *webFixture {
	t.Helper()
	m, err := manifest.New("test", descs)
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	holder := manifest.NewHolder(m)
	entries := &stubEntries{
		containers: make(map[string]entry.Container),
		errs:       make(map[string]error),
	}
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	negotiator := share.NewNegotiator(zerolog.Nop(), clk)

	loader := app.NewLoaderService(app.LoaderDeps{
		Manifests:  holder,
		Entries:    entries,
		Registry:   memory.NewContainerRegistry(),
		Negotiator: negotiator,
		Clock:      clk,
		IDGen:      idgen.NewSequential("load-"),
		Logger:     zerolog.Nop(),
	})
	manifests := app.NewManifestService(app.ManifestDeps{
		Holder: holder,
		Static: descs,
		Logger: zerolog.Nop(),
	})

	h := NewHandler(Deps{
		Loader:     loader,
		Manifests:  manifests,
		Negotiator: negotiator,
		Metrics:    metrics.NewWith(prometheus.NewRegistry()),
		HostName:   "storefront",
		Logger:     zerolog.Nop(),
		Clock:      clk,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return &webFixture{
		handler:    h,
		server:     srv,
		entries:    entries,
		negotiator: negotiator,
		manifests:  manifests,
	}
}

func (fx *webFixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(fx.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp, body
}

func staticFactory(values entry.Exports) entry.Factory {
	return func(ctx context.Context) (entry.Exports, error) { return values, nil }
}

func TestHealth(t *testing.T) {
	fx := newWebFixture(t, nil)
	resp, body := fx.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestStatus(t *testing.T) {
	fx := newWebFixture(t, []manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
	})
	fx.entries.containers["shop"] = memory.NewStaticContainer("shop", nil, map[string]entry.Factory{
		"./ProductList": staticFactory(entry.Exports{"render": "v1"}),
	})

	if _, err := http.Get(fx.server.URL + "/api/modules/shop?alias=./ProductList"); err != nil {
		t.Fatal(err)
	}

	resp, body := fx.get(t, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["host"] != "storefront" {
		t.Errorf("host = %v", body["host"])
	}
	if body["cached_modules"] != float64(1) {
		t.Errorf("cached_modules = %v", body["cached_modules"])
	}
	remotes, ok := body["remotes"].([]any)
	if !ok || len(remotes) != 1 {
		t.Fatalf("remotes = %v", body["remotes"])
	}
	shop := remotes[0].(map[string]any)
	if shop["loaded"] != true {
		t.Errorf("shop = %v", shop)
	}
}

func TestLoadModule(t *testing.T) {
	fx := newWebFixture(t, []manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
	})
	fx.entries.containers["shop"] = memory.NewStaticContainer("shop", nil, map[string]entry.Factory{
		"./ProductList": staticFactory(entry.Exports{"render": "v1"}),
	})

	resp, body := fx.get(t, "/api/modules/shop?alias=./ProductList")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["render"] != "v1" {
		t.Errorf("body = %v", body)
	}
}

func TestLoadModuleMissingAlias(t *testing.T) {
	fx := newWebFixture(t, []manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
	})

	resp, _ := fx.get(t, "/api/modules/shop")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoadModuleErrorMapping(t *testing.T) {
	fx := newWebFixture(t, []manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
		{Name: "down", EntryLocation: "https://cdn/down/entry.json"},
		{Name: "broken", EntryLocation: "https://cdn/broken/entry.json"},
		{Name: "clash", EntryLocation: "https://cdn/clash/entry.json"},
	})
	fx.entries.containers["shop"] = memory.NewStaticContainer("shop", nil, map[string]entry.Factory{
		"./ProductList": staticFactory(entry.Exports{"render": "v1"}),
	})
	fx.entries.errs["down"] = &entry.UnreachableError{Remote: "down", Location: "https://cdn/down/entry.json", Status: 503}
	fx.entries.errs["broken"] = &entry.MalformedError{Remote: "broken", Reason: "entry exposes no modules"}

	// Seed a strict host requirement, then offer a disjoint strict range.
	err := fx.negotiator.Register(context.Background(), "host", []share.Offer{{
		Requirement: share.Requirement{Package: "utils", RequiredVersion: "^1.0.0", Singleton: true, StrictVersion: true},
		Version:     "1.0.0",
		Provider:    func(ctx context.Context) (any, error) { return "one", nil },
	}})
	if err != nil {
		t.Fatalf("host register: %v", err)
	}
	fx.entries.containers["clash"] = memory.NewStaticContainer("clash", []share.Offer{{
		Requirement: share.Requirement{Package: "utils", RequiredVersion: "^2.0.0", Singleton: true, StrictVersion: true},
		Version:     "2.0.0",
		Provider:    func(ctx context.Context) (any, error) { return "two", nil },
	}}, map[string]entry.Factory{
		"./M": staticFactory(entry.Exports{}),
	})

	cases := []struct {
		path string
		want int
	}{
		{"/api/modules/ghost?alias=./M", http.StatusNotFound},
		{"/api/modules/shop?alias=./Missing", http.StatusNotFound},
		{"/api/modules/clash?alias=./M", http.StatusConflict},
		{"/api/modules/down?alias=./M", http.StatusBadGateway},
		{"/api/modules/broken?alias=./M", http.StatusBadGateway},
	}
	for _, tc := range cases {
		resp, body := fx.get(t, tc.path)
		if resp.StatusCode != tc.want {
			t.Errorf("GET %s status = %d, want %d (%v)", tc.path, resp.StatusCode, tc.want, body["error"])
		}
	}
}

func TestManifestRefresh(t *testing.T) {
	fx := newWebFixture(t, []manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
	})

	fx.manifests.SetStatic([]manifest.Descriptor{
		{Name: "shop", EntryLocation: "https://cdn/shop/entry.json"},
		{Name: "cart", EntryLocation: "https://cdn/cart/entry.json"},
	})

	resp, err := http.Post(fx.server.URL+"/api/manifest/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var remotes []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&remotes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(remotes) != 2 {
		t.Errorf("remotes = %d, want 2", len(remotes))
	}
}
