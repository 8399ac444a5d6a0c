package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backlinkoo/domains/internal/cloudflare"
	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/netlify"
	"backlinkoo/domains/internal/recon"
	"backlinkoo/domains/internal/store"

	"github.com/sirupsen/logrus"
)

// newTestServer wires the router against fake Netlify and Supabase backends.
func newTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()

	netlifyCalls := 0
	fakeNetlify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		netlifyCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "site-123",
			"custom_domain":  "",
			"domain_aliases": []string{"a.com"},
		})
	}))
	t.Cleanup(fakeNetlify.Close)

	fakeSupabase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, "[]")
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(fakeSupabase.Close)

	cfg := &config.Config{
		NetlifyAPIBase:     fakeNetlify.URL,
		NetlifySiteID:      "site-123",
		NetlifyToken:       "tok",
		SupabaseURL:        fakeSupabase.URL,
		SupabaseServiceKey: "svc",
		HTTPTimeout:        5 * time.Second,
		RetryAttempts:      3,
		RetryBaseDelay:     time.Millisecond,
		APIRatePerMin:      1000,
		MaxBodyBytes:       1 << 20,
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	engine := recon.New(cfg, netlify.New(cfg, log), store.New(cfg, log), cloudflare.New(cfg, log), log)
	server := &Server{Config: cfg, Recon: engine, Log: log}
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts, &netlifyCalls
}

func TestDisabledPathsReturn404ForAllMethods(t *testing.T) {
	ts, netlifyCalls := newTestServer(t)

	for _, path := range disabledPaths {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			req, _ := http.NewRequest(method, ts.URL+path, strings.NewReader("{}"))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", method, path, err)
			}
			var body map[string]any
			json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("%s %s: status %d, want 404", method, path, resp.StatusCode)
			}
			if body["success"] != false || body["error"] != "Disabled" {
				t.Errorf("%s %s: body %v", method, path, body)
			}
		}
	}
	if *netlifyCalls != 0 {
		t.Fatal("disabled surface must not reach Netlify")
	}
}

func TestRootGetListsAliases(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/list", "/domains/list", "/functions/v1/domains/list"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var body struct {
			Success bool     `json:"success"`
			Aliases []string `json:"aliases"`
			SiteID  string   `json:"site_id"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !body.Success {
			t.Fatalf("GET %s: status %d body %+v", path, resp.StatusCode, body)
		}
		if len(body.Aliases) != 1 || body.SiteID != "site-123" {
			t.Fatalf("GET %s: unexpected payload %+v", path, body)
		}
	}
}

func TestActionDispatchAdd(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/", "application/json",
		strings.NewReader(`{"action":"ADD","domain":"blog.example.com","user_id":"u1"}`))
	if err != nil {
		t.Fatalf("POST /: %v", err)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("unexpected response: %d %v", resp.StatusCode, body)
	}
}

func TestActionDispatchDisabledActions(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, action := range []string{"validate", "sync_from_db", "sync", "cron_sync"} {
		payload := `{"action":"` + action + `","domain":"a.com"}`
		resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("POST action %s: %v", action, err)
		}
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound || body["error"] != "Disabled" {
			t.Errorf("action %s: status %d body %v", action, resp.StatusCode, body)
		}
	}
}

func TestActionDispatchUnknownAction(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, payload := range []string{`{"action":"frobnicate"}`, `{"action":"add"}`, `{}`} {
		resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("POST /: %v", err)
		}
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest || body["error"] != "Unknown or invalid action" {
			t.Errorf("payload %s: status %d body %v", payload, resp.StatusCode, body)
		}
	}
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Not found" {
		t.Fatalf("unexpected response: %d %v", resp.StatusCode, body)
	}
}

func TestAddEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/add", "application/json",
		strings.NewReader(`{"domain":"HTTPS://My-Blog.Example.org/","user_id":"u1"}`))
	if err != nil {
		t.Fatalf("POST /add: %v", err)
	}
	var body struct {
		Success        bool     `json:"success"`
		UpdatedAliases []string `json:"updatedAliases"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, body)
	}
}

func TestResponsesCarryCORSHeaders(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/list", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /list: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS headers on response")
	}

	// error responses carry them too
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/check", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /check: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS headers on disabled-path response")
	}
}
