package linkserver_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/navkit-dev/navkit/engine"
	"github.com/navkit-dev/navkit/host"
	"github.com/navkit-dev/navkit/linkserver"
	"github.com/navkit-dev/navkit/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shopConfig() *engine.Config {
	return &engine.Config{
		Routes:   []string{"/home", "/product/:id"},
		Prefixes: []string{"https://shop.example.com"},
		Links:    []engine.LinkConfig{{Templates: []string{"/product/:id"}}},
	}
}

func newTestServer(t *testing.T, cfg *engine.Config) (*engine.Engine, *httptest.Server) {
	t.Helper()

	nav := host.NewMemoryNavigator()
	e, err := engine.New(cfg,
		engine.WithNavigator(nav),
		engine.WithObserver(observability.NoOpObserver{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })

	srv := linkserver.NewServer(e, linkserver.WithLogger(discardLogger()))
	r := chi.NewRouter()
	srv.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return e, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Post(%s) error = %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get(%s) status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
}

func TestServer_Open(t *testing.T) {
	e, ts := newTestServer(t, shopConfig())

	resp := postJSON(t, ts.URL+"/open", `{"url": "https://shop.example.com/product/42?ref=mail"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /open status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Matches []struct {
			Template    string            `json:"template"`
			PathParams  map[string]string `json:"path_params"`
			QueryParams map[string]string `json:"query_params"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding /open response: %v", err)
	}
	if len(body.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(body.Matches))
	}
	m := body.Matches[0]
	if m.Template != "/product/:id" {
		t.Errorf("template = %q, want %q", m.Template, "/product/:id")
	}
	if m.PathParams["id"] != "42" {
		t.Errorf("path_params[id] = %q, want %q", m.PathParams["id"], "42")
	}
	if m.QueryParams["ref"] != "mail" {
		t.Errorf("query_params[ref] = %q, want %q", m.QueryParams["ref"], "mail")
	}

	// The default binding redirects into the engine.
	if e.Depth() != 1 {
		t.Errorf("Depth() = %d after open, want 1", e.Depth())
	}
}

func TestServer_Open_BadRequest(t *testing.T) {
	_, ts := newTestServer(t, shopConfig())

	if resp := postJSON(t, ts.URL+"/open", `{"url":`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if resp := postJSON(t, ts.URL+"/open", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestServer_History(t *testing.T) {
	e, ts := newTestServer(t, shopConfig())
	ctx := context.Background()

	e.Push(ctx, "/home", nil)
	e.Push(ctx, "/product/:id", map[string]any{"id": "7"})

	var body struct {
		Depth int `json:"depth"`
		Steps []struct {
			Path  string         `json:"path"`
			Extra map[string]any `json:"extra"`
		} `json:"steps"`
	}
	getJSON(t, ts.URL+"/history", &body)

	if body.Depth != 2 {
		t.Fatalf("depth = %d, want 2", body.Depth)
	}
	if body.Steps[0].Path != "/home" || body.Steps[1].Path != "/product/:id" {
		t.Errorf("paths = [%s, %s], want [/home, /product/:id]", body.Steps[0].Path, body.Steps[1].Path)
	}
	if body.Steps[1].Extra["id"] != "7" {
		t.Errorf("extra[id] = %v, want %q", body.Steps[1].Extra["id"], "7")
	}
}

func TestServer_Routes(t *testing.T) {
	_, ts := newTestServer(t, shopConfig())

	var body struct {
		Routes []string `json:"routes"`
	}
	getJSON(t, ts.URL+"/routes", &body)

	want := []string{"/home", "/product/:id"}
	if len(body.Routes) != len(want) {
		t.Fatalf("got %d routes, want %d", len(body.Routes), len(want))
	}
	for i, p := range want {
		if body.Routes[i] != p {
			t.Errorf("routes[%d] = %q, want %q", i, body.Routes[i], p)
		}
	}
}

func TestServer_Navigate(t *testing.T) {
	e, ts := newTestServer(t, shopConfig())

	resp := postJSON(t, ts.URL+"/navigate", `{"path": "/home"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /navigate status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	var body struct {
		Depth int `json:"depth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding /navigate response: %v", err)
	}
	if body.Depth != 1 {
		t.Errorf("depth = %d, want 1", body.Depth)
	}
	if e.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", e.Depth())
	}
}

func TestServer_Navigate_BadRequest(t *testing.T) {
	_, ts := newTestServer(t, shopConfig())

	if resp := postJSON(t, ts.URL+"/navigate", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if resp := postJSON(t, ts.URL+"/navigate", `{"extra": {"a": 1}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing path status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestServer_Metrics(t *testing.T) {
	e, ts := newTestServer(t, shopConfig())
	ctx := context.Background()

	e.Push(ctx, "/home", nil)
	e.Push(ctx, "/product/:id", nil)
	e.Pop(ctx, nil)

	var body struct {
		Pushes int64 `json:"pushes"`
		Pops   int64 `json:"pops"`
	}
	getJSON(t, ts.URL+"/metrics", &body)

	if body.Pushes != 2 {
		t.Errorf("pushes = %d, want 2", body.Pushes)
	}
	if body.Pops != 1 {
		t.Errorf("pops = %d, want 1", body.Pops)
	}
}

func TestServer_EventsStream(t *testing.T) {
	bridge := linkserver.NewStreamBridge()
	nav := host.NewMemoryNavigator()
	e, err := engine.New(&engine.Config{Routes: []string{"/home"}},
		engine.WithNavigator(nav),
		engine.WithObserver(bridge),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })

	srv := linkserver.NewServer(e,
		linkserver.WithLogger(discardLogger()),
		linkserver.WithBridge(bridge),
	)
	r := chi.NewRouter()
	srv.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", wsURL, err)
	}
	defer conn.Close()

	// The handler subscribes after the handshake completes; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Bridge().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.Push(context.Background(), "/home", nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var payload struct {
			Type   string         `json:"type"`
			Level  string         `json:"level"`
			Scope  string         `json:"scope"`
			Fields map[string]any `json:"fields"`
		}
		if err := conn.ReadJSON(&payload); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if payload.Type != "nav.history.push" {
			continue
		}
		if payload.Fields["path"] != "/home" {
			t.Errorf("fields[path] = %v, want %q", payload.Fields["path"], "/home")
		}
		if payload.Scope != "history.Reconciler" {
			t.Errorf("scope = %q, want %q", payload.Scope, "history.Reconciler")
		}
		return
	}
}
