package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
)

type recordedCommands struct {
	mu   sync.Mutex
	cmds []LifecycleCommand
	err  error
}

func (r *recordedCommands) send(cmd LifecycleCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recordedCommands) list() []LifecycleCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LifecycleCommand(nil), r.cmds...)
}

func storeStatus(t *testing.T, c *statusCache, s telemetry.Status) {
	t.Helper()
	payload, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.store(payload); err != nil {
		t.Fatal(err)
	}
}

func TestStatusHandler(t *testing.T) {
	cache := &statusCache{}
	h := statusHandler(cache)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before data: got %d", rec.Code)
	}

	storeStatus(t, cache, telemetry.Status{
		Time:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		State:   "done",
		Command: control.Command{Steer: 0.25},
		Flags:   arbiter.Flags{Lateral: true},
	})

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	got, err := telemetry.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.Command.Steer != 0.25 || !got.Flags.Lateral || got.State != "done" {
		t.Fatalf("got %+v", got)
	}
}

func TestStatusCacheKeepsLastOnGarbage(t *testing.T) {
	cache := &statusCache{}
	storeStatus(t, cache, telemetry.Status{State: "sweep_left"})
	if err := cache.store([]byte("{")); err == nil {
		t.Fatal("garbage accepted")
	}
	st, seq := cache.get()
	if seq != 1 || st.State != "sweep_left" {
		t.Fatalf("got %q seq %d", st.State, seq)
	}
}

func TestCommandHandler(t *testing.T) {
	cases := map[string]struct {
		method string
		body   string
		code   int
	}{
		"accepted":     {method: http.MethodPost, body: `{"action":"toggle_autopilot"}`, code: http.StatusAccepted},
		"wrong method": {method: http.MethodGet, code: http.StatusMethodNotAllowed},
		"bad json":     {method: http.MethodPost, body: `{`, code: http.StatusBadRequest},
		"bad action":   {method: http.MethodPost, body: `{"action":"launch"}`, code: http.StatusBadRequest},
	}
	for name, tc := range cases {
		rc := &recordedCommands{}
		rec := httptest.NewRecorder()
		commandHandler(rc.send)(rec, httptest.NewRequest(tc.method, "/api/command", strings.NewReader(tc.body)))
		if rec.Code != tc.code {
			t.Errorf("%s: got %d, want %d", name, rec.Code, tc.code)
		}
		if n := len(rc.list()); (tc.code == http.StatusAccepted) != (n == 1) {
			t.Errorf("%s: %d commands sent", name, n)
		}
	}

	rc := &recordedCommands{err: errors.New("broker down")}
	rec := httptest.NewRecorder()
	commandHandler(rc.send)(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"action":"reset"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("send failure: got %d", rec.Code)
	}
}

func dialControl(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestControlWebSocketForwardsActions(t *testing.T) {
	rc := &recordedCommands{}
	conn := dialControl(t, controlHandler(&statusCache{}, rc.send))

	if err := conn.WriteJSON(WSMessage{Action: ActionSetEvasive, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	var resp WSResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "ack" || resp.Action != ActionSetEvasive {
		t.Fatalf("got %+v", resp)
	}
	got := rc.list()
	if len(got) != 1 || got[0] != (LifecycleCommand{Action: ActionSetEvasive, Enabled: true}) {
		t.Fatalf("forwarded %+v", got)
	}

	if err := conn.WriteJSON(WSMessage{Action: "launch"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "error" {
		t.Fatalf("unknown action: got %+v", resp)
	}
}

func TestControlWebSocketPushesStatus(t *testing.T) {
	cache := &statusCache{}
	storeStatus(t, cache, telemetry.Status{State: "done", Interventions: 3})
	conn := dialControl(t, controlHandler(cache, (&recordedCommands{}).send))

	var resp WSResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "status" || resp.Status == nil || resp.Status.Interventions != 3 {
		t.Fatalf("got %+v", resp)
	}
}

func TestFormatStatus(t *testing.T) {
	line := formatStatus(telemetry.Status{
		Autopilot:    true,
		State:        "done",
		Notification: "restricts: Lateral",
	})
	for _, want := range []string{"[AUTO", "done", "[no wheel]", "! restricts: Lateral"} {
		if !strings.Contains(line, want) {
			t.Errorf("%q missing %q", line, want)
		}
	}
}
