package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davidealbano/aria/internal/app"
	"github.com/davidealbano/aria/internal/config"
	"github.com/davidealbano/aria/internal/memory"
	"github.com/davidealbano/aria/internal/session"
	"github.com/davidealbano/aria/internal/tagger"
	"github.com/davidealbano/aria/internal/tagstore"
)

type stubGen struct {
	reply string
}

func (s *stubGen) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "TAGS:") {
		return "TAGS: [work]\nEMOTION: stressed\nINTENSITY: 7", nil
	}
	return s.reply, nil
}

type testEnv struct {
	srv     *httptest.Server
	mem     *memory.Manager
	gateway *tagstore.InMemoryGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		SessionInactivityTimeout: time.Minute,
		CompressThreshold:        10,
		CompressLookback:         15,
	}
	gen := &stubGen{reply: "TOPIC: work stress\nEMOTION: stressed\nSUMMARY: A rough week."}
	mem := memory.NewManager(memory.NewInMemoryStore(), gen, nil, nil, memory.Options{
		CompressEvery: cfg.CompressThreshold,
		Lookback:      cfg.CompressLookback,
	})
	gateway := tagstore.NewInMemoryGateway()
	tg := tagger.New(gen, nil, nil, tagger.Options{})
	finalizer := &app.Finalizer{Memory: mem, Tagger: tg, Gateway: gateway}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetEndHook(func(s *session.Session) {
		finalizer.Finalize(context.Background(), s.UserID, s.ID)
	})

	api := New(cfg, sessions, mem, finalizer, gateway, nil)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, mem: mem, gateway: gateway}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	res, err := http.Post(e.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response from %s: %v", path, err)
	}
	return res, out
}

func (e *testEnv) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response from %s: %v", path, err)
	}
	return res, out
}

func (e *testEnv) createSession(t *testing.T, userID string) string {
	t.Helper()
	res, out := e.postJSON(t, "/v1/sessions", map[string]string{"user_id": userID})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", res.StatusCode)
	}
	id, _ := out["session_id"].(string)
	if id == "" {
		t.Fatalf("create session response missing session_id: %v", out)
	}
	return id
}

func TestCreateSessionInitializesBuffer(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t, "u1")

	res, _ := e.getJSON(t, "/v1/sessions/"+id+"/buffer")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("buffer status = %d, want 200", res.StatusCode)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t, "u1")

	res, out := e.postJSON(t, "/v1/sessions/"+id+"/messages", map[string]string{"role": "system", "content": "hi"})
	if res.StatusCode != http.StatusBadRequest || out["code"] != "invalid_role" {
		t.Fatalf("bad role: status %d, body %v", res.StatusCode, out)
	}

	res, out = e.postJSON(t, "/v1/sessions/"+id+"/messages", map[string]string{"role": "user", "content": "  "})
	if res.StatusCode != http.StatusBadRequest || out["code"] != "empty_content" {
		t.Fatalf("empty content: status %d, body %v", res.StatusCode, out)
	}
}

func TestAppendMessageAccepted(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t, "u1")

	res, out := e.postJSON(t, "/v1/sessions/"+id+"/messages", map[string]string{"role": "user", "content": "hello there"})
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("append status = %d, want 202", res.StatusCode)
	}
	if count, _ := out["message_count"].(float64); count != 1 {
		t.Fatalf("message_count = %v, want 1", out["message_count"])
	}
}

func TestCompressEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t, "u1")
	ctx := context.Background()

	res, out := e.postJSON(t, "/v1/sessions/"+id+"/compress", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compress status = %d, want 200", res.StatusCode)
	}
	if out["status"] != "skipped" || out["reason"] != "too_few_turns" {
		t.Fatalf("compress below threshold = %v", out)
	}

	for i := 0; i < 10; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		e.mem.AddMessage(ctx, id, role, fmt.Sprintf("turn %d", i))
	}

	_, out = e.postJSON(t, "/v1/sessions/"+id+"/compress", nil)
	if out["status"] != "ok" {
		t.Fatalf("compress at threshold = %v, want ok", out)
	}

	_, mem := e.getJSON(t, "/v1/sessions/"+id+"/memory")
	wm, _ := mem["working_memory"].(string)
	if !strings.Contains(wm, "work stress") {
		t.Fatalf("working memory = %q, want compressed topic present", wm)
	}
}

func TestBufferNotFound(t *testing.T) {
	e := newTestEnv(t)
	res, out := e.getJSON(t, "/v1/sessions/does-not-exist/buffer")
	if res.StatusCode != http.StatusNotFound || out["code"] != "buffer_not_found" {
		t.Fatalf("missing buffer: status %d, body %v", res.StatusCode, out)
	}
}

func TestWatchMissingBuffer(t *testing.T) {
	e := newTestEnv(t)
	res, err := http.Get(e.srv.URL + "/v1/sessions/does-not-exist/watch")
	if err != nil {
		t.Fatalf("GET watch: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("watch for missing buffer = %d, want 404", res.StatusCode)
	}
}

func TestEndSessionRunsFinalizeFlow(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t, "u1")
	ctx := context.Background()

	e.mem.AddMessage(ctx, id, memory.RoleUser, "work has been brutal lately")
	e.mem.AddMessage(ctx, id, memory.RoleAssistant, "that sounds exhausting")

	res, _ := e.postJSON(t, "/v1/sessions/"+id+"/end", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want 200", res.StatusCode)
	}

	// Buffer is cleared by the finalizer.
	bres, _ := e.getJSON(t, "/v1/sessions/"+id+"/buffer")
	if bres.StatusCode != http.StatusNotFound {
		t.Fatalf("buffer after end = %d, want 404", bres.StatusCode)
	}

	qres, out := e.getJSON(t, "/v1/tags/work/sessions?user_id=u1")
	if qres.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d, want 200", qres.StatusCode)
	}
	items, _ := out["sessions"].([]any)
	if len(items) != 1 {
		t.Fatalf("tag query returned %d sessions, want 1: %v", len(items), out)
	}
}

func TestEndUnknownSession(t *testing.T) {
	e := newTestEnv(t)
	res, out := e.postJSON(t, "/v1/sessions/nope/end", nil)
	if res.StatusCode != http.StatusNotFound || out["code"] != "session_not_found" {
		t.Fatalf("end unknown: status %d, body %v", res.StatusCode, out)
	}
}

func TestQueryByTagRequiresUserID(t *testing.T) {
	e := newTestEnv(t)
	res, out := e.getJSON(t, "/v1/tags/work/sessions")
	if res.StatusCode != http.StatusBadRequest || out["code"] != "missing_user_id" {
		t.Fatalf("query without user_id: status %d, body %v", res.StatusCode, out)
	}
}
