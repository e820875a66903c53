package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_strategist/internal/cdpcontrol"
	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/overlay"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
	"github.com/dgnsrekt/tv_strategist/internal/strategist"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

type recordingBridge struct {
	mu      sync.Mutex
	actions []chartctl.Action
}

func (b *recordingBridge) Perform(_ context.Context, a chartctl.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, a)
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *recordingBridge) {
	t.Helper()
	reg := indicators.DefaultRegistry()
	session := chartctl.NewSession()
	bridge := &recordingBridge{}
	session.Register(bridge)
	bus := overlay.NewBus()
	engine := sequence.NewEngine(session, bus, reg, nil)
	tools := strategist.NewToolset(reg)
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error: %v", err)
	}
	svc := controller.NewService(controller.Deps{
		Session:    session,
		Engine:     engine,
		Bus:        bus,
		Registry:   reg,
		Tools:      tools,
		Strategist: strategist.New(session, engine, nil, nil, tools, strategist.Config{}),
		Snapshots:  store,
		TradePlan:  tradeplan.DefaultConfig(),
	})
	return NewServer(svc, nil), bridge
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestExecuteActionUpdatesState(t *testing.T) {
	h, bridge := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/chart/actions", `{"type":"set_timeframe","timeframe":"1D"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got, want := len(bridge.actions), 1; got != want {
		t.Fatalf("bridge actions = %d, want %d", got, want)
	}

	w = do(t, h, http.MethodGet, "/api/v1/chart/state", "")
	var st controller.ChartState
	decode(t, w, &st)
	if got, want := st.Chart.Timeframe, "1D"; got != want {
		t.Fatalf("timeframe = %q, want %q", got, want)
	}
	if !st.BridgeRegistered {
		t.Fatal("bridge_registered = false, want true")
	}
}

func TestBatchRejectsInvalidAction(t *testing.T) {
	h, bridge := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/chart/actions/batch",
		`{"actions":[{"type":"check_news"},{"type":"navigate","direction":"up"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if len(bridge.actions) != 0 {
		t.Fatalf("bridge saw %d actions, want 0", len(bridge.actions))
	}
}

func TestBatchOrdered(t *testing.T) {
	h, bridge := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/chart/actions/batch",
		`{"ordered":true,"actions":[{"type":"set_timeframe","timeframe":"1h"},{"type":"set_chart_type","chart_type":"line"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res chartctl.BatchResult
	decode(t, w, &res)
	if got, want := len(res.Succeeded), 2; got != want {
		t.Fatalf("succeeded = %d, want %d", got, want)
	}
	if bridge.actions[0].Type != chartctl.ActionSetTimeframe || bridge.actions[1].Type != chartctl.ActionSetChartType {
		t.Fatalf("bridge order = %+v", bridge.actions)
	}
}

func TestStrategistDeclineRoundTrip(t *testing.T) {
	h, bridge := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/strategist/chat", `{"message":"no thanks"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res strategist.Response
	decode(t, w, &res)
	if got, want := res.Reply, strategist.DeclineReply; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	if res.Analysis != nil || len(bridge.actions) != 0 {
		t.Fatalf("decline produced work: %+v", res)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/strategist/chat", `{"message":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestConstrainPlan(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/tradeplan/constrain",
		`{"complexity":"simple","plan":{"side":"long","entries":[100,102],"exits":[95,93],"targets":[110,120,130]}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var plan tradeplan.Plan
	decode(t, w, &plan)
	if len(plan.Entries) != 1 || len(plan.Exits) != 1 || len(plan.Targets) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
	if got, want := plan.Complexity, tradeplan.Simple; got != want {
		t.Fatalf("complexity = %q, want %q", got, want)
	}
}

func TestDeriveRejectsStopAtEntry(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/tradeplan/derive", `{"entry":100,"stop":100}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestSnapshotErrorsMapToStatus(t *testing.T) {
	h, _ := newTestServer(t)
	if w := do(t, h, http.MethodGet, "/api/v1/snapshots/"+snapshot.NewID(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/snapshots/not-a-uuid/image", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	w := do(t, h, http.MethodGet, "/api/v1/snapshots", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"snapshots":[]`) {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
}

func TestSnapshotImageContentType(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	w := do(t, h, http.MethodGet, "/api/v1/snapshots/"+snapshot.NewID()+"/image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got, want := w.Header().Get("Content-Type"), "image/png"; got != want {
		t.Fatalf("content type = %q, want %q", got, want)
	}
	if got, want := w.Body.String(), "img"; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestContinueWithoutWaiter(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/sequences/continue", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"released":false`) {
		t.Fatalf("continue = %d %s", w.Code, w.Body.String())
	}
}

func TestMCPMounted(t *testing.T) {
	var hits int
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusAccepted)
	})
	h := NewServer(&stubService{}, mcp)
	if w := do(t, h, http.MethodPost, "/mcp", `{}`); w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if hits != 1 {
		t.Fatalf("mcp handler hits = %d, want 1", hits)
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{cdpcontrol.NewError(cdpcontrol.CodeValidation, "bad", nil), http.StatusBadRequest},
		{cdpcontrol.NewError(cdpcontrol.CodeChartNotFound, "gone", nil), http.StatusNotFound},
		{cdpcontrol.NewError(cdpcontrol.CodeSnapshotNotFound, "gone", nil), http.StatusNotFound},
		{cdpcontrol.NewError(cdpcontrol.CodeEvalTimeout, "slow", nil), http.StatusGatewayTimeout},
		{cdpcontrol.NewError(cdpcontrol.CodeCDPUnavailable, "down", nil), http.StatusBadGateway},
		{cdpcontrol.NewError(cdpcontrol.CodeAPIUnavailable, "down", nil), http.StatusBadGateway},
		{cdpcontrol.NewError(cdpcontrol.CodeEvalFailure, "boom", nil), http.StatusInternalServerError},
		{chartctl.ErrRunInProgress, http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var se huma.StatusError
		if !errors.As(mapErr(tt.err), &se) {
			t.Fatalf("mapErr(%v) is not a huma.StatusError", tt.err)
		}
		if got := se.GetStatus(); got != tt.want {
			t.Fatalf("mapErr(%v) status = %d, want %d", tt.err, got, tt.want)
		}
	}
	if mapErr(nil) != nil {
		t.Fatal("mapErr(nil) != nil")
	}
}
