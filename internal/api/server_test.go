package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/signalsfoundry/permit-simulator/core"
	"github.com/signalsfoundry/permit-simulator/history"
	"github.com/signalsfoundry/permit-simulator/model"
)

func testServer(t *testing.T) (*Server, *history.Store) {
	t.Helper()

	store := history.NewStore("baseline", 42)
	store.Append(core.RoundSnapshot{
		Round:          1,
		ClearingPrice:  10,
		CompliantCount: 2,
		Agents: []core.AgentRecord{
			{ID: 0, Wealth: 5},
			{ID: 1, Wealth: -3},
		},
	})
	store.Append(core.RoundSnapshot{
		Round:          2,
		ClearingPrice:  12,
		CompliantCount: 2,
		Agents: []core.AgentRecord{
			{ID: 0, Wealth: 7},
			{ID: 1, Wealth: -1},
		},
	})

	return &Server{
		Store:    store,
		Scenario: model.DefaultScenario(),
	}, store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestStatusEndpoint(t *testing.T) {
	srv, store := testServer(t)
	rr := get(t, srv.Handler(), "/api/v1/status")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != store.RunID() || resp.Scenario != "baseline" || resp.Rounds != 2 {
		t.Fatalf("status = %+v", resp)
	}
	if resp.Running {
		t.Fatal("reported running with no controller attached")
	}
}

func TestRoundEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	var all []core.RoundSnapshot
	if err := json.Unmarshal(get(t, h, "/api/v1/rounds").Body.Bytes(), &all); err != nil {
		t.Fatalf("decode rounds: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("rounds = %d, want 2", len(all))
	}

	var latest core.RoundSnapshot
	if err := json.Unmarshal(get(t, h, "/api/v1/rounds/latest").Body.Bytes(), &latest); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if latest.Round != 2 || latest.ClearingPrice != 12 {
		t.Fatalf("latest = %+v", latest)
	}

	var first core.RoundSnapshot
	if err := json.Unmarshal(get(t, h, "/api/v1/rounds/1").Body.Bytes(), &first); err != nil {
		t.Fatalf("decode round 1: %v", err)
	}
	if first.Round != 1 {
		t.Fatalf("round 1 = %+v", first)
	}

	if rr := get(t, h, "/api/v1/rounds/9"); rr.Code != http.StatusNotFound {
		t.Fatalf("missing round status = %d, want 404", rr.Code)
	}
	if rr := get(t, h, "/api/v1/rounds/bogus"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad round status = %d, want 400", rr.Code)
	}
}

func TestAgentEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	var agents []core.AgentRecord
	if err := json.Unmarshal(get(t, h, "/api/v1/agents").Body.Bytes(), &agents); err != nil {
		t.Fatalf("decode agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(agents))
	}

	var one core.AgentRecord
	if err := json.Unmarshal(get(t, h, "/api/v1/agents/1").Body.Bytes(), &one); err != nil {
		t.Fatalf("decode agent: %v", err)
	}
	if one.ID != 1 || one.Wealth != -1 {
		t.Fatalf("agent 1 = %+v", one)
	}

	if rr := get(t, h, "/api/v1/agents/9"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown agent status = %d, want 404", rr.Code)
	}
}

func TestWriteMethodsRejected(t *testing.T) {
	srv, _ := testServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/status", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", rr.Code)
	}
}

func TestEmptyStoreResponses(t *testing.T) {
	srv := &Server{Store: history.NewStore("empty", 0), Scenario: model.DefaultScenario()}
	h := srv.Handler()

	if rr := get(t, h, "/api/v1/rounds/latest"); rr.Code != http.StatusNotFound {
		t.Fatalf("latest on empty store = %d, want 404", rr.Code)
	}
	if rr := get(t, h, "/api/v1/agents"); rr.Code != http.StatusNotFound {
		t.Fatalf("agents on empty store = %d, want 404", rr.Code)
	}
}
