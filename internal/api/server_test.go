package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/pipeline"
)

const testPipeline = `
name: head
dtype: int8
layers:
  - kind: global_max_pool2d
    name: gmp
`

func newTestEcho(t *testing.T, stager memory.Stager) (*echo.Echo, *RunStore) {
	t.Helper()
	cfg, err := pipeline.ParseConfig([]byte(testPipeline))
	if err != nil {
		t.Fatalf("parse pipeline: %v", err)
	}
	provider, err := NewPooledRunnerProvider(cfg, layer.Options{Stager: stager}, nil, 2, 0)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	store := NewRunStore(0)
	server := NewServer(store, NewRunService(provider))
	e := echo.New()
	server.Register(e)
	return e, store
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const runBody = `{"input":{"dtype":"int8","shape":[2,2,3],"exponent":-4,"data":[1,4,0,5,4,-1,3,4,-2,2,4,-3]},"autoload":true}`

func TestCreateGetDeleteRunLifecycle(t *testing.T) {
	t.Parallel()

	counter := &memory.Counter{}
	e, _ := newTestEcho(t, counter)
	createRec := doJSON(t, e, http.MethodPost, "/v1/runs", runBody)
	if createRec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", createRec.Code, createRec.Body.String())
	}

	var created Run
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if !strings.HasPrefix(created.ID, "run_") {
		t.Fatalf("run id: got %q", created.ID)
	}
	if created.Status != "completed" || !created.Autoload || created.Pipeline != "head" {
		t.Fatalf("run metadata: %+v", created)
	}
	if created.Output == nil {
		t.Fatalf("missing output")
	}
	want := []int32{5, 4, 0}
	if len(created.Output.Data) != 3 || created.Output.Data[0] != want[0] || created.Output.Data[1] != want[1] || created.Output.Data[2] != want[2] {
		t.Fatalf("output: got %v want %v", created.Output.Data, want)
	}
	if created.Output.Exponent != -4 {
		t.Fatalf("output exponent: got %d want -4", created.Output.Exponent)
	}
	if len(created.Layers) == 0 || created.Layers[0].Layer != "gmp" {
		t.Fatalf("layer timings: %+v", created.Layers)
	}
	if got := counter.Stats().Calls; got != 1 {
		t.Fatalf("stager calls: got %d want 1", got)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/runs/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/runs/"+created.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", delRec.Code)
	}
	var deleted DeleteRunResp
	if err := json.Unmarshal(delRec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if !deleted.Deleted || deleted.ID != created.ID {
		t.Fatalf("delete response: %+v", deleted)
	}

	if rec := doJSON(t, e, http.MethodGet, "/v1/runs/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d want 404", rec.Code)
	}
}

func TestCreateRunWithoutStore(t *testing.T) {
	t.Parallel()

	e, store := newTestEcho(t, nil)
	body := strings.Replace(runBody, `"autoload":true`, `"store":false`, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/runs", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if store.Len() != 0 {
		t.Fatalf("store: got %d runs want 0", store.Len())
	}
}

func TestCreateRunWithRealValues(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, nil)
	body := `{"input":{"shape":[1,2,2],"exponent":-2,"values":[0.5,-3,1.25,-0.25]},"real":true}`
	rec := doJSON(t, e, http.MethodPost, "/v1/runs", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var run Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Output == nil || len(run.Output.Data) != 2 || run.Output.Data[0] != 5 || run.Output.Data[1] != -1 {
		t.Fatalf("output: %+v", run.Output)
	}
	if len(run.Output.Values) != 2 || run.Output.Values[0] != 1.25 || run.Output.Values[1] != -0.25 {
		t.Fatalf("values: %v", run.Output.Values)
	}
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"input":`},
		{"dtype", `{"input":{"dtype":"int16","shape":[1,1,1],"data":[1]}}`},
		{"size", `{"input":{"dtype":"int8","shape":[2,2,1],"data":[1]}}`},
		{"range", `{"input":{"dtype":"int8","shape":[1,1,1],"data":[300]}}`},
		{"empty spatial", `{"input":{"dtype":"int8","shape":[0,2,1],"data":[]}}`},
		{"rank", `{"input":{"dtype":"int8","shape":[4],"data":[1,2,3,4]}}`},
		{"shape overflow", `{"input":{"dtype":"int8","shape":[4294967296,4294967296,1],"data":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, e, http.MethodPost, "/v1/runs", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d want 400 body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "invalid_request_error") {
				t.Fatalf("error body: %s", rec.Body.String())
			}
		})
	}
}

func TestPipelineAndHealth(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t, nil)
	rec := doJSON(t, e, http.MethodGet, "/v1/pipeline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pipeline status: got %d", rec.Code)
	}
	var info PipelineInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode pipeline: %v", err)
	}
	if info.Name != "head" || info.DType != "int8" || len(info.Layers) != 1 || info.Layers[0].Name != "gmp" {
		t.Fatalf("pipeline info: %+v", info)
	}

	if rec := doJSON(t, e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodDelete, "/v1/runs/run_missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: got %d want 404", rec.Code)
	}
}
