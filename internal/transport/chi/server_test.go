package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	domds "github.com/kailas-cloud/casetable/internal/domain/dataset"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/domain/value"
	"github.com/kailas-cloud/casetable/internal/host"
	healthuc "github.com/kailas-cloud/casetable/internal/usecase/health"
	"github.com/kailas-cloud/casetable/internal/usecase/model"
	"github.com/kailas-cloud/casetable/internal/usecase/synchronizer"
)

// --- Mocks ---

type mockModel struct {
	snap  model.Snapshot
	err   error
	calls []string
}

func (m *mockModel) record(format string, args ...any) error {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
	return m.err
}

func (m *mockModel) Snapshot() model.Snapshot       { return m.snap }
func (m *mockModel) AttrPrecisions() map[string]int { return map[string]int{"mass": 1} }
func (m *mockModel) AttrTypes() map[string]attribute.Type {
	return map[string]attribute.Type{"mass": attribute.Numeric}
}
func (m *mockModel) AttrVisibilities() map[string]bool { return map[string]bool{"mass": true} }

func (m *mockModel) FindAttributes(q string) []collection.AttrMatch {
	_ = m.record("find %s", q)
	if q != "mass" {
		return nil
	}
	return []collection.AttrMatch{{
		Collection: collection.Ref{ID: 2, Name: "animals"},
		Attr:       attribute.Attribute{ID: 22, ClientID: "c-mass", Name: "mass"},
		Score:      10,
		Matched:    []int{0, 1, 2, 3},
	}}
}

func (m *mockModel) AddAttribute(_ context.Context, col, name string) (attribute.Attribute, error) {
	err := m.record("add %s.%s", col, name)
	return attribute.Attribute{ID: 7, ClientID: "cid", Name: name, Title: name}, err
}

func (m *mockModel) RenameAttribute(_ context.Context, col string, id int, oldName, newName string) error {
	return m.record("rename %s.%d %s->%s", col, id, oldName, newName)
}

func (m *mockModel) EditCaseValue(_ context.Context, v any, caseID int, title string) (model.EditResult, error) {
	err := m.record("edit %d.%s=%v(%T)", caseID, title, v, v)
	return model.EditResult{CaseID: caseID, Attr: "mass", Value: value.New(v, nil)}, err
}

func (m *mockModel) AddCollection(_ context.Context, name string) error {
	return m.record("collection %s", name)
}

func (m *mockModel) Sort(_ context.Context, attr string, desc bool) error {
	return m.record("sort %s %v", attr, desc)
}

func (m *mockModel) SetLayout(_ context.Context, l layout.Layout) error {
	return m.record("layout %s", l)
}

func (m *mockModel) Reload(context.Context) error { return m.record("reload") }

type mockRelocator struct {
	plan *domrel.Plan
	err  error
	got  moveRequest
}

func (m *mockRelocator) Move(
	_ context.Context, src domrel.Source, tgt domrel.Target, side domrel.Side, geom domrel.Geometry,
) (*domrel.Plan, error) {
	m.got = moveRequest{Source: src, Target: tgt, Side: side, Geometry: geom}
	return m.plan, m.err
}

type mockSync struct {
	selected   string
	selectErr  error
	deselected bool
	infos      []domds.Info
	listErr    error
}

func (m *mockSync) SelectDataset(_ context.Context, name string) error {
	m.selected = name
	return m.selectErr
}
func (m *mockSync) Deselect()                 { m.deselected = true }
func (m *mockSync) State() synchronizer.State { return synchronizer.Subscribed }
func (m *mockSync) Lineage() lineage.Lineage {
	return lineage.Lineage{{CaseID: 1, CollectionID: 10}, {CaseID: 2, CollectionID: 20}}
}
func (m *mockSync) RefreshDatasets(context.Context) ([]domds.Info, error) { return m.infos, m.listErr }

type mockDispatcher struct {
	got []host.Notification
}

func (m *mockDispatcher) Dispatch(_ context.Context, n host.Notification) int {
	m.got = append(m.got, n)
	return 2
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	model  *mockModel
	reloc  *mockRelocator
	sync   *mockSync
	disp   *mockDispatcher
	health *mockHealth
	router http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		model: &mockModel{snap: model.Snapshot{
			Dataset:     "Mammals",
			Collections: []collection.Collection{{ID: 10, Name: "diets"}, {ID: 20, Name: "animals"}},
			Layout:      layout.Portrait,
			Preference:  layout.Portrait,
			Classes:     map[int]string{10: "parent-row", 20: "child-row"},
		}},
		reloc:  &mockRelocator{},
		sync:   &mockSync{},
		disp:   &mockDispatcher{},
		health: &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"store": "ok"}}},
	}
	srv := NewServer(f.model, f.reloc, f.sync, f.disp, f.health, nil)
	r := chirouter.NewRouter()
	srv.Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Tests ---

func TestGetState(t *testing.T) {
	f := newFixture()
	rr := f.do(t, "GET", "/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got stateResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Dataset != "Mammals" || got.Layout != "portrait" || got.Subscription != "subscribed" {
		t.Errorf("state = %+v", got)
	}
	if len(got.Lineage) != 2 || got.Lineage[1].CaseID != 2 {
		t.Errorf("lineage = %v", got.Lineage)
	}
	if got.Classes[20] != "child-row" || got.Precisions["mass"] != 1 {
		t.Errorf("classes = %v, precisions = %v", got.Classes, got.Precisions)
	}
	if got.Pending == nil || got.Warnings == nil {
		t.Error("pending and warnings should encode as empty arrays")
	}
}

func TestSelectAndDeselectDataset(t *testing.T) {
	f := newFixture()
	if rr := f.do(t, "POST", "/datasets/Mammals%20Big/select", ""); rr.Code != http.StatusOK {
		t.Fatalf("select status = %d", rr.Code)
	}
	if f.sync.selected != "Mammals Big" {
		t.Errorf("selected = %q", f.sync.selected)
	}

	f.sync.selectErr = domain.NewHostRejected("dataContext[Nope]", "no such data context")
	rr := f.do(t, "POST", "/datasets/Nope/select", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != CodeHostRejected || e.HostMessage != "no such data context" {
		t.Errorf("error = %+v", e)
	}

	if rr := f.do(t, "DELETE", "/datasets/active", ""); rr.Code != http.StatusNoContent || !f.sync.deselected {
		t.Errorf("deselect status = %d, deselected = %v", rr.Code, f.sync.deselected)
	}
}

func TestListDatasets(t *testing.T) {
	f := newFixture()
	f.sync.infos = []domds.Info{{ID: 1, Name: "Mammals", Title: "Mammals"}}
	rr := f.do(t, "GET", "/datasets", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"name":"Mammals"`) {
		t.Errorf("status = %d, body = %s", rr.Code, rr.Body)
	}

	f.sync.listErr = fmt.Errorf("list: %w", domain.ErrTransport)
	if rr := f.do(t, "GET", "/datasets", ""); rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func TestAttributeEndpoints(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/collections/animals/attributes", `{"name":"newAttr"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	rr = f.do(t, "PATCH", "/collections/animals/attributes/21", `{"oldName":"name","newName":"species"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("rename status = %d", rr.Code)
	}
	want := []string{"add animals.newAttr", "rename animals.21 name->species"}
	if len(f.model.calls) != 2 || f.model.calls[0] != want[0] || f.model.calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", f.model.calls, want)
	}

	rr = f.do(t, "PATCH", "/collections/animals/attributes/abc", `{"oldName":"a","newName":"b"}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeBadRequest {
		t.Errorf("non-numeric id: status = %d", rr.Code)
	}
	rr = f.do(t, "POST", "/collections/animals/attributes", `{"name":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d", rr.Code)
	}
}

func TestFindAttributes(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/attributes?q=mass", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp struct {
		Items []collection.AttrMatch `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Attr.ClientID != "c-mass" {
		t.Errorf("items = %+v", resp.Items)
	}

	rr = f.do(t, "GET", "/attributes?q=zzz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Errorf("no match: status = %d, body = %s", rr.Code, rr.Body)
	}

	rr = f.do(t, "GET", "/attributes", "")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeBadRequest {
		t.Errorf("missing q: status = %d", rr.Code)
	}
	if len(f.model.calls) != 2 {
		t.Errorf("calls = %v, want two searches", f.model.calls)
	}
}

func TestEditCaseValue(t *testing.T) {
	f := newFixture()
	rr := f.do(t, "PUT", "/cases/200/values/Mass%20(kg)", `{"value":4.5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if f.model.calls[0] != "edit 200.Mass (kg)=4.5(float64)" {
		t.Errorf("call = %q", f.model.calls[0])
	}
	if !strings.Contains(rr.Body.String(), `"caseId":200`) {
		t.Errorf("body = %s", rr.Body)
	}

	f.model.err = fmt.Errorf("edit: %w", domain.ErrSuperseded)
	rr = f.do(t, "PUT", "/cases/200/values/name", `{"value":"Mammoth"}`)
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != CodeSuperseded {
		t.Errorf("superseded: status = %d", rr.Code)
	}
}

func TestMoveAttribute(t *testing.T) {
	f := newFixture()
	body := `{"source":{"collectionId":10,"attrClientId":"a"},"target":{"collectionId":"20","attrClientId":"b"},"side":"right"}`

	if rr := f.do(t, "POST", "/attributes/move", body); rr.Code != http.StatusNoContent {
		t.Errorf("no-op move: status = %d, want 204", rr.Code)
	}
	if f.reloc.got.Source.AttrClientID != "a" || f.reloc.got.Target.CollectionID != "20" || f.reloc.got.Side != domrel.Right {
		t.Errorf("move request = %+v", f.reloc.got)
	}

	f.reloc.plan = &domrel.Plan{Kind: domrel.Transfer, Position: 1}
	rr := f.do(t, "POST", "/attributes/move", body)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"kind":"transfer"`) {
		t.Errorf("status = %d, body = %s", rr.Code, rr.Body)
	}

	if rr := f.do(t, "POST", "/attributes/move", `{"side":"up"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad side: status = %d", rr.Code)
	}
}

func TestLayoutSortCollection(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "PUT", "/layout", `{"layout":"sideways"}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeValidationFailed {
		t.Errorf("unknown layout: status = %d", rr.Code)
	}
	if rr := f.do(t, "PUT", "/layout", `{"layout":"landscape"}`); rr.Code != http.StatusOK {
		t.Errorf("layout status = %d", rr.Code)
	}
	if rr := f.do(t, "POST", "/sort", `{"attr":"mass","descending":true}`); rr.Code != http.StatusAccepted {
		t.Errorf("sort status = %d", rr.Code)
	}
	if rr := f.do(t, "POST", "/collections", `{"name":"habitats"}`); rr.Code != http.StatusCreated {
		t.Errorf("collection status = %d", rr.Code)
	}
	if rr := f.do(t, "POST", "/state/reload", ""); rr.Code != http.StatusOK {
		t.Errorf("reload status = %d", rr.Code)
	}
	want := []string{"layout landscape", "sort mass true", "collection habitats", "reload"}
	if strings.Join(f.model.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", f.model.calls, want)
	}
}

func TestReceiveNotification(t *testing.T) {
	f := newFixture()
	body := `{"resource":"dataContextChangeNotice[Mammals]","values":{"operation":"selectCases"}}`
	rr := f.do(t, "POST", "/host/notifications", body)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	var got dispatchResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil || got.Delivered != 2 {
		t.Errorf("response = %+v, %v", got, err)
	}
	if len(f.disp.got) != 1 || !strings.Contains(string(f.disp.got[0].Values), "selectCases") {
		t.Errorf("dispatched = %v", f.disp.got)
	}

	if rr := f.do(t, "POST", "/host/notifications", `{"values":{}}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing resource: status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	if rr := f.do(t, "GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("healthy: status = %d", rr.Code)
	}
	f.health.report = healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"host": "error"}}
	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), `"host":"error"`) {
		t.Errorf("degraded: status = %d, body = %s", rr.Code, rr.Body)
	}
	if rr := f.do(t, "GET", "/version", ""); rr.Code != http.StatusOK {
		t.Errorf("version status = %d", rr.Code)
	}
}

func TestHandleDomainError(t *testing.T) {
	srv := NewServer(nil, nil, nil, nil, nil, nil)
	tests := []struct {
		err  error
		want int
		code ErrorCode
	}{
		{domain.ErrEmptyName, http.StatusBadRequest, CodeEmptyName},
		{fmt.Errorf("add: %w", domain.ErrDuplicateName), http.StatusConflict, CodeDuplicateName},
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest, CodeValidationFailed},
		{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{domain.ErrUnresolvable, http.StatusNotFound, CodeUnresolvable},
		{domain.ErrSuperseded, http.StatusConflict, CodeSuperseded},
		{domain.ErrNoDataset, http.StatusConflict, CodeNoDataset},
		{domain.ErrStructuralDrift, http.StatusConflict, CodeStructuralDrift},
		{domain.NewHostRejected("x", "nope"), http.StatusUnprocessableEntity, CodeHostRejected},
		{fmt.Errorf("send: %w", domain.ErrTransport), http.StatusBadGateway, CodeHostUnavailable},
		{errors.New("dial tcp 10.0.0.1: refused"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.handleDomainError(rr, httptest.NewRequest("GET", "/", http.NoBody), tt.err)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
			if strings.Contains(e.Message, "10.0.0.1") {
				t.Errorf("internal detail leaked: %q", e.Message)
			}
		})
	}
}
