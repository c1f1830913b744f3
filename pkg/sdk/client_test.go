package casetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/db/memory"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/host"
	"github.com/kailas-cloud/casetable/internal/host/hosttest"
)

func TestNew_NoBridge(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no bridge provided")
	}
}

func TestNew_UnknownDefaultLayout(t *testing.T) {
	_, err := New(context.Background(), WithBridge("http://localhost:1", ""), WithDefaultLayout("sideways"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateStore(t *testing.T) {
	s, err := createStore(&clientConfig{})
	if err != nil {
		t.Fatalf("default store: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("default store = %T, want *memory.Store", s)
	}

	if _, err := createStore(&clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOptions(t *testing.T) {
	cfg := &clientConfig{}
	opts := []Option{
		WithBridge("http://bridge", "tok"),
		WithRequestTimeout(3 * time.Second),
		WithReloadTimeout(9 * time.Second),
		WithFetchConcurrency(4),
		WithValkey("valkey:6379", "pw"),
		WithKeyPrefix("ct:"),
		WithDefaultLayout(LayoutLandscape),
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.bridgeURL != "http://bridge" || cfg.token != "tok" {
		t.Errorf("bridge = %q %q", cfg.bridgeURL, cfg.token)
	}
	if cfg.requestTimeout != 3*time.Second || cfg.reloadTimeout != 9*time.Second || cfg.fetchConcurrency != 4 {
		t.Errorf("timeouts = %v %v, concurrency = %d", cfg.requestTimeout, cfg.reloadTimeout, cfg.fetchConcurrency)
	}
	if cfg.driver != "valkey" || len(cfg.addrs) != 1 || cfg.password != "pw" {
		t.Errorf("store = %q %v %q", cfg.driver, cfg.addrs, cfg.password)
	}
	if cfg.keyPrefix != "ct:" || cfg.defaultLayout != LayoutLandscape {
		t.Errorf("prefix = %q, layout = %q", cfg.keyPrefix, cfg.defaultLayout)
	}

	WithRedis("redis:6379", "").apply(cfg)
	if cfg.driver != "redis" || cfg.addrs[0] != "redis:6379" {
		t.Errorf("redis option: driver = %q, addrs = %v", cfg.driver, cfg.addrs)
	}
}

// scriptedHost adds the bridge-only capabilities to a scripted host.
type scriptedHost struct {
	*hosttest.Host
}

func (h scriptedHost) Dispatch(ctx context.Context, n host.Notification) int {
	h.Push(ctx, n.Resource, n.Values)
	return h.Subscribers()
}

func (h scriptedHost) HealthCheck(context.Context) error { return nil }

// newZooHost scripts a one-level dataset "Zoo" with two animals.
func newZooHost() scriptedHost {
	h := hosttest.New()
	ds := host.DataContext("Zoo")
	h.Reply(host.Get, host.DataContextList, []map[string]any{{"id": 1, "name": "Zoo", "title": "Zoo"}})
	h.Reply(host.Get, ds.CollectionList().String(), []map[string]any{{"id": 20, "name": "animals", "title": "Animals"}})
	h.Reply(host.Get, host.DataContext("Zoo").Collection("animals").String(), map[string]any{
		"id": 20, "name": "animals", "title": "Animals",
		"attrs": []map[string]any{
			{"id": 200, "name": "name", "title": "Name"},
			{"id": 201, "name": "mass", "title": "Mass", "type": "numeric", "precision": "1"},
		},
	})
	h.Reply(host.Get, host.DataContext("Zoo").Collection("animals").CaseCount().String(), 2)
	for i, name := range []string{"Okapi", "Tapir"} {
		h.Reply(host.Get, host.DataContext("Zoo").Collection("animals").CaseByIndex(i).String(), map[string]any{
			"caseIndex": i,
			"case": map[string]any{"id": 3 + i, "collection": map[string]any{"id": 20, "name": "animals"},
				"values": map[string]any{"name": name, "mass": 250.0 + float64(i)}, "children": []int{}},
		})
	}
	return scriptedHost{Host: h}
}

func TestWireClient_SelectAndDeliver(t *testing.T) {
	ctx := context.Background()
	h := newZooHost()
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix, reloadTimeout: time.Second}

	c, err := wireClient(ctx, memory.NewStore(), h, layout.Unselected, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("wireClient: %v", err)
	}

	infos, err := c.Datasets(ctx)
	if err != nil || len(infos) != 1 || infos[0].Name != "Zoo" {
		t.Fatalf("datasets = %v, %v", infos, err)
	}

	if err := c.Select(ctx, "Zoo"); err != nil {
		t.Fatalf("select: %v", err)
	}
	st := c.State()
	if st.Dataset != "Zoo" || st.Subscription != "subscribed" {
		t.Errorf("state = %q %q", st.Dataset, st.Subscription)
	}
	if st.Layout != LayoutFlat {
		t.Errorf("layout = %q, want flat for one collection", st.Layout)
	}
	if len(st.Collections) != 1 || len(st.Collections[0].Cases) != 2 {
		t.Fatalf("collections = %+v", st.Collections)
	}
	if got := st.Collections[0].Cases[1].Values["mass"].Formatted; got != "251.0" {
		t.Errorf("mass = %q, want 251.0", got)
	}

	delivered := c.Deliver(ctx, Notification{
		Resource: host.DataContextChangeNotice("Zoo"),
		Values: []byte(`{"operation":"selectCases","result":{"success":true,"cases":[{"id":4,` +
			`"collection":{"id":20,"name":"animals"}}]}}`),
	})
	if delivered == 0 {
		t.Error("notification reached no subscriber")
	}
	if got := c.State().Lineage; len(got) != 1 || got[0] != 4 {
		t.Errorf("lineage = %v, want [4]", got)
	}

	c.Close()
	if n := h.Subscribers(); n != 0 {
		t.Errorf("subscribers after Close = %d, want 0", n)
	}
	if st := c.State(); st.Dataset != "" {
		t.Errorf("dataset after Close = %q", st.Dataset)
	}
}

func TestWireClient_DefaultLayoutAndConcurrency(t *testing.T) {
	h := newZooHost()
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix, fetchConcurrency: 1}
	c, err := wireClient(context.Background(), memory.NewStore(), h, layout.Portrait, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("wireClient: %v", err)
	}
	defer c.Close()
	if err := c.Select(context.Background(), "Zoo"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if n := h.Count(host.Get, host.DataContext("Zoo").Collection("animals").String()+".caseByIndex*"); n != 2 {
		t.Errorf("caseByIndex requests = %d, want 2", n)
	}
	if st := c.State(); st.Preference != LayoutPortrait || st.Layout != LayoutFlat {
		t.Errorf("preference = %q, layout = %q", st.Preference, st.Layout)
	}
}
