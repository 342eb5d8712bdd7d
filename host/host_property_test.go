package host_test

import (
	"context"
	"testing"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/host"
	"github.com/reglet-dev/dlhost/internal/testutil"
	"pgregory.net/rapid"
)

// hostModel is the reference state machine the host is checked against.
type hostModel struct {
	host     *host.Host
	loader   *testutil.FakeLoader
	retained []host.ResolvedSymbol

	loaded     bool
	path       string
	generation uint64
	calls      int
}

func (m *hostModel) load(t *rapid.T) {
	path := rapid.SampledFrom([]string{pluginA, pluginB, "/opt/plugins/missing.so"}).Draw(t, "path")
	err := m.host.Load(context.Background(), path)

	if m.loaded {
		m.loaded = false
		m.generation++
	}
	if path == "/opt/plugins/missing.so" {
		if errors.KindOf(err) != errors.KindLoad {
			t.Fatalf("load %s: want load error, got %v", path, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	m.loaded = true
	m.path = path
	m.generation++
}

func (m *hostModel) unload(t *rapid.T) {
	if err := m.host.Unload(context.Background()); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if m.loaded {
		m.loaded = false
		m.generation++
	}
}

func (m *hostModel) exchange(t *rapid.T) {
	capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
	override := rapid.Bool().Draw(t, "override")

	reply, err := m.host.Exchange(context.Background(), capacity, override)
	if !m.loaded {
		if errors.KindOf(err) != errors.KindNotLoaded {
			t.Fatalf("exchange while unloaded: want not loaded, got %v", err)
		}
		return
	}
	m.calls++

	content := greeting
	if m.path == pluginB {
		content = []byte("bb")
	}
	switch {
	case !override:
		if err != nil || reply.WrittenOrNeeded != len(content) || reply.Contents != nil {
			t.Fatalf("probe: got %+v, %v", reply, err)
		}
	case capacity < len(content):
		if errors.KindOf(err) != errors.KindExchangeDeclined {
			t.Fatalf("short override: want declined, got %v", err)
		}
	default:
		if err != nil || string(reply.Contents) != string(content) {
			t.Fatalf("override: got %+v, %v", reply, err)
		}
	}
}

func (m *hostModel) retain(t *rapid.T) {
	sym, err := m.host.Symbol(entities.SymbolExchange)
	if !m.loaded {
		if errors.KindOf(err) != errors.KindNotLoaded {
			t.Fatalf("symbol while unloaded: want not loaded, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	m.retained = append(m.retained, sym)
}

func (m *hostModel) callRetained(t *rapid.T) {
	if len(m.retained) == 0 {
		t.Skip("nothing retained")
	}
	sym := rapid.SampledFrom(m.retained).Draw(t, "symbol")
	buf, err := entities.NewExchangeBuffer(64, false)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}

	_, err = m.host.Call(context.Background(), sym, buf)
	if m.loaded && sym.Generation() == m.generation {
		if err != nil {
			t.Fatalf("live symbol: %v", err)
		}
		m.calls++
		return
	}
	if errors.KindOf(err) != errors.KindStaleSymbol {
		t.Fatalf("symbol of generation %d at %d: want stale, got %v", sym.Generation(), m.generation, err)
	}
}

func (m *hostModel) check(t *rapid.T) {
	st := m.host.Status()
	wantState := entities.StateUnloaded
	if m.loaded {
		wantState = entities.StateLoaded
	}
	if st.State != wantState {
		t.Fatalf("state %s, want %s", st.State, wantState)
	}
	if st.Generation != m.generation {
		t.Fatalf("generation %d, want %d", st.Generation, m.generation)
	}
	if !m.loaded && len(st.Symbols) != 0 {
		t.Fatalf("unloaded host exposes symbols %v", st.Symbols)
	}
	if m.loaded && st.Path != m.path {
		t.Fatalf("path %s, want %s", st.Path, m.path)
	}
	if got := m.loader.ExchangeCalls(); got != m.calls {
		t.Fatalf("exchange calls %d, want %d", got, m.calls)
	}
	if live := m.loader.LiveImages(); live > 1 || (live == 1) != m.loaded {
		t.Fatalf("%d live images with loaded=%t", live, m.loaded)
	}
	if m.loader.DoubleCloses() != 0 || m.loader.UseAfterClose() != 0 {
		t.Fatalf("image released twice or used after release")
	}
}

func TestHost_StateMachine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		loader := testutil.NewFakeLoader().
			Register(pluginA, &testutil.FakePlugin{Exchange: testutil.WriteContent(greeting)}).
			Register(pluginB, &testutil.FakePlugin{Exchange: testutil.WriteContent([]byte("bb"))})
		h, err := host.New(host.WithLoader(loader), host.WithLogger(quietLogger()), host.WithFingerprint(false))
		if err != nil {
			t.Fatalf("new host: %v", err)
		}

		m := &hostModel{host: h, loader: loader}
		t.Repeat(map[string]func(*rapid.T){
			"load":         m.load,
			"unload":       m.unload,
			"exchange":     m.exchange,
			"retain":       m.retain,
			"callRetained": m.callRetained,
			"":             m.check,
		})
	})
}
