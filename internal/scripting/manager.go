package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
)

// PredicatePrefix marks Lua globals that define selection categories.
const PredicatePrefix = "match_"

// Manager owns one sandboxed LState holding every loaded predicate.
//
// An LState is single-threaded; calls are serialised by mu.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	names  []string
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	return &Manager{limit: normaliseLimit(instLimit), logger: observability.OrNop(logger)}
}

// LoadDir creates a fresh VM and executes every *.lua file in dir in
// lexicographic order, replacing any previously loaded scripts.
//
// Precondition: dir must be a readable directory.
// Postcondition: on error the previous scripts stay loaded.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading predicate dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState(m.limit)
	registerModules(L)
	for _, path := range files {
		cancel := resetLimit(L, m.limit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	L.RemoveContext()

	var names []string
	L.G.Global.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || v.Type() != lua.LTFunction || !strings.HasPrefix(string(key), PredicatePrefix) {
			return
		}
		names = append(names, strings.TrimPrefix(string(key), PredicatePrefix))
	})
	sort.Strings(names)

	m.mu.Lock()
	old := m.state
	m.state = L
	m.names = names
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	m.logger.Info("predicates loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Strings("categories", names),
	)
	return nil
}

// Names returns the loaded category names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// Predicate returns the scripted predicate for category name.
func (m *Manager) Predicate(name string) (selector.Predicate, bool) {
	m.mu.Lock()
	defined := m.state != nil && m.state.GetGlobal(PredicatePrefix+name).Type() == lua.LTFunction
	m.mu.Unlock()
	if !defined {
		return nil, false
	}
	return func(it inventory.Item) bool { return m.Match(name, it) }, true
}

// Match calls match_<name>(item) and reports its truthiness. Lua runtime
// errors, including an exhausted instruction budget, are logged at Warn and
// count as no match.
func (m *Manager) Match(name string, it inventory.Item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return false
	}
	L := m.state
	fn := L.GetGlobal(PredicatePrefix + name)
	if fn.Type() != lua.LTFunction {
		return false
	}

	cancel := resetLimit(L, m.limit)
	defer func() {
		L.RemoveContext()
		cancel()
	}()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, itemTable(L, it)); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("category", name),
			zap.String("asset_id", it.AssetID),
			zap.Error(err),
		)
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}

// Close releases the VM. Later calls match nothing.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
		m.names = nil
	}
}
