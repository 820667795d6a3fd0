package scripting

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
)

// registerModules installs the "offer" helper table:
//
//	offer.has_tag(item, tag)      case-insensitive tag test
//	offer.contains(s, sub)        case-insensitive substring test
//
// Precondition: L must be from NewSandboxedState.
func registerModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "has_tag", L.NewFunction(luaHasTag))
	L.SetField(mod, "contains", L.NewFunction(luaContains))
	L.SetGlobal("offer", mod)
}

func luaHasTag(L *lua.LState) int {
	item := L.CheckTable(1)
	tag := L.CheckString(2)
	found := false
	if tags, ok := item.RawGetString("tags").(*lua.LTable); ok {
		tags.ForEach(func(_, v lua.LValue) {
			if s, ok := v.(lua.LString); ok && strings.EqualFold(string(s), tag) {
				found = true
			}
		})
	}
	L.Push(lua.LBool(found))
	return 1
}

func luaContains(L *lua.LState) int {
	s := L.CheckString(1)
	sub := L.CheckString(2)
	L.Push(lua.LBool(strings.Contains(strings.ToLower(s), strings.ToLower(sub))))
	return 1
}

// itemTable converts it into the table passed to match_* functions.
func itemTable(L *lua.LState, it inventory.Item) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("app_id", lua.LNumber(it.AppID))
	t.RawSetString("context_id", lua.LString(it.ContextID))
	t.RawSetString("asset_id", lua.LString(it.AssetID))
	t.RawSetString("position", lua.LNumber(it.Position))
	t.RawSetString("market_name", lua.LString(it.MarketName))
	t.RawSetString("stackable", lua.LBool(it.Stackable))
	tags := L.NewTable()
	for _, tag := range it.Tags {
		tags.Append(lua.LString(tag))
	}
	t.RawSetString("tags", tags)
	return t
}
