package selector

import (
	"sort"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
)

// Select resolves req against scope.
//
// ok is false when the inventory context needed by req is not available; the
// caller must treat that as "nothing to do". Partial availability is reported
// through Result.Satisfied, never as an error.
func Select(req Request, scope Scope) (Result, bool) {
	switch r := req.(type) {
	case ByCategory:
		return selectByCategory(r, scope)
	case ByCurrencyValue:
		return selectByCurrencyValue(r, scope)
	case ByIDList:
		return selectByIDList(r, scope)
	case ByVisiblePosition:
		return selectByVisiblePosition(r, scope)
	default:
		return Result{}, false
	}
}

// ResolveOffset applies the shared offset rule to a window of amount items
// over l candidates. start must already be normalised for reversal. The rule
// is evaluated without adding start and amount, so it holds for every int.
//
// Precondition: l >= 0.
// Postcondition: 0 <= result <= max(0, l-amount); result == start whenever
// start >= 0 and start+amount < l.
func ResolveOffset(start, amount, l int) int {
	if amount < 0 {
		amount = 0
	}
	if amount >= l {
		return 0
	}
	if start >= l-amount {
		return l - amount
	}
	return max(start, 0)
}

// window returns up to amount candidates starting at the resolved offset. A
// negative start reverses the candidates and counts from the end.
func window(candidates []inventory.Item, start, amount int) []inventory.Item {
	if amount <= 0 || len(candidates) == 0 {
		return nil
	}
	if start < 0 {
		reversed := make([]inventory.Item, len(candidates))
		for i, it := range candidates {
			reversed[len(candidates)-1-i] = it
		}
		candidates = reversed
		// -1 maps to 0, math.MinInt to math.MaxInt.
		start = -(start + 1)
	}
	off := ResolveOffset(start, amount, len(candidates))
	end := off + min(amount, len(candidates)-off)
	out := make([]inventory.Item, end-off)
	copy(out, candidates[off:end])
	return out
}

// emptyResult handles non-positive amounts: nothing is selected and the
// request is satisfied only when zero items were asked for.
func emptyResult(amount int) Result {
	return Result{Satisfied: amount == 0}
}

func candidates(snap *inventory.Snapshot, scope Scope, match Predicate) []inventory.Item {
	var out []inventory.Item
	for _, it := range snap.Ordered() {
		if scope.committed(it.Ref()) {
			continue
		}
		if match != nil && !match(it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func selectByCategory(r ByCategory, scope Scope) (Result, bool) {
	snap := scope.snapshot(r.Side)
	if snap == nil {
		return Result{}, false
	}
	if r.Amount <= 0 {
		return emptyResult(r.Amount), true
	}
	picked := window(candidates(snap, scope, r.Match), r.StartIndex, r.Amount)
	return Result{Items: picked, Satisfied: len(picked) == r.Amount}, true
}

func selectByCurrencyValue(r ByCurrencyValue, scope Scope) (Result, bool) {
	snap := scope.snapshot(r.Side)
	if snap == nil {
		return Result{}, false
	}
	if r.Value.IsNegative() {
		return emptyResult(-1), true
	}

	denoms := r.Denominations
	if len(denoms) == 0 {
		denoms = currency.Metal
	}
	denoms = append([]currency.Denomination(nil), denoms...)
	sort.SliceStable(denoms, func(i, j int) bool { return denoms[i].Units > denoms[j].Units })

	target := currency.ToSmallestUnit(r.Value)
	remaining := target
	var items []inventory.Item
	for _, d := range denoms {
		if remaining <= 0 {
			break
		}
		if d.Units <= 0 {
			continue
		}
		// Re-derive the need from what is still missing; a scarce larger
		// denomination leaves more for the smaller ones.
		need := remaining / d.Units
		if need == 0 {
			continue
		}
		picked := window(candidates(snap, scope, IsDenomination(d)), r.StartIndex, need)
		items = append(items, picked...)
		remaining -= len(picked) * d.Units
	}
	return Result{Items: items, Satisfied: remaining == 0}, true
}

func selectByIDList(r ByIDList, scope Scope) (Result, bool) {
	if scope.Self == nil && scope.Them == nil {
		return Result{}, false
	}
	seen := make(map[string]bool, len(r.IDs))
	var items []inventory.Item
	for _, id := range r.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if it, ok := lookupEitherSide(scope, id); ok {
			items = append(items, it)
		}
	}
	// A repeated id names the same asset twice; only one can be added, so
	// the request counts as unsatisfied.
	return Result{Items: items, Satisfied: len(items) == len(r.IDs)}, true
}

func lookupEitherSide(scope Scope, assetID string) (inventory.Item, bool) {
	for _, snap := range []*inventory.Snapshot{scope.Self, scope.Them} {
		if snap == nil {
			continue
		}
		it, ok := snap.Item(assetID)
		if !ok || scope.committed(it.Ref()) {
			continue
		}
		return it, true
	}
	return inventory.Item{}, false
}

func selectByVisiblePosition(r ByVisiblePosition, scope Scope) (Result, bool) {
	if scope.Self == nil && scope.Them == nil {
		return Result{}, false
	}
	if r.Amount <= 0 {
		return emptyResult(r.Amount), true
	}
	seen := make(map[inventory.Ref]bool, len(r.Visible))
	var visible []inventory.Item
	for _, ref := range r.Visible {
		if seen[ref] || scope.committed(ref) {
			continue
		}
		seen[ref] = true
		if it, ok := resolveEitherSide(scope, ref); ok {
			visible = append(visible, it)
		}
	}
	picked := window(visible, r.StartIndex, r.Amount)
	return Result{Items: picked, Satisfied: len(picked) == r.Amount}, true
}

func resolveEitherSide(scope Scope, ref inventory.Ref) (inventory.Item, bool) {
	for _, snap := range []*inventory.Snapshot{scope.Self, scope.Them} {
		if snap == nil {
			continue
		}
		if it, ok := snap.Resolve(ref); ok {
			return it, true
		}
	}
	return inventory.Item{}, false
}
