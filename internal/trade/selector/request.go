// Package selector picks concrete, non-duplicated sets of inventory items for
// bulk-adding to an offer.
package selector

import (
	"github.com/shopspring/decimal"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
)

// Side says whose inventory an operation concerns.
type Side int

const (
	// Self is the local user's inventory.
	Self Side = iota
	// Them is the counterparty's inventory.
	Them
)

// String returns "self" or "them".
func (s Side) String() string {
	if s == Them {
		return "them"
	}
	return "self"
}

// ParseSide accepts "self"/"me"/"mine"/"you" and "them"/"their"/"partner".
func ParseSide(s string) (Side, bool) {
	switch s {
	case "self", "me", "mine", "my", "you", "yours":
		return Self, true
	case "them", "their", "theirs", "partner":
		return Them, true
	}
	return Self, false
}

// Predicate reports whether an item belongs to a category.
type Predicate func(inventory.Item) bool

// Request is one of ByCategory, ByCurrencyValue, ByIDList or ByVisiblePosition.
type Request interface {
	mode() Mode
}

// Mode names a selection mode.
type Mode string

const (
	ModeByCategory        Mode = "category"
	ModeByCurrencyValue   Mode = "currency"
	ModeByIDList          Mode = "ids"
	ModeByVisiblePosition Mode = "visible"
)

// ModeOf returns the mode of req.
func ModeOf(req Request) Mode { return req.mode() }

// ByCategory selects Amount items of Side's inventory that satisfy Match.
// A negative StartIndex counts from the end.
type ByCategory struct {
	Side       Side
	Amount     int
	StartIndex int
	Match      Predicate
}

// ByCurrencyValue selects currency items from Side's inventory whose
// combined value is Value, expressed in large units.
type ByCurrencyValue struct {
	Side          Side
	Value         decimal.Decimal
	StartIndex    int
	Denominations []currency.Denomination
}

// ByIDList selects the items with the given asset ids from either side, in
// IDs order. A repeated id selects its item once; the result is satisfied
// only when every entry of IDs was matched, so repeats leave it unsatisfied.
type ByIDList struct {
	IDs []string
}

// ByVisiblePosition selects from the host's currently visible items, in
// display order.
type ByVisiblePosition struct {
	Amount     int
	StartIndex int
	Visible    []inventory.Ref
}

func (ByCategory) mode() Mode        { return ModeByCategory }
func (ByCurrencyValue) mode() Mode   { return ModeByCurrencyValue }
func (ByIDList) mode() Mode          { return ModeByIDList }
func (ByVisiblePosition) mode() Mode { return ModeByVisiblePosition }

// Result is the outcome of a selection.
type Result struct {
	// Items are the selected items, at most the requested amount.
	Items []inventory.Item
	// Satisfied is true iff the full request was met from available items
	// not already in the offer.
	Satisfied bool
}

// Refs returns the identities of the selected items, in order.
func (r Result) Refs() []inventory.Ref {
	out := make([]inventory.Ref, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Ref()
	}
	return out
}

// Scope is the inventory context a selection runs against. A nil snapshot
// means that side's slice for the active game is not available.
type Scope struct {
	Self *inventory.Snapshot
	Them *inventory.Snapshot
	// Committed reports items already in the offer; nil means none are.
	Committed func(inventory.Ref) bool
}

func (s Scope) snapshot(side Side) *inventory.Snapshot {
	if side == Them {
		return s.Them
	}
	return s.Self
}

func (s Scope) committed(ref inventory.Ref) bool {
	return s.Committed != nil && s.Committed(ref)
}
