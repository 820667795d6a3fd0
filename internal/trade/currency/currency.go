// Package currency models the three-tier metal denomination system used for
// pricing trades: Scrap is the smallest unit, a Reclaimed is worth 3 Scrap and
// a Refined is worth 9 Scrap.
package currency

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// ScrapPerReclaimed is the number of smallest units in one mid-tier unit.
	ScrapPerReclaimed = 3
	// ScrapPerRefined is the number of smallest units in one large-tier unit.
	ScrapPerRefined = 9
)

// Denomination is one currency tier and the market name of the item that
// represents it in an inventory.
type Denomination struct {
	Name       string
	MarketName string
	// Units is the value of one item of this denomination in smallest units.
	Units int
}

var (
	Refined   = Denomination{Name: "Refined", MarketName: "Refined Metal", Units: ScrapPerRefined}
	Reclaimed = Denomination{Name: "Reclaimed", MarketName: "Reclaimed Metal", Units: ScrapPerReclaimed}
	Scrap     = Denomination{Name: "Scrap", MarketName: "Scrap Metal", Units: 1}
)

// Metal lists the denominations from largest to smallest.
var Metal = []Denomination{Refined, Reclaimed, Scrap}

// maxUnits is the largest smallest-unit total an int holds.
var maxUnits = decimal.NewFromInt(math.MaxInt)

// scrapValue is the large-unit notation of one smallest unit ("0.11 ref").
var scrapValue = decimal.New(11, -2)

// Count is a target or actual number of items of one denomination.
type Count struct {
	Denomination Denomination
	Count        int
}

// ToSmallestUnit converts an amount expressed in large units to smallest
// units, rounding half away from zero.
//
// Postcondition: returns 0 when amount <= 0 and math.MaxInt when the result
// does not fit in an int.
func ToSmallestUnit(amount decimal.Decimal) int {
	if !amount.IsPositive() {
		return 0
	}
	units := amount.Mul(decimal.NewFromInt(ScrapPerRefined)).Round(0)
	if units.GreaterThan(maxUnits) {
		return math.MaxInt
	}
	return int(units.IntPart())
}

// FromSmallestUnit renders a smallest-unit total in the conventional
// large-unit notation where each leftover smallest unit counts as 0.11
// (13 Refined and 3 Scrap is 13.33).
//
// Precondition: units >= 0.
func FromSmallestUnit(units int) decimal.Decimal {
	whole := units / ScrapPerRefined
	rest := units % ScrapPerRefined
	return decimal.NewFromInt(int64(whole)).Add(scrapValue.Mul(decimal.NewFromInt(int64(rest))))
}

// Decompose splits units greedily across the denominations in order: each
// denomination takes floor(remaining/Units) and the remainder carries on.
//
// Precondition: every denomination in order has Units > 0.
// Postcondition: len(result) == len(order); Recombine(result) <= units and the
// counts are all zero when units <= 0.
func Decompose(units int, order []Denomination) []Count {
	out := make([]Count, len(order))
	remaining := units
	for i, d := range order {
		out[i].Denomination = d
		if remaining <= 0 {
			continue
		}
		out[i].Count = remaining / d.Units
		remaining -= out[i].Count * d.Units
	}
	return out
}

// Recombine returns the smallest-unit total of counts.
func Recombine(counts []Count) int {
	total := 0
	for _, c := range counts {
		total += c.Count * c.Denomination.Units
	}
	return total
}

// ParseAmount parses a large-unit amount such as "13.33".
//
// Postcondition: returns an error for malformed or negative input and for
// amounts whose smallest-unit value does not fit in an int.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("currency: amount %q must not be negative", s)
	}
	if d.Mul(decimal.NewFromInt(ScrapPerRefined)).Round(0).GreaterThan(maxUnits) {
		return decimal.Zero, fmt.Errorf("currency: amount %q is out of range", s)
	}
	return d, nil
}

// Format returns units in large-unit notation, e.g. "13.33 ref".
func Format(units int) string {
	return FromSmallestUnit(units).StringFixed(2) + " ref"
}

// FormatTiers returns a per-denomination breakdown of units such as
// "13 Refined, 1 Reclaimed". Zero tiers are omitted except Scrap, which
// appears when nothing else does.
//
// Precondition: units >= 0.
func FormatTiers(units int) string {
	var parts []string
	for _, c := range Decompose(units, Metal) {
		if c.Count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.Count, c.Denomination.Name))
		}
	}
	if len(parts) == 0 {
		return "0 Scrap"
	}
	return strings.Join(parts, ", ")
}
