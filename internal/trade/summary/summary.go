// Package summary derives the human-readable overview of an offer's contents
// and keeps it current as the offer changes.
package summary

import (
	"fmt"
	"sort"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
)

// Group is the number of offered items sharing a market name.
type Group struct {
	MarketName string
	Count      int
}

// BuildOptions parameterise Build.
type BuildOptions struct {
	// KeyPrice is the remembered value of one key in smallest currency
	// units. Zero means unknown and leaves Summary.Value unset.
	KeyPrice int
}

// Summary describes one side of an offer.
type Summary struct {
	Items      int
	Groups     []Group
	Keys       int
	MetalUnits int
	// Value is Keys*KeyPrice + MetalUnits when HasValue is true.
	Value    int
	HasValue bool
}

// Build summarises items.
//
// Postcondition: Groups are ordered by descending Count, then MarketName.
func Build(items []inventory.Item, opts BuildOptions) Summary {
	s := Summary{Items: len(items)}
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.MarketName]++
		if selector.IsKey(it.AppID)(it) {
			s.Keys++
			continue
		}
		for _, d := range currency.Metal {
			if it.MarketName == d.MarketName {
				s.MetalUnits += d.Units
				break
			}
		}
	}

	s.Groups = make([]Group, 0, len(counts))
	for name, n := range counts {
		s.Groups = append(s.Groups, Group{MarketName: name, Count: n})
	}
	sort.Slice(s.Groups, func(i, j int) bool {
		if s.Groups[i].Count != s.Groups[j].Count {
			return s.Groups[i].Count > s.Groups[j].Count
		}
		return s.Groups[i].MarketName < s.Groups[j].MarketName
	})

	if opts.KeyPrice > 0 {
		s.Value = s.Keys*opts.KeyPrice + s.MetalUnits
		s.HasValue = true
	}
	return s
}

// Lines renders s for display, one line per group followed by the currency
// totals.
func (s Summary) Lines() []string {
	if s.Items == 0 {
		return []string{"(nothing)"}
	}
	out := make([]string, 0, len(s.Groups)+2)
	for _, g := range s.Groups {
		out = append(out, fmt.Sprintf("%dx %s", g.Count, g.MarketName))
	}
	out = append(out, fmt.Sprintf("%d keys, %s", s.Keys, currency.Format(s.MetalUnits)))
	if s.HasValue {
		out = append(out, fmt.Sprintf("total value %s", currency.Format(s.Value)))
	}
	return out
}
