package selector

import (
	"strings"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
)

const (
	// AppTF2 is the Team Fortress 2 app id.
	AppTF2 = 440
	// AppCS is the Counter-Strike app id.
	AppCS = 730

	tf2KeyName = "Mann Co. Supply Crate Key"
)

// Any matches every item.
func Any(inventory.Item) bool { return true }

// IsKey matches the trading key of the given game: the Mann Co. key for TF2,
// otherwise any item tagged "Key".
func IsKey(appID int) Predicate {
	if appID == AppTF2 {
		return NameEquals(tf2KeyName)
	}
	return HasTag("Key")
}

// IsDenomination matches items representing one unit of d.
func IsDenomination(d currency.Denomination) Predicate {
	return NameEquals(d.MarketName)
}

// IsCurrency matches items of any of the given denominations.
func IsCurrency(denoms []currency.Denomination) Predicate {
	return func(it inventory.Item) bool {
		for _, d := range denoms {
			if it.MarketName == d.MarketName {
				return true
			}
		}
		return false
	}
}

// NameEquals matches an exact market name.
func NameEquals(name string) Predicate {
	return func(it inventory.Item) bool { return it.MarketName == name }
}

// NameContains matches market names containing sub, ignoring case.
func NameContains(sub string) Predicate {
	sub = strings.ToLower(sub)
	return func(it inventory.Item) bool {
		return strings.Contains(strings.ToLower(it.MarketName), sub)
	}
}

// HasTag matches items carrying tag.
func HasTag(tag string) Predicate {
	return func(it inventory.Item) bool { return it.HasTag(tag) }
}
