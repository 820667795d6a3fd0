package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/command"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/telnet"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

// builtinCategories are the category names resolved without scripts.
var builtinCategories = []string{"any", "keys", "metal", "refined", "reclaimed", "scrap", "name:<text>"}

func renderHelp(r *command.Registry) []string {
	byCat := r.CommandsByCategory()
	var out []string
	for _, cat := range command.CategoryOrder {
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		out = append(out, telnet.Colorize(telnet.BrightYellow, strings.ToUpper(cat[:1])+cat[1:]+":"))
		for _, c := range cmds {
			synopsis := strings.TrimSpace(c.Name + " " + c.Usage)
			line := fmt.Sprintf("  %s%-40s%s %s", telnet.BrightCyan, synopsis, telnet.Reset, c.Help)
			if len(c.Aliases) > 0 {
				line += telnet.Colorf(telnet.Dim, " (%s)", strings.Join(c.Aliases, ", "))
			}
			out = append(out, line)
		}
	}
	return out
}

func renderCategories(scripted []string) []string {
	out := []string{"built in: " + strings.Join(builtinCategories, ", ")}
	if len(scripted) == 0 {
		return append(out, "scripted: (none)")
	}
	names := append([]string(nil), scripted...)
	sort.Strings(names)
	return append(out, "scripted: "+strings.Join(names, ", "))
}

// renderInventory lists snap in display order, marking items already in the
// offer.
func renderInventory(snap *inventory.Snapshot, inOffer func(inventory.Ref) bool) []string {
	items := snap.Ordered()
	out := make([]string, 0, len(items)+1)
	out = append(out, telnet.Colorf(telnet.BrightYellow, "%s: %d items", snap.Owner(), len(items)))
	for i, it := range items {
		line := fmt.Sprintf("%4d  %-12s %s", i, it.AssetID, it.MarketName)
		if inOffer(it.Ref()) {
			line = telnet.Colorize(telnet.Dim, line+"  [in offer]")
		}
		out = append(out, line)
	}
	return out
}

func renderSummary(self, them summary.Summary) []string {
	out := []string{telnet.Colorize(telnet.BrightGreen, "You give:")}
	out = append(out, indent(self.Lines())...)
	out = append(out, telnet.Colorize(telnet.BrightGreen, "You receive:"))
	out = append(out, indent(them.Lines())...)
	if self.HasValue && them.HasValue {
		diff := them.Value - self.Value
		color := telnet.Green
		if diff < 0 {
			color = telnet.Red
		}
		sign := "+"
		if diff < 0 {
			sign, diff = "-", -diff
		}
		out = append(out, telnet.Colorf(color, "Balance: %s%s", sign, currency.Format(diff)))
	}
	return out
}

// statusLine is the one-line offer state shown after changes.
func statusLine(self, them summary.Summary) string {
	return telnet.Colorf(telnet.BrightBlack, "offer: you give %d items (%d keys, %s), receive %d items (%d keys, %s)",
		self.Items, self.Keys, currency.Format(self.MetalUnits),
		them.Items, them.Keys, currency.Format(them.MetalUnits))
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "  " + l
	}
	return out
}
