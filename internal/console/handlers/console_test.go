package handlers_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/config"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/handlers"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/telnet"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/testutil"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

const readTimeout = 3 * time.Second

const aliceYAML = `
owner: alice
app_id: 440
context_id: "2"
items:
  - {asset_id: "a1", position: 1, market_name: "Refined Metal", tags: [Craft Item]}
  - {asset_id: "a2", position: 2, market_name: "Reclaimed Metal", tags: [Craft Item]}
  - {asset_id: "a3", position: 3, market_name: "Scrap Metal", tags: [Craft Item]}
  - {asset_id: "a4", position: 4, market_name: "Team Captain", tags: [Cosmetic]}
`

const bobYAML = `
owner: bob
app_id: 440
context_id: "2"
items:
  - {asset_id: "b1", position: 1, market_name: "Mann Co. Supply Crate Key", tags: [Tool]}
  - {asset_id: "b2", position: 2, market_name: "Mann Co. Supply Crate Key", tags: [Tool]}
  - {asset_id: "b3", position: 3, market_name: "Mann Co. Supply Crate Key", tags: [Tool]}
`

func snapshotDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.yaml"), []byte(aliceYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.yaml"), []byte(bobYAML), 0644))
	return dir
}

// startConsole serves a Console on a loopback port and connects a client.
func startConsole(t *testing.T, opts handlers.Options) *testutil.TelnetClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	opts.Logger = logger
	if opts.Enhancer.ApplyInterval == 0 {
		opts.Enhancer.ApplyInterval = time.Millisecond
		opts.Enhancer.SummaryPolicy = summary.Policy{
			StaleAfter:      time.Millisecond,
			DeferDelay:      5 * time.Millisecond,
			SmallOfferLimit: 204,
		}
	}

	acc := telnet.NewAcceptor(config.ConsoleConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, handlers.NewConsole(opts), logger)
	go func() { _ = acc.Start() }()
	select {
	case <-acc.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("console did not start in time")
	}
	t.Cleanup(acc.Stop)

	client := testutil.NewTelnetClient(t, acc.Addr())
	client.ReadUntil("[no trade]> ", readTimeout)
	return client
}

// run sends line and returns the output up to the next prompt.
func run(c *testutil.TelnetClient, line string) string {
	c.Send(line)
	return telnet.StripANSI(c.ReadUntil("]> ", readTimeout))
}

func TestConsole_HelpAndUnknown(t *testing.T) {
	c := startConsole(t, handlers.Options{})

	out := run(c, "help")
	assert.Contains(t, out, "keys [me|them] <amount> [start]")
	assert.Contains(t, out, "Select:")
	assert.Contains(t, out, "(inv, i)")

	out = run(c, "teleport")
	assert.Contains(t, out, `Unknown command "teleport"`)
}

func TestConsole_SelectionNeedsTrade(t *testing.T) {
	c := startConsole(t, handlers.Options{})
	out := run(c, "keys them 2")
	assert.Contains(t, out, "inventory not loaded yet; nothing selected")
}

func TestConsole_LoadDisabledWithoutDir(t *testing.T) {
	c := startConsole(t, handlers.Options{})
	assert.Contains(t, run(c, "load alice.yaml"), "loading is disabled")
}

func TestConsole_LoadStaysInsideSnapshotDir(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	out := run(c, "load ../../etc/passwd")
	assert.Contains(t, out, "no such file")
}

func TestConsole_LoadUseAndAddKeys(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})

	out := run(c, "load")
	assert.Contains(t, out, "loaded alice 440/2: 4 items")
	assert.Contains(t, out, "loaded bob 440/2: 3 items")
	assert.Contains(t, run(c, "load bob.yaml"), "bob 440/2 already loaded")

	out = run(c, "use alice bob 440 2")
	assert.Contains(t, out, "trading alice with bob in 440/2")

	c.Send("keys them 2")
	assert.Contains(t, telnet.StripANSI(c.ReadUntil("added 2 items", readTimeout)), "adding 2 keys from them")

	c.Send("summary")
	out = telnet.StripANSI(c.ReadUntil("2x Mann Co. Supply Crate Key", readTimeout))
	assert.Contains(t, out, "You give:\r\n  (nothing)")
	assert.Contains(t, out, "You receive:")

	c.Send("k them 5")
	assert.Contains(t, telnet.StripANSI(c.ReadUntil("added 1 items", readTimeout)), "adding 1 keys from them (not enough available)")
}

func TestConsole_MetalByValue(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	run(c, "load alice.yaml")
	run(c, "use alice bob 440 2")

	c.Send("metal me 1.33")
	out := telnet.StripANSI(c.ReadUntil("added 2 items", readTimeout))
	assert.Contains(t, out, "adding 2 metal items worth up to 1.33 ref from self")

	c.Send("inventory")
	out = telnet.StripANSI(c.ReadUntil("Team Captain", readTimeout))
	assert.Contains(t, out, "Refined Metal  [in offer]")
	assert.Contains(t, out, "Reclaimed Metal  [in offer]")
	assert.NotContains(t, out, "Scrap Metal  [in offer]")
}

func TestConsole_IDsAndClear(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	run(c, "load")
	run(c, "use alice bob 440 2")

	c.Send("ids a4 b1 zz")
	out := telnet.StripANSI(c.ReadUntil("added 2 items", readTimeout))
	assert.Contains(t, out, "adding 2 items by id (not enough available)")

	c.Send("clear them")
	c.ReadUntil("removed 1 items from them", readTimeout)
	c.Send("clear me")
	c.ReadUntil("removed 1 items from self", readTimeout)
}

func TestConsole_ExtremeNumbers(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	run(c, "load")
	run(c, "use alice bob 440 2")

	assert.Contains(t, run(c, "metal me 2e18"), "out of range")
	assert.Contains(t, run(c, "price 2e18"), "out of range")

	c.Send("keys them 1 9223372036854775807")
	assert.Contains(t, telnet.StripANSI(c.ReadUntil("added 1 items", readTimeout)), "adding 1 keys from them")

	c.Send("keys them 9223372036854775807 -9223372036854775808")
	assert.Contains(t, telnet.StripANSI(c.ReadUntil("added 2 items", readTimeout)), "adding 2 keys from them (not enough available)")
}

func TestConsole_WaitRunsAfterLoad(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	run(c, "use alice bob 440 2")

	assert.Contains(t, run(c, "wait keys them 1"), "waiting for inventory to load")

	c.Send("load bob.yaml")
	out := telnet.StripANSI(c.ReadUntil("added 1 items", readTimeout))
	assert.Contains(t, out, "adding 1 keys from them")
}

func TestConsole_WaitRejectsNonSelection(t *testing.T) {
	c := startConsole(t, handlers.Options{})
	run(c, "use alice bob 440 2")
	assert.Contains(t, run(c, "wait summary"), "usage: wait <command>")
}

func TestConsole_PriceRoundTrip(t *testing.T) {
	prices := enhancer.NewMemoryKeyPrices()
	c := startConsole(t, handlers.Options{Enhancer: enhancer.Options{KeyPrices: prices}})

	assert.Contains(t, run(c, "price"), "no active trade")
	run(c, "use alice bob 440 2")
	assert.Contains(t, run(c, "price"), "no key price remembered for app 440")
	assert.Contains(t, run(c, "price 60.33"), "key price for app 440 set to 60.33 ref")
	assert.Contains(t, run(c, "price"), "key price 60.33 ref (60 Refined, 1 Reclaimed)")

	units, err := prices.Get(context.Background(), 440)
	require.NoError(t, err)
	assert.Equal(t, 543, units)
}

func TestConsole_UseRecallsStoredPrice(t *testing.T) {
	prices := enhancer.NewMemoryKeyPrices()
	require.NoError(t, prices.Save(context.Background(), 440, 543))
	c := startConsole(t, handlers.Options{Enhancer: enhancer.Options{KeyPrices: prices}})
	assert.Contains(t, run(c, "use alice bob 440 2"), "key price 60.33 ref")
}

func TestConsole_Categories(t *testing.T) {
	c := startConsole(t, handlers.Options{Categories: func() []string { return []string{"hats", "crates"} }})
	out := run(c, "categories")
	assert.Contains(t, out, "built in: any, keys, metal")
	assert.Contains(t, out, "scripted: crates, hats")
}

func TestConsole_UnknownCategory(t *testing.T) {
	c := startConsole(t, handlers.Options{SnapshotDir: snapshotDir(t)})
	run(c, "load")
	run(c, "use alice bob 440 2")
	assert.Contains(t, run(c, "match them hats 1"), "unknown category")
}

func TestConsole_UsageErrors(t *testing.T) {
	c := startConsole(t, handlers.Options{})
	assert.Contains(t, run(c, "use alice bob"), "usage: use <self> <them> <app> <context>")
	assert.Contains(t, run(c, "use alice bob x 2"), `invalid app id "x"`)
	run(c, "use alice bob 440 2")
	assert.Contains(t, run(c, "keys them lots"), "usage: keys")
	assert.Contains(t, run(c, "metal me abc"), "invalid amount")
	assert.Contains(t, run(c, "ids"), "usage: ids")
}

func TestConsole_Quit(t *testing.T) {
	c := startConsole(t, handlers.Options{})
	c.Send("quit")
	c.ReadUntil("Bye.", readTimeout)
}
