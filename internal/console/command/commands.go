// Package command provides the console command registry, parser, and
// built-in command definitions.
package command

// Categories for organizing commands.
const (
	CategorySelect  = "select"
	CategoryOffer   = "offer"
	CategorySession = "session"
	CategorySystem  = "system"
)

// CategoryOrder is the display order of categories in help output.
var CategoryOrder = []string{CategorySession, CategorySelect, CategoryOffer, CategorySystem}

// Handler identifiers mapping commands to console handlers.
const (
	HandlerHelp       = "help"
	HandlerQuit       = "quit"
	HandlerLoad       = "load"
	HandlerUse        = "use"
	HandlerInventory  = "inventory"
	HandlerCategories = "categories"
	HandlerKeys       = "keys"
	HandlerMetal      = "metal"
	HandlerItems      = "items"
	HandlerMatch      = "match"
	HandlerIDs        = "ids"
	HandlerVisible    = "visible"
	HandlerClear      = "clear"
	HandlerSummary    = "summary"
	HandlerPrice      = "price"
	HandlerWait       = "wait"
)

// Command defines a console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage is the argument synopsis shown by help.
	Usage string
	// Help is the short help text.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler selects the console handler.
	Handler string
}

// BuiltinCommands returns all built-in console commands.
func BuiltinCommands() []Command {
	return []Command{
		// Session
		{Name: "load", Usage: "<file>", Help: "Load a recorded inventory slice", Category: CategorySession, Handler: HandlerLoad},
		{Name: "use", Usage: "<self> <them> <app> <context>", Help: "Set the active trade context", Category: CategorySession, Handler: HandlerUse},
		{Name: "inventory", Aliases: []string{"inv", "i"}, Usage: "[me|them]", Help: "List an inventory slice in display order", Category: CategorySession, Handler: HandlerInventory},
		{Name: "categories", Aliases: []string{"cats"}, Help: "List item categories", Category: CategorySession, Handler: HandlerCategories},

		// Selection
		{Name: "keys", Aliases: []string{"k"}, Usage: "[me|them] <amount> [start]", Help: "Add keys", Category: CategorySelect, Handler: HandlerKeys},
		{Name: "metal", Aliases: []string{"m"}, Usage: "[me|them] <value> [start]", Help: "Add metal worth value, e.g. 13.33", Category: CategorySelect, Handler: HandlerMetal},
		{Name: "items", Aliases: []string{"add"}, Usage: "[me|them] <amount> [start]", Help: "Add items of any kind", Category: CategorySelect, Handler: HandlerItems},
		{Name: "match", Aliases: []string{"cat"}, Usage: "[me|them] <category> <amount> [start]", Help: "Add items of a category", Category: CategorySelect, Handler: HandlerMatch},
		{Name: "ids", Usage: "<asset id>...", Help: "Add items by asset id", Category: CategorySelect, Handler: HandlerIDs},
		{Name: "visible", Aliases: []string{"page"}, Usage: "[me|them] <amount> [start]", Help: "Add items in display order", Category: CategorySelect, Handler: HandlerVisible},
		{Name: "wait", Usage: "<command>", Help: "Run a selection once the inventory is loaded", Category: CategorySelect, Handler: HandlerWait},

		// Offer
		{Name: "clear", Aliases: []string{"cl"}, Usage: "[me|them|all]", Help: "Remove items from the offer", Category: CategoryOffer, Handler: HandlerClear},
		{Name: "summary", Aliases: []string{"sum", "s"}, Help: "Show the offer summary", Category: CategoryOffer, Handler: HandlerSummary},
		{Name: "price", Usage: "[value]", Help: "Show or remember the key price in metal", Category: CategoryOffer, Handler: HandlerPrice},

		// System
		{Name: "quit", Aliases: []string{"exit"}, Help: "Disconnect from the console", Category: CategorySystem, Handler: HandlerQuit},
		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
	}
}

// IsSelection reports whether the handler adds items to the offer.
func IsSelection(handler string) bool {
	switch handler {
	case HandlerKeys, HandlerMetal, HandlerItems, HandlerMatch, HandlerIDs, HandlerVisible:
		return true
	default:
		return false
	}
}
