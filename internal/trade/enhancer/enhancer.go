// Package enhancer turns user actions on a trade offer into selections and
// paced offer mutations, and keeps the offer summary current.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/applier"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/offer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/readiness"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

// ErrUnknownCategory is returned when an action names a category that is
// neither built in nor provided by a scripted predicate.
var ErrUnknownCategory = errors.New("unknown category")

// DefaultApplyInterval is the spacing between successive offer mutations.
const DefaultApplyInterval = 50 * time.Millisecond

// Predicates resolves named item categories, typically from scripts.
type Predicates interface {
	Predicate(name string) (selector.Predicate, bool)
}

// Trade is the active trade context: the two parties and the inventory slice
// items are drawn from.
type Trade struct {
	Self      string
	Them      string
	AppID     int
	ContextID string
}

func (t Trade) owner(side selector.Side) string {
	if side == selector.Them {
		return t.Them
	}
	return t.Self
}

// Action is one user request against the offer.
type Action struct {
	Mode selector.Mode
	Side selector.Side
	// Category names the predicate for ModeByCategory: "keys", "any", a
	// currency denomination, "name:<text>" for a market name substring or a
	// scripted predicate.
	Category string
	// Amount is the item count for ModeByCategory and ModeByVisiblePosition.
	Amount int
	// Value is the currency amount in large units for ModeByCurrencyValue.
	Value      decimal.Decimal
	StartIndex int
	IDs        []string
	Visible    []inventory.Ref
}

// Outcome reports what Execute did.
type Outcome struct {
	// Ready is false when the active context was missing; nothing was done.
	Ready  bool
	Result selector.Result
	// Run applies Result to the offer; nil when Ready is false.
	Run *applier.Run
}

// Options configure an Enhancer. Zero values select defaults.
type Options struct {
	Clock         clockwork.Clock
	ApplyInterval time.Duration
	SummaryPolicy summary.Policy
	Predicates    Predicates
	KeyPrices     KeyPriceStore
	// OnSummary receives every recomputed pair of summaries.
	OnSummary func(self, them summary.Summary)
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// Enhancer owns one offer under construction together with the inventory
// store, readiness coordinator, applier and summarizer that serve it.
type Enhancer struct {
	store      *inventory.Store
	ready      *readiness.Coordinator
	offer      *offer.Offer
	applier    *applier.Applier
	summarizer *summary.Summarizer
	unsub      func()

	interval   time.Duration
	predicates Predicates
	keyPrices  KeyPriceStore
	onSummary  func(self, them summary.Summary)
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	trade     Trade
	hasTrade  bool
	reserved  map[inventory.Ref]bool
	priceByID map[int]int
	summaries [2]summary.Summary
}

// New creates an Enhancer with an empty offer and store.
//
// Postcondition: the summarizer is subscribed to offer changes until Close.
func New(opts Options) *Enhancer {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	interval := opts.ApplyInterval
	if interval <= 0 {
		interval = DefaultApplyInterval
	}
	policy := opts.SummaryPolicy
	if policy == (summary.Policy{}) {
		policy = summary.DefaultPolicy()
	}
	keyPrices := opts.KeyPrices
	if keyPrices == nil {
		keyPrices = NewMemoryKeyPrices()
	}
	logger := observability.OrNop(opts.Logger)

	e := &Enhancer{
		store:      inventory.NewStore(),
		ready:      readiness.NewCoordinator(logger, opts.Metrics),
		offer:      offer.New(),
		applier:    applier.New(clk, logger),
		interval:   interval,
		predicates: opts.Predicates,
		keyPrices:  keyPrices,
		onSummary:  opts.OnSummary,
		logger:     logger.With(zap.String("component", "enhancer")),
		metrics:    opts.Metrics,
		reserved:   make(map[inventory.Ref]bool),
		priceByID:  make(map[int]int),
	}
	e.summarizer = summary.NewSummarizer(clk, policy, e.offer.Count, e.recomputeSummary, logger, opts.Metrics)
	e.unsub = e.offer.Subscribe(e.summarizer.Notify)
	return e
}

// Offer returns the offer under construction.
func (e *Enhancer) Offer() *offer.Offer { return e.offer }

// Store returns the inventory store.
func (e *Enhancer) Store() *inventory.Store { return e.store }

// Coordinator returns the readiness coordinator.
func (e *Enhancer) Coordinator() *readiness.Coordinator { return e.ready }

// SetTrade makes t the active trade context.
func (e *Enhancer) SetTrade(t Trade) {
	e.mu.Lock()
	e.trade = t
	e.hasTrade = true
	e.mu.Unlock()
	e.logger.Info("active trade set",
		zap.String("self", t.Self),
		zap.String("them", t.Them),
		zap.Int("app_id", t.AppID),
		zap.String("context_id", t.ContextID),
	)
}

// ActiveTrade returns the active trade context, if any.
func (e *Enhancer) ActiveTrade() (Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trade, e.hasTrade
}

// LoadInventory stores snap and announces it to waiting callers.
//
// Postcondition: on success, callbacks waiting for snap's slice have run.
func (e *Enhancer) LoadInventory(snap *inventory.Snapshot) error {
	if err := e.store.Put(snap); err != nil {
		return fmt.Errorf("enhancer: Enhancer.LoadInventory: %w", err)
	}
	e.logger.Info("inventory loaded",
		zap.String("owner", snap.Owner()),
		zap.Int("app_id", snap.AppID()),
		zap.String("context_id", snap.ContextID()),
		zap.Int("items", snap.Len()),
	)
	e.ready.Announce(snap.Owner(), snap.AppID(), snap.ContextID())
	return nil
}

func (e *Enhancer) scope(t Trade) selector.Scope {
	self, _ := e.store.Lookup(t.Self, t.AppID, t.ContextID)
	them, _ := e.store.Lookup(t.Them, t.AppID, t.ContextID)
	return selector.Scope{
		Self: self,
		Them: them,
		Committed: func(ref inventory.Ref) bool {
			if e.offer.Committed(ref) {
				return true
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.reserved[ref]
		},
	}
}

// request converts a into a selection request for trade t.
func (e *Enhancer) request(a Action, t Trade) (selector.Request, error) {
	switch a.Mode {
	case selector.ModeByCategory:
		match, err := e.category(a.Category, t.AppID)
		if err != nil {
			return nil, err
		}
		return selector.ByCategory{Side: a.Side, Amount: a.Amount, StartIndex: a.StartIndex, Match: match}, nil
	case selector.ModeByCurrencyValue:
		return selector.ByCurrencyValue{Side: a.Side, Value: a.Value, StartIndex: a.StartIndex}, nil
	case selector.ModeByIDList:
		return selector.ByIDList{IDs: a.IDs}, nil
	case selector.ModeByVisiblePosition:
		return selector.ByVisiblePosition{Amount: a.Amount, StartIndex: a.StartIndex, Visible: a.Visible}, nil
	default:
		return nil, fmt.Errorf("enhancer: unknown selection mode %q", a.Mode)
	}
}

func (e *Enhancer) category(name string, appID int) (selector.Predicate, error) {
	switch strings.ToLower(name) {
	case "key", "keys":
		return selector.IsKey(appID), nil
	case "", "any", "items":
		return selector.Any, nil
	case "metal":
		return selector.IsCurrency(currency.Metal), nil
	}
	if sub, ok := strings.CutPrefix(strings.ToLower(name), "name:"); ok && sub != "" {
		return selector.NameContains(sub), nil
	}
	for _, d := range currency.Metal {
		if strings.EqualFold(name, d.Name) || strings.EqualFold(name, d.MarketName) {
			return selector.IsDenomination(d), nil
		}
	}
	if e.predicates != nil {
		if p, ok := e.predicates.Predicate(name); ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("enhancer: category %q: %w", name, ErrUnknownCategory)
}

// Execute selects items for a from the active trade context and adds them to
// the offer through the applier. A missing context or inventory slice yields
// an Outcome with Ready false and no error.
func (e *Enhancer) Execute(a Action) (Outcome, error) {
	t, ok := e.ActiveTrade()
	if !ok {
		e.logger.Debug("no active trade, action ignored", zap.String("mode", string(a.Mode)))
		e.metrics.ObserveSelection(string(a.Mode), observability.OutcomeIndeterminate, 0)
		return Outcome{}, nil
	}
	req, err := e.request(a, t)
	if err != nil {
		return Outcome{}, err
	}
	scope := e.scope(t)
	res, ok := selector.Select(req, scope)
	if !ok {
		e.logger.Debug("inventory not available, action ignored", zap.String("mode", string(a.Mode)))
		e.metrics.ObserveSelection(string(a.Mode), observability.OutcomeIndeterminate, 0)
		return Outcome{}, nil
	}
	outcome := observability.OutcomeSatisfied
	if !res.Satisfied {
		outcome = observability.OutcomePartial
	}
	e.metrics.ObserveSelection(string(a.Mode), outcome, len(res.Items))

	e.mu.Lock()
	ops := make([]applier.Operation, 0, len(res.Items))
	for _, it := range res.Items {
		it := it
		side := a.Side
		if a.Mode == selector.ModeByIDList || a.Mode == selector.ModeByVisiblePosition {
			side = sideOf(scope, it)
		}
		e.reserved[it.Ref()] = true
		ops = append(ops, func() { e.add(side, it) })
	}
	e.mu.Unlock()

	mode := a.Mode
	run := e.applier.Apply(ops, e.interval, func() {
		e.logger.Info("selection applied",
			zap.String("mode", string(mode)),
			zap.Int("items", len(res.Items)),
			zap.Bool("satisfied", res.Satisfied),
		)
	})
	return Outcome{Ready: true, Result: res, Run: run}, nil
}

// sideOf reports which party owns it. Ids are looked up on the local side
// first, matching selection.
func sideOf(scope selector.Scope, it inventory.Item) selector.Side {
	if scope.Self != nil {
		if got, ok := scope.Self.Item(it.AssetID); ok && got.Ref() == it.Ref() {
			return selector.Self
		}
	}
	return selector.Them
}

func (e *Enhancer) add(side selector.Side, it inventory.Item) {
	e.mu.Lock()
	delete(e.reserved, it.Ref())
	e.mu.Unlock()

	if err := e.offer.Add(side, it); err != nil {
		e.logger.Debug("item not added", zap.Stringer("item", it.Ref()), zap.Error(err))
		return
	}
	e.metrics.ObserveMutation("add")
}

// ExecuteWhenReady runs a as soon as the inventory it needs is loaded and
// passes the outcome to then. If the inventory is already available, a runs
// before ExecuteWhenReady returns. Without an active trade then receives an
// Outcome with Ready false.
func (e *Enhancer) ExecuteWhenReady(a Action, then func(Outcome, error)) {
	if then == nil {
		then = func(Outcome, error) {}
	}
	t, ok := e.ActiveTrade()
	if !ok {
		then(Outcome{}, nil)
		return
	}
	if key, missing := e.missingSlice(a, t); missing {
		e.logger.Debug("waiting for inventory", zap.Stringer("slice", key), zap.String("mode", string(a.Mode)))
		retry := func() { e.ExecuteWhenReady(a, then) }
		if a.Mode == selector.ModeByIDList {
			// Ids are not tied to a slice; any arrival for the owner triggers
			// a re-check, which waits again if the slice is still missing.
			e.ready.RegisterAny(key.Owner, retry)
			return
		}
		e.ready.Register(key, retry)
		return
	}
	then(e.Execute(a))
}

// missingSlice returns the first inventory slice a needs that is not loaded.
func (e *Enhancer) missingSlice(a Action, t Trade) (readiness.Key, bool) {
	sides := []selector.Side{a.Side}
	if a.Mode == selector.ModeByIDList || a.Mode == selector.ModeByVisiblePosition {
		sides = []selector.Side{selector.Self, selector.Them}
	}
	for _, side := range sides {
		owner := t.owner(side)
		if owner == "" {
			continue
		}
		if _, ok := e.store.Lookup(owner, t.AppID, t.ContextID); !ok {
			return readiness.Key{Owner: owner, AppID: t.AppID, ContextID: t.ContextID}, true
		}
	}
	return readiness.Key{}, false
}

// ClearSide removes every item on side from the offer, last slot first.
func (e *Enhancer) ClearSide(side selector.Side) *applier.Run {
	items := e.offer.Items(side)
	ops := make([]applier.Operation, len(items))
	for i, it := range items {
		ref := it.Ref()
		ops[i] = func() {
			if err := e.offer.Remove(side, ref); err != nil {
				e.logger.Debug("item not removed", zap.Stringer("item", ref), zap.Error(err))
				return
			}
			e.metrics.ObserveMutation("remove")
		}
	}
	return e.applier.ApplyReversed(ops, e.interval, func() {
		e.logger.Info("offer side cleared", zap.Stringer("side", side), zap.Int("items", len(items)))
	})
}

// SetKeyPrice remembers the value of one key for appID, in smallest units.
func (e *Enhancer) SetKeyPrice(ctx context.Context, appID, units int) error {
	if err := e.keyPrices.Save(ctx, appID, units); err != nil {
		return fmt.Errorf("enhancer: Enhancer.SetKeyPrice: %w", err)
	}
	e.mu.Lock()
	e.priceByID[appID] = units
	e.mu.Unlock()
	e.summarizer.Notify()
	return nil
}

// KeyPrice returns the remembered key value for appID. The error wraps
// ErrNoKeyPrice when none is stored.
func (e *Enhancer) KeyPrice(ctx context.Context, appID int) (int, error) {
	e.mu.Lock()
	units, ok := e.priceByID[appID]
	e.mu.Unlock()
	if ok {
		return units, nil
	}
	units, err := e.keyPrices.Get(ctx, appID)
	if err != nil {
		return 0, fmt.Errorf("enhancer: Enhancer.KeyPrice: %w", err)
	}
	e.mu.Lock()
	e.priceByID[appID] = units
	e.mu.Unlock()
	return units, nil
}

func (e *Enhancer) recomputeSummary() {
	e.mu.Lock()
	price := 0
	if e.hasTrade {
		price = e.priceByID[e.trade.AppID]
	}
	e.mu.Unlock()

	opts := summary.BuildOptions{KeyPrice: price}
	self := summary.Build(e.offer.Items(selector.Self), opts)
	them := summary.Build(e.offer.Items(selector.Them), opts)

	e.mu.Lock()
	e.summaries[selector.Self] = self
	e.summaries[selector.Them] = them
	e.mu.Unlock()

	if e.onSummary != nil {
		e.onSummary(self, them)
	}
}

// Summary returns the most recently computed summary of side.
func (e *Enhancer) Summary(side selector.Side) summary.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaries[side]
}

// Close stops summary recomputation and detaches from the offer.
func (e *Enhancer) Close() {
	e.unsub()
	e.summarizer.Stop()
}
