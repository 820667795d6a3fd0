package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/command"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
)

var errNoTrade = errors.New("no active trade; use 'use <self> <them> <app> <context>' first")

// handleLoad loads one snapshot file, or every file when no name is given.
// Names are resolved inside the snapshot directory.
func (s *session) handleLoad(args []string) ([]string, error) {
	dir := s.console.opts.SnapshotDir
	if dir == "" {
		return nil, errors.New("loading is disabled: no snapshot directory configured")
	}

	var snaps []*inventory.Snapshot
	switch len(args) {
	case 0:
		all, err := inventory.LoadSnapshotDir(dir)
		if err != nil {
			return nil, err
		}
		snaps = all
	case 1:
		path := filepath.Join(dir, filepath.Clean("/"+args[0]))
		snap, err := inventory.LoadSnapshotFile(path)
		if err != nil {
			return nil, err
		}
		snaps = []*inventory.Snapshot{snap}
	default:
		return nil, s.usage(command.HandlerLoad)
	}

	out := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		if err := s.enhancer.LoadInventory(snap); err != nil {
			if errors.Is(err, inventory.ErrSnapshotExists) {
				out = append(out, fmt.Sprintf("%s %d/%s already loaded", snap.Owner(), snap.AppID(), snap.ContextID()))
				continue
			}
			return out, err
		}
		out = append(out, fmt.Sprintf("loaded %s %d/%s: %d items", snap.Owner(), snap.AppID(), snap.ContextID(), snap.Len()))
	}
	return out, nil
}

// handleUse sets the active trade and recalls the remembered key price.
func (s *session) handleUse(ctx context.Context, args []string) ([]string, error) {
	if len(args) != 4 {
		return nil, s.usage(command.HandlerUse)
	}
	app, err := strconv.Atoi(args[2])
	if err != nil || app <= 0 {
		return nil, fmt.Errorf("invalid app id %q", args[2])
	}
	t := enhancer.Trade{Self: args[0], Them: args[1], AppID: app, ContextID: args[3]}
	s.enhancer.SetTrade(t)

	out := []string{fmt.Sprintf("trading %s with %s in %d/%s", t.Self, t.Them, t.AppID, t.ContextID)}
	units, err := s.enhancer.KeyPrice(ctx, app)
	switch {
	case err == nil:
		out = append(out, fmt.Sprintf("key price %s", currency.Format(units)))
	case errors.Is(err, enhancer.ErrNoKeyPrice):
	default:
		s.logger.Warn("recalling key price", zap.Int("app_id", app), zap.Error(err))
	}
	return out, nil
}

func (s *session) handleInventory(args []string) ([]string, error) {
	t, ok := s.enhancer.ActiveTrade()
	if !ok {
		return nil, errNoTrade
	}
	side, rest := splitSide(args)
	if len(rest) > 0 {
		return nil, s.usage(command.HandlerInventory)
	}
	owner := t.Self
	if side == selector.Them {
		owner = t.Them
	}
	snap, ok := s.enhancer.Store().Lookup(owner, t.AppID, t.ContextID)
	if !ok {
		return []string{fmt.Sprintf("inventory of %s not loaded", owner)}, nil
	}
	return renderInventory(snap, s.enhancer.Offer().Committed), nil
}

func (s *session) handleCategories() []string {
	var scripted []string
	if s.console.opts.Categories != nil {
		scripted = s.console.opts.Categories()
	}
	return renderCategories(scripted)
}

func (s *session) handleClear(args []string) ([]string, error) {
	var sides []selector.Side
	switch {
	case len(args) == 0 || (len(args) == 1 && args[0] == "all"):
		sides = []selector.Side{selector.Self, selector.Them}
	case len(args) == 1:
		side, ok := selector.ParseSide(args[0])
		if !ok {
			return nil, s.usage(command.HandlerClear)
		}
		sides = []selector.Side{side}
	default:
		return nil, s.usage(command.HandlerClear)
	}

	out := make([]string, 0, len(sides))
	for _, side := range sides {
		n := len(s.enhancer.Offer().Items(side))
		s.track(s.enhancer.ClearSide(side), fmt.Sprintf("removed %d items from %s", n, side))
		out = append(out, fmt.Sprintf("removing %d items from %s", n, side))
	}
	return out, nil
}

func (s *session) handleSummary() []string {
	return renderSummary(s.enhancer.Summary(selector.Self), s.enhancer.Summary(selector.Them))
}

// handlePrice shows the remembered key price or, given a value such as
// "60.33", remembers it.
func (s *session) handlePrice(ctx context.Context, args []string) ([]string, error) {
	t, ok := s.enhancer.ActiveTrade()
	if !ok {
		return nil, errNoTrade
	}
	switch len(args) {
	case 0:
		units, err := s.enhancer.KeyPrice(ctx, t.AppID)
		if errors.Is(err, enhancer.ErrNoKeyPrice) {
			return []string{fmt.Sprintf("no key price remembered for app %d", t.AppID)}, nil
		}
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("key price %s (%s)", currency.Format(units), currency.FormatTiers(units))}, nil
	case 1:
		amount, err := currency.ParseAmount(args[0])
		if err != nil {
			return nil, err
		}
		units := currency.ToSmallestUnit(amount)
		if units <= 0 {
			return nil, fmt.Errorf("key price must be positive, got %q", args[0])
		}
		if err := s.enhancer.SetKeyPrice(ctx, t.AppID, units); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("key price for app %d set to %s", t.AppID, currency.Format(units))}, nil
	default:
		return nil, s.usage(command.HandlerPrice)
	}
}
