package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/command"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/applier"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/currency"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/inventory"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/selector"
)

// splitSide consumes an optional leading side argument. The default side is
// the local user.
func splitSide(args []string) (selector.Side, []string) {
	if len(args) > 0 {
		if side, ok := selector.ParseSide(strings.ToLower(args[0])); ok {
			return side, args[1:]
		}
	}
	return selector.Self, args
}

// amountAndStart parses "<amount> [start]".
func amountAndStart(args []string) (amount, start int, err error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, errors.New("expected <amount> [start]")
	}
	if amount, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid amount %q", args[0])
	}
	if len(args) == 2 {
		if start, err = strconv.Atoi(args[1]); err != nil {
			return 0, 0, fmt.Errorf("invalid start index %q", args[1])
		}
	}
	return amount, start, nil
}

// buildAction converts a selection command into an enhancer action.
func (s *session) buildAction(handler string, args []string) (enhancer.Action, error) {
	if handler == command.HandlerIDs {
		if len(args) == 0 {
			return enhancer.Action{}, s.usage(handler)
		}
		return enhancer.Action{Mode: selector.ModeByIDList, IDs: args}, nil
	}

	side, rest := splitSide(args)
	a := enhancer.Action{Side: side}
	var err error

	switch handler {
	case command.HandlerMetal:
		if len(rest) < 1 || len(rest) > 2 {
			return a, s.usage(handler)
		}
		value, err := currency.ParseAmount(rest[0])
		if err != nil {
			return a, err
		}
		a.Mode = selector.ModeByCurrencyValue
		a.Value = value
		if len(rest) == 2 {
			if a.StartIndex, err = strconv.Atoi(rest[1]); err != nil {
				return a, fmt.Errorf("invalid start index %q", rest[1])
			}
		}
		return a, nil
	case command.HandlerMatch:
		if len(rest) < 1 {
			return a, s.usage(handler)
		}
		a.Category = rest[0]
		rest = rest[1:]
	case command.HandlerKeys:
		a.Category = "keys"
	case command.HandlerItems:
		a.Category = "any"
	case command.HandlerVisible:
		a.Mode = selector.ModeByVisiblePosition
	}

	if a.Amount, a.StartIndex, err = amountAndStart(rest); err != nil {
		return a, fmt.Errorf("%w (%v)", s.usage(handler), err)
	}
	if a.Mode == "" {
		a.Mode = selector.ModeByCategory
	}
	if a.Mode == selector.ModeByVisiblePosition {
		a.Visible = s.visible(side)
	}
	return a, nil
}

// visible returns side's items in display order, standing in for the page
// shown by the host.
func (s *session) visible(side selector.Side) []inventory.Ref {
	t, ok := s.enhancer.ActiveTrade()
	if !ok {
		return nil
	}
	owner := t.Self
	if side == selector.Them {
		owner = t.Them
	}
	snap, ok := s.enhancer.Store().Lookup(owner, t.AppID, t.ContextID)
	if !ok {
		return nil
	}
	items := snap.Ordered()
	refs := make([]inventory.Ref, len(items))
	for i, it := range items {
		refs[i] = it.Ref()
	}
	return refs
}

func (s *session) handleSelection(handler string, args []string) ([]string, error) {
	a, err := s.buildAction(handler, args)
	if err != nil {
		return nil, err
	}
	outcome, err := s.enhancer.Execute(a)
	if err != nil {
		return nil, err
	}
	return s.report(a, outcome), nil
}

// handleWait runs a selection command as soon as the inventory it needs is
// loaded.
func (s *session) handleWait(raw string) ([]string, error) {
	if _, ok := s.enhancer.ActiveTrade(); !ok {
		return nil, errNoTrade
	}
	parsed := command.Parse(raw)
	cmd, ok := s.console.registry.Resolve(parsed.Command)
	if !ok || !command.IsSelection(cmd.Handler) || cmd.Handler == command.HandlerVisible {
		return nil, s.usage(command.HandlerWait)
	}
	a, err := s.buildAction(cmd.Handler, parsed.Args)
	if err != nil {
		return nil, err
	}

	ran := false
	var out []string
	var runErr error
	immediate := true
	s.enhancer.ExecuteWhenReady(a, func(o enhancer.Outcome, err error) {
		ran = true
		if err != nil {
			if immediate {
				runErr = err
				return
			}
			s.send([]string{err.Error()})
			return
		}
		lines := s.report(a, o)
		if immediate {
			out = lines
			return
		}
		s.send(lines)
	})
	immediate = false
	if runErr != nil {
		return nil, runErr
	}
	if !ran {
		return []string{"waiting for inventory to load"}, nil
	}
	return out, nil
}

// report describes an outcome and tracks its run.
func (s *session) report(a enhancer.Action, o enhancer.Outcome) []string {
	if !o.Ready {
		return []string{"inventory not loaded yet; nothing selected"}
	}
	n := len(o.Result.Items)
	line := fmt.Sprintf("adding %d %s", n, describe(a))
	if !o.Result.Satisfied {
		line += " (not enough available)"
	}
	s.track(o.Run, fmt.Sprintf("added %d items", n))
	return []string{line}
}

// track reports run completion followed by the offer status.
func (s *session) track(run *applier.Run, doneMsg string) {
	if run == nil {
		return
	}
	s.inFlight.Add(1)
	go func() {
		<-run.Done()
		s.inFlight.Add(-1)
		s.logger.Debug("run finished", zap.Stringer("run", run.ID), zap.Int("applied", run.Applied()))
		s.send([]string{doneMsg, statusLine(s.enhancer.Summary(selector.Self), s.enhancer.Summary(selector.Them))})
	}()
}

func describe(a enhancer.Action) string {
	switch a.Mode {
	case selector.ModeByCurrencyValue:
		return fmt.Sprintf("metal items worth up to %s ref from %s", a.Value.StringFixed(2), a.Side)
	case selector.ModeByIDList:
		return "items by id"
	case selector.ModeByVisiblePosition:
		return fmt.Sprintf("visible items from %s", a.Side)
	default:
		return fmt.Sprintf("%s from %s", a.Category, a.Side)
	}
}
