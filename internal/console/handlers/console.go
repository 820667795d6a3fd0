// Package handlers implements the offer console: one enhancer per telnet
// session, driven by the console command set.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/command"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/telnet"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

// outboxSize bounds asynchronous output queued for one session.
const outboxSize = 64

// errQuit ends a session cleanly.
var errQuit = errors.New("quit")

// Options configure a Console.
type Options struct {
	// Enhancer is the template for each session's enhancer. OnSummary and
	// Logger are set per session.
	Enhancer enhancer.Options
	// SnapshotDir is where "load" reads snapshot files; empty disables it.
	SnapshotDir string
	// Categories lists scripted category names for the "categories" command.
	Categories func() []string
	Logger     *zap.Logger
}

// Console serves offer-building sessions. It implements telnet.SessionHandler.
type Console struct {
	opts     Options
	registry *command.Registry
	logger   *zap.Logger
	sessions atomic.Int64
}

// NewConsole creates a Console with the built-in command set.
func NewConsole(opts Options) *Console {
	return &Console{
		opts:     opts,
		registry: command.DefaultRegistry(),
		logger:   observability.OrNop(opts.Logger),
	}
}

// session is the per-connection state.
type session struct {
	id       int64
	console  *Console
	conn     *telnet.Conn
	enhancer *enhancer.Enhancer
	logger   *zap.Logger

	outbox   chan []string
	inFlight atomic.Int32
}

// HandleSession runs the command loop for conn until the client quits,
// disconnects or ctx is cancelled.
//
// Postcondition: Returns nil on quit, ctx.Err() on cancellation, or a wrapped
// read error.
func (c *Console) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	s := &session{
		id:      c.sessions.Add(1),
		console: c,
		conn:    conn,
		outbox:  make(chan []string, outboxSize),
	}
	s.logger = c.logger.With(zap.Int64("session", s.id), zap.String("remote_addr", conn.RemoteAddr().String()))

	opts := c.opts.Enhancer
	opts.Logger = s.logger
	opts.OnSummary = s.onSummary
	s.enhancer = enhancer.New(opts)
	defer s.enhancer.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.drain(done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	_ = conn.WriteLine(telnet.Colorize(telnet.BrightYellow, "Trade offer console. Type 'help' for commands."))
	return s.loop(ctx)
}

func (s *session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.conn.WritePrompt(prompt(s.enhancer)); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}

		line, err := s.conn.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if err := s.execute(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				_ = s.conn.WriteLine("Bye.")
				return nil
			}
			return err
		}
	}
}

// execute dispatches one input line. Only write failures and quit are
// returned; command errors are reported to the client.
func (s *session) execute(ctx context.Context, line string) error {
	parsed := command.Parse(line)
	if parsed.Command == "" {
		return nil
	}
	cmd, ok := s.console.registry.Resolve(parsed.Command)
	if !ok {
		return s.conn.WriteLine(telnet.Colorf(telnet.Red, "Unknown command %q. Type 'help' for a list.", parsed.Command))
	}

	var (
		out []string
		err error
	)
	switch cmd.Handler {
	case command.HandlerQuit:
		return errQuit
	case command.HandlerHelp:
		out = renderHelp(s.console.registry)
	case command.HandlerLoad:
		out, err = s.handleLoad(parsed.Args)
	case command.HandlerUse:
		out, err = s.handleUse(ctx, parsed.Args)
	case command.HandlerInventory:
		out, err = s.handleInventory(parsed.Args)
	case command.HandlerCategories:
		out = s.handleCategories()
	case command.HandlerClear:
		out, err = s.handleClear(parsed.Args)
	case command.HandlerSummary:
		out = s.handleSummary()
	case command.HandlerPrice:
		out, err = s.handlePrice(ctx, parsed.Args)
	case command.HandlerWait:
		out, err = s.handleWait(parsed.RawArgs)
	default:
		if !command.IsSelection(cmd.Handler) {
			err = fmt.Errorf("command %q has no handler", cmd.Name)
			break
		}
		out, err = s.handleSelection(cmd.Handler, parsed.Args)
	}

	if err != nil {
		s.logger.Debug("command failed", zap.String("command", cmd.Name), zap.Error(err))
		return s.conn.WriteLine(telnet.Colorize(telnet.Red, err.Error()))
	}
	return s.conn.WriteLines(out)
}

// send queues lines for asynchronous output. It never blocks; output is
// dropped when the client is too slow to keep up.
func (s *session) send(lines []string) {
	select {
	case s.outbox <- lines:
	default:
		s.logger.Debug("console output dropped", zap.Int("lines", len(lines)))
	}
}

func (s *session) drain(done <-chan struct{}) {
	for {
		select {
		case lines := <-s.outbox:
			_ = s.conn.WriteLines(append([]string{""}, lines...))
			_ = s.conn.WritePrompt(prompt(s.enhancer))
		case <-done:
			return
		}
	}
}

// onSummary reports recomputed summaries while no mutation run is in flight.
func (s *session) onSummary(self, them summary.Summary) {
	if s.inFlight.Load() > 0 {
		return
	}
	s.send([]string{statusLine(self, them)})
}

func prompt(e *enhancer.Enhancer) string {
	if t, ok := e.ActiveTrade(); ok {
		return telnet.Colorf(telnet.BrightCyan, "[%s vs %s %d/%s]> ", t.Self, t.Them, t.AppID, t.ContextID)
	}
	return telnet.Colorize(telnet.BrightCyan, "[no trade]> ")
}

// usage builds the error reported for malformed arguments to cmd.
func (s *session) usage(cmd string) error {
	c, ok := s.console.registry.Resolve(cmd)
	if !ok {
		return fmt.Errorf("usage: %s", cmd)
	}
	return fmt.Errorf("usage: %s", strings.TrimSpace(c.Name+" "+c.Usage))
}
