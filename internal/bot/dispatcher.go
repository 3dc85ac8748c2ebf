package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/diskrelay/diskrelay/internal/convstore"
)

// RouteSource tells a handler how its invocation was resolved, so it
// knows whether a leading command token is present in the text.
type RouteSource int

const (
	RouteDisposable RouteSource = iota + 1
	RouteDirect
	RouteSameDate
	RouteGuessed
	RouteObserved
)

func (s RouteSource) String() string {
	switch s {
	case RouteDisposable:
		return "disposable"
	case RouteDirect:
		return "direct"
	case RouteSameDate:
		return "same_date"
	case RouteGuessed:
		return "guessed"
	case RouteObserved:
		return "observed"
	default:
		return "unknown"
	}
}

// Binding is a resolved (command, source) pair ready to run.
type Binding struct {
	Command Command
	Source  RouteSource
}

const sameDateKey = "same_date_command"

// Dispatcher resolves inbound events to command handlers. The store
// may be nil, which disables every stateful resolution step.
type Dispatcher struct {
	log         *slog.Logger
	store       *convstore.Store
	sameDateTTL time.Duration
}

func NewDispatcher(log *slog.Logger, store *convstore.Store, sameDateTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		log:         log.With(slog.String("service", "dispatcher")),
		store:       store,
		sameDateTTL: sameDateTTL,
	}
}

// Resolve picks the primary binding and, independently, the subscribed
// observers matching this event. Observers never override the primary
// routing decision.
//
// Resolution order: disposable handler, explicit command token,
// same-date continuation, content-shape guess, unknown fallback.
func (d *Dispatcher) Resolve(ctx context.Context, ev Event) (Binding, []Binding, error) {
	observers, err := d.observers(ctx, ev)
	if err != nil {
		return Binding{}, nil, err
	}

	if ev.Callback != nil {
		cmd, _, err := DecodeCallback(ev.Callback.Data)
		if err != nil {
			d.log.Warn("undecodable callback payload", slog.Any("error", err))
			return Binding{Command: CmdUnknown, Source: RouteDirect}, observers, nil
		}
		return Binding{Command: cmd, Source: RouteDirect}, observers, nil
	}

	if binding, ok, err := d.resolveDisposable(ctx, ev); err != nil {
		return Binding{}, nil, err
	} else if ok {
		return binding, observers, nil
	}

	if ev.Command != "" {
		cmd, known := ParseCommand(ev.Command)
		if !known {
			return Binding{Command: CmdUnknown, Source: RouteDirect}, observers, nil
		}
		d.rememberSameDate(ctx, ev, cmd)
		return Binding{Command: cmd, Source: RouteDirect}, observers, nil
	}

	if binding, ok, err := d.resolveSameDate(ctx, ev); err != nil {
		return Binding{}, nil, err
	} else if ok {
		return binding, observers, nil
	}

	if cmd, ok := GuessCommand(ev); ok {
		return Binding{Command: cmd, Source: RouteGuessed}, observers, nil
	}
	return Binding{Command: CmdUnknown, Source: RouteGuessed}, observers, nil
}

func (d *Dispatcher) resolveDisposable(ctx context.Context, ev Event) (Binding, bool, error) {
	if !d.store.Enabled() {
		return Binding{}, false, nil
	}
	reg, ok, err := d.store.GetDisposable(ctx, ev.UserID, ev.ChatID)
	if err != nil {
		return Binding{}, false, fmt.Errorf("resolve disposable: %w", err)
	}
	if !ok || !intersects(reg.Events, ev.Tags) {
		return Binding{}, false, nil
	}
	// One-shot: consumed on match.
	if err := d.store.ClearDisposable(ctx, ev.UserID, ev.ChatID); err != nil {
		return Binding{}, false, fmt.Errorf("consume disposable: %w", err)
	}
	cmd, known := ParseCommand(reg.Handler)
	if !known {
		d.log.Warn("disposable registration names unknown handler",
			slog.String("handler", reg.Handler))
		return Binding{}, false, nil
	}
	return Binding{Command: cmd, Source: RouteDisposable}, true, nil
}

// rememberSameDate binds the command to the message date so later
// command-less messages of the same date (forwarded batches, media
// groups) keep routing to it.
func (d *Dispatcher) rememberSameDate(ctx context.Context, ev Event, cmd Command) {
	if !d.store.Enabled() || ev.Date == 0 {
		return
	}
	value := strconv.FormatInt(ev.Date, 10) + " " + string(cmd)
	if err := d.store.SetData(ctx, convstore.ScopeUserChat, ev.UserID, ev.ChatID, sameDateKey, value, d.sameDateTTL); err != nil {
		d.log.Warn("remember same-date command", slog.Any("error", err))
	}
}

func (d *Dispatcher) resolveSameDate(ctx context.Context, ev Event) (Binding, bool, error) {
	if !d.store.Enabled() || ev.Date == 0 {
		return Binding{}, false, nil
	}
	value, ok, err := d.store.GetData(ctx, convstore.ScopeUserChat, ev.UserID, ev.ChatID, sameDateKey)
	if err != nil {
		return Binding{}, false, fmt.Errorf("resolve same-date: %w", err)
	}
	if !ok {
		return Binding{}, false, nil
	}
	rawDate, rawCmd, found := strings.Cut(value, " ")
	if !found {
		return Binding{}, false, nil
	}
	date, err := strconv.ParseInt(rawDate, 10, 64)
	if err != nil || date != ev.Date {
		return Binding{}, false, nil
	}
	cmd, known := ParseCommand(rawCmd)
	if !known {
		return Binding{}, false, nil
	}
	return Binding{Command: cmd, Source: RouteSameDate}, true, nil
}

func (d *Dispatcher) observers(ctx context.Context, ev Event) ([]Binding, error) {
	if !d.store.Enabled() {
		return nil, nil
	}
	regs, err := d.store.ListSubscribed(ctx, ev.UserID, ev.ChatID)
	if err != nil {
		return nil, fmt.Errorf("list observers: %w", err)
	}
	var out []Binding
	for _, reg := range regs {
		if !intersects(reg.Events, ev.Tags) {
			continue
		}
		cmd, known := ParseCommand(reg.Handler)
		if !known {
			continue
		}
		out = append(out, Binding{Command: cmd, Source: RouteObserved})
	}
	return out, nil
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
