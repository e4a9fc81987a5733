// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package permission implements the location permission gate: it presents the system dialog
// through a Prompter, remembers the answers in a Store and derives the permission status
// from them.
package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/mapscreen/internal/logger"
)

// Scope is a single location permission.
type Scope string

const (
	ScopeFine   Scope = "fine"
	ScopeCoarse Scope = "coarse"
)

// Scopes are requested together in one combined request.
var Scopes = []Scope{ScopeFine, ScopeCoarse}

// Status is the evaluated permission state.
type Status int

const (
	StatusDenied Status = iota
	StatusNeedsRationale
	StatusGranted
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusNeedsRationale:
		return "needs_rationale"
	default:
		return "denied"
	}
}

// Answer is the user's reply to the system dialog.
type Answer int

const (
	AnswerDeny Answer = iota
	AnswerAllow
	AnswerDenyDontAskAgain
)

func (a Answer) String() string {
	switch a {
	case AnswerAllow:
		return "allow"
	case AnswerDenyDontAskAgain:
		return "deny_dont_ask_again"
	default:
		return "deny"
	}
}

// Decision is the remembered state of a single scope.
type Decision struct {
	Scope        Scope
	Granted      bool
	Denials      int
	DontAskAgain bool
}

// Blocked reports whether the system dialog is no longer shown for this scope.
func (d Decision) Blocked() bool {
	return !d.Granted && (d.DontAskAgain || d.Denials >= 2)
}

// Apply records an answer to the system dialog.
func (d Decision) Apply(answer Answer) Decision {
	switch answer {
	case AnswerAllow:
		d.Granted = true
	case AnswerDenyDontAskAgain:
		d.Granted = false
		d.Denials++
		d.DontAskAgain = true
	default:
		d.Granted = false
		d.Denials++
	}
	return d
}

// Store remembers permission decisions. A scope that was never asked for is returned as a
// zero Decision without error.
type Store interface {
	Load(ctx context.Context, scope Scope) (Decision, error)
	Save(ctx context.Context, decision Decision) error
	Reset(ctx context.Context) error
}

// Prompter presents the system dialog and returns the user's answer.
type Prompter interface {
	Prompt(ctx context.Context, scopes []Scope) (Answer, error)
}

// Gate combines a Store and a Prompter into the permission gate of the map screen.
type Gate struct {
	store    Store
	prompter Prompter
	logger   *logger.Logger
}

// NewGate returns a new Gate.
func NewGate(store Store, prompter Prompter, log *logger.Logger) (*Gate, error) {
	if store == nil {
		return nil, errors.New("permission store is required")
	}
	if prompter == nil {
		return nil, errors.New("permission prompter is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Gate{store: store, prompter: prompter, logger: log}, nil
}

// Request asks for all scopes in one combined dialog and returns the resulting status. The
// dialog is skipped if every scope is already granted or if any scope is blocked.
func (g *Gate) Request(ctx context.Context) (Status, error) {
	decisions, err := g.load(ctx)
	if err != nil {
		g.logger.Error("failed to load permission decisions", logger.Err(err))
		return StatusDenied, nil
	}
	granted := true
	for _, d := range decisions {
		if d.Blocked() {
			g.logger.Debug("permission dialog suppressed", slog.String("scope", string(d.Scope)))
			return evaluate(decisions), nil
		}
		granted = granted && d.Granted
	}
	if granted {
		return StatusGranted, nil
	}

	answer, err := g.prompter.Prompt(ctx, Scopes)
	if err != nil {
		return evaluate(decisions), fmt.Errorf("failed to prompt for location permission: %w", err)
	}
	g.logger.Info("location permission answered", slog.String("answer", answer.String()))
	for _, d := range decisions {
		if err = g.store.Save(ctx, d.Apply(answer)); err != nil {
			return StatusDenied, fmt.Errorf("failed to store permission decision: %w", err)
		}
	}
	return g.Status(ctx), nil
}

// Status evaluates the stored decisions. Store failures are logged and evaluate to
// StatusDenied.
func (g *Gate) Status(ctx context.Context) Status {
	decisions, err := g.load(ctx)
	if err != nil {
		g.logger.Error("failed to load permission decisions", logger.Err(err))
		return StatusDenied
	}
	return evaluate(decisions)
}

// Reset forgets all decisions, as clearing the app's permissions in the system settings does.
func (g *Gate) Reset(ctx context.Context) error {
	if err := g.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset permission decisions: %w", err)
	}
	return nil
}

func (g *Gate) load(ctx context.Context) ([]Decision, error) {
	decisions := make([]Decision, 0, len(Scopes))
	for _, scope := range Scopes {
		d, err := g.store.Load(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", scope, err)
		}
		d.Scope = scope
		decisions = append(decisions, d)
	}
	return decisions, nil
}

func evaluate(decisions []Decision) Status {
	granted := true
	rationale := false
	for _, d := range decisions {
		if d.Granted {
			continue
		}
		granted = false
		if d.Blocked() {
			return StatusDenied
		}
		if d.Denials == 1 {
			rationale = true
		}
	}
	switch {
	case granted:
		return StatusGranted
	case rationale:
		return StatusNeedsRationale
	default:
		return StatusDenied
	}
}
