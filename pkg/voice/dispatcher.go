package voice

import (
	"context"
	"fmt"

	"mutegate/pkg/logger"
)

// Mode selects which voice-state flag a dispatch changes.
type Mode string

const (
	ModeMute   Mode = "mute"
	ModeDeafen Mode = "deafen"
)

// Audit reasons sent to the provider when turning a state on. Turning a
// state off carries no reason.
const (
	muteReason   = "dead players can't talk!"
	deafenReason = "dead players can't hear!"
)

// Provider is the external voice-membership collaborator. Calls are remote
// and may fail or block; the dispatcher treats them as black boxes with no
// retries and no timeout of its own.
type Provider interface {
	// FetchMember fetches a member by its external identifier.
	FetchMember(ctx context.Context, id string) (Member, error)
	// Members lists the community's members in provider order.
	Members(ctx context.Context) ([]Member, error)
	// SetMute changes a member's server-mute flag.
	SetMute(ctx context.Context, id string, on bool, reason string) error
	// SetDeaf changes a member's server-deafen flag.
	SetDeaf(ctx context.Context, id string, on bool, reason string) error
}

// Outcome records one command's result within a batch.
type Outcome struct {
	ID  string
	Err error
}

// DispatchResult aggregates a batch: every item is attempted, failures are
// kept per item, and the batch collapses to its first failure. Side effects
// of items that already succeeded stand either way — application is
// at-least-once with no rollback.
type DispatchResult struct {
	Outcomes []Outcome
}

// FirstError returns the first per-item failure, or nil for a fully
// successful batch.
func (r DispatchResult) FirstError() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// Dispatcher applies validated commands to the provider.
type Dispatcher struct {
	provider Provider
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given provider.
func NewDispatcher(provider Provider, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		log:      log,
	}
}

// Apply issues each command's state change in order. A failing item does
// not stop the loop; the caller reads the aggregate off the result.
func (d *Dispatcher) Apply(ctx context.Context, commands []MuteCommand, mode Mode) DispatchResult {
	result := DispatchResult{
		Outcomes: make([]Outcome, 0, len(commands)),
	}

	for _, cmd := range commands {
		err := d.applyOne(ctx, cmd, mode)
		if err != nil {
			d.log.ErrorWithErr("voice state change failed", err, "id", cmd.ID, "mode", string(mode))
		} else {
			d.log.DebugWith("voice state changed", "id", cmd.ID, "mode", string(mode), "on", cmd.Status)
		}
		result.Outcomes = append(result.Outcomes, Outcome{ID: cmd.ID, Err: err})
	}

	return result
}

func (d *Dispatcher) applyOne(ctx context.Context, cmd MuteCommand, mode Mode) error {
	member, err := d.provider.FetchMember(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("couldn't resolve id %s: %w", cmd.ID, err)
	}

	switch mode {
	case ModeDeafen:
		reason := ""
		if cmd.Status {
			reason = deafenReason
		}
		if err := d.provider.SetDeaf(ctx, member.ID, cmd.Status, reason); err != nil {
			return fmt.Errorf("set deafen for %s: %w", member.ID, err)
		}
	default:
		reason := ""
		if cmd.Status {
			reason = muteReason
		}
		if err := d.provider.SetMute(ctx, member.ID, cmd.Status, reason); err != nil {
			return fmt.Errorf("set mute for %s: %w", member.ID, err)
		}
	}

	return nil
}
