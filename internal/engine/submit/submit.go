// Package submit implements the move submission protocol: optimistic local
// execution, delayed auto-submission, and in-flight acknowledgement
// correlation.
package submit

import (
	"fmt"
	"time"

	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/errors"
)

// Outbound is a serialized move handed to the transport.
type Outbound struct {
	CorrelationID int64
	Name          string
	Args          move.Args
}

// Sender delivers an outbound move to the host. Fire-and-forget: the reply
// arrives later as an acknowledgement with the echoed correlation id.
type Sender func(Outbound) error

// Applier executes a move against local game state for optimistic
// execution.
type Applier func(name string, args move.Args) error

// Schedule arms a cancellable delayed task and returns its cancel func.
// The default implementation wraps time.AfterFunc; the session injects one
// that routes the firing back onto its event loop.
type Schedule func(d time.Duration, fire func()) (cancel func())

// DefaultAutoSubmitDelay is the pause before a system-forced move is sent,
// giving hidden information revealed by a late snapshot a chance to change
// the forced value.
const DefaultAutoSubmitDelay = 500 * time.Millisecond

type inflight struct {
	name    string
	onError func(message string)
}

// Protocol tracks outbound moves and their acknowledgements.
//
// Correlation ids are assigned monotonically and never reused while a
// submission is pending.
type Protocol struct {
	Send  Sender
	Apply Applier
	Delay time.Duration
	Timer Schedule

	// Speculate is invoked after successful optimistic execution so the
	// session can transition to a half-generation.
	Speculate func()

	nextID    int64
	pending   map[int64]inflight
	scheduled func()
}

// New creates a submission protocol with the default delay and timer.
func New(send Sender, apply Applier) *Protocol {
	return &Protocol{
		Send:  send,
		Apply: apply,
		Delay: DefaultAutoSubmitDelay,
		Timer: func(d time.Duration, fire func()) func() {
			t := time.AfterFunc(d, fire)
			return func() { t.Stop() }
		},
		pending: make(map[int64]inflight),
	}
}

// InFlight reports how many submissions await acknowledgement.
func (p *Protocol) InFlight() int {
	return len(p.pending)
}

// Direct optimistically executes a completed move locally and sends it to
// the host in parallel. A local execution failure means the message is
// never forwarded; the caller resets UI selection state while the
// authoritative board display stays intact.
func (p *Protocol) Direct(m move.Move, onError func(message string)) (int64, error) {
	if !m.Complete() {
		return 0, errors.New(errors.CodeMoveIncomplete,
			fmt.Sprintf("move %q still has outstanding selections", m.Name))
	}
	if p.Apply != nil {
		if err := p.Apply(m.Name, m.Args); err != nil {
			return 0, errors.Wrap(errors.CodeLocalExecution,
				fmt.Sprintf("apply move %q locally", m.Name), err)
		}
	}
	if p.Speculate != nil {
		p.Speculate()
	}
	return p.dispatch(m, onError)
}

// Auto schedules a system-forced move for delayed submission without
// executing it locally first. Any snapshot merge cancels the timer.
func (p *Protocol) Auto(m move.Move, onError func(message string)) error {
	if !m.Complete() {
		return errors.New(errors.CodeMoveIncomplete,
			fmt.Sprintf("move %q still has outstanding selections", m.Name))
	}
	p.CancelScheduled()
	p.scheduled = p.Timer(p.Delay, func() {
		p.scheduled = nil
		if _, err := p.dispatch(m, onError); err != nil && onError != nil {
			// The firing has no caller to return to; a failed send of a
			// forced move surfaces through the rejection callback.
			onError(err.Error())
		}
	})
	return nil
}

// CancelScheduled stops a pending auto-submission, if any.
func (p *Protocol) CancelScheduled() {
	if p.scheduled != nil {
		p.scheduled()
		p.scheduled = nil
	}
}

// ScheduledPending reports whether an auto-submission awaits its timer.
func (p *Protocol) ScheduledPending() bool {
	return p.scheduled != nil
}

func (p *Protocol) dispatch(m move.Move, onError func(message string)) (int64, error) {
	p.nextID++
	id := p.nextID
	if _, exists := p.pending[id]; exists {
		return 0, errors.New(errors.CodeSubmitInFlight,
			fmt.Sprintf("correlation id %d already pending", id))
	}
	if err := p.Send(Outbound{CorrelationID: id, Name: m.Name, Args: m.Args}); err != nil {
		return 0, fmt.Errorf("send move %q: %w", m.Name, err)
	}
	p.pending[id] = inflight{name: m.Name, onError: onError}
	return id, nil
}

// HandleAck correlates a host acknowledgement with its submission. An
// error acknowledgement invokes the submission's failure callback and is
// surfaced; success simply clears the tracking entry, leaving the next
// authoritative snapshot to supersede the optimistic one.
func (p *Protocol) HandleAck(correlationID int64, message string) error {
	entry, ok := p.pending[correlationID]
	if !ok {
		return errors.New(errors.CodeUnknownAck,
			fmt.Sprintf("no pending submission for correlation id %d", correlationID))
	}
	delete(p.pending, correlationID)
	if message == "" {
		return nil
	}
	if entry.onError != nil {
		entry.onError(message)
	}
	return errors.New(errors.CodeAckRejected,
		fmt.Sprintf("move %q rejected: %s", entry.name, message))
}
