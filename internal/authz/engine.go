package authz

import (
	"errors"
	"fmt"
)

// ErrInvalidMode indicates a matrix entry resolved to a mode the engine does
// not understand. The matrix is validated at startup, so hitting this at
// request time means the configuration changed underneath us; the caller must
// fail the request, never allow it.
var ErrInvalidMode = errors.New("authz: invalid permission mode")

// DecisionRecorder receives the outcome of every authorization call.
// Implemented by the observability metrics; optional.
type DecisionRecorder interface {
	RecordDecision(mode Mode, allowed bool)
}

// Engine orchestrates the permission matrix, the predicate sets and the
// ownership resolver into a single Authorize entry point. It performs no I/O
// and is safe for concurrent use.
type Engine struct {
	matrix      PermissionMatrix
	conditional *ConditionalSet
	moderation  *ModerationSet
	recorder    DecisionRecorder
}

// New validates the matrix against the predicate sets and returns an engine.
// Validation failure is fatal configuration damage; callers must not start.
func New(matrix PermissionMatrix, conditional *ConditionalSet, moderation *ModerationSet) (*Engine, error) {
	if err := matrix.Validate(conditional, moderation); err != nil {
		return nil, err
	}
	return &Engine{matrix: matrix, conditional: conditional, moderation: moderation}, nil
}

// NewDefault builds an engine from the default matrix and predicate sets.
func NewDefault() (*Engine, error) {
	return New(DefaultMatrix(), DefaultConditionalSet(), DefaultModerationSet())
}

// SetRecorder attaches a decision recorder. Call before serving traffic.
func (e *Engine) SetRecorder(r DecisionRecorder) {
	e.recorder = r
}

// Authorize produces the final allow/deny decision for a single resource, or
// a query filter when res is nil (collection read). The engine never fetches
// anything: res is the snapshot the surrounding collaborator already loaded.
func (e *Engine) Authorize(actor Actor, kind ResourceKind, action Action, res *Resource) (Decision, error) {
	dec, err := e.decide(actor, kind, action, res)
	if e.recorder != nil && err == nil {
		e.recorder.RecordDecision(dec.Mode, dec.Allowed)
	}
	return dec, err
}

func (e *Engine) decide(actor Actor, kind ResourceKind, action Action, res *Resource) (Decision, error) {
	role := actor.EffectiveRole()
	mode := e.matrix.Lookup(role, kind, action)

	switch mode {
	case ModeNone:
		return Decision{Allowed: false, Mode: mode}, nil

	case ModeAny:
		return Decision{Allowed: true, Mode: mode}, nil

	case ModeOwn:
		if res == nil {
			return Decision{
				Allowed: true,
				Mode:    mode,
				Filter:  &QueryFilter{Kind: FilterOwned, OwnerID: actor.ID},
			}, nil
		}
		return Decision{Allowed: IsOwner(*res, actor), Mode: mode}, nil

	case ModePublishedOnly:
		if res == nil {
			return Decision{
				Allowed: true,
				Mode:    mode,
				Filter:  &QueryFilter{Kind: FilterPublishedOnly},
			}, nil
		}
		_, status := res.parentContext()
		return Decision{Allowed: status == StatusPublished, Mode: mode}, nil

	case ModeConditional:
		if res == nil {
			filter, ok := e.conditional.Filter(kind, action, actor)
			if !ok {
				return Decision{Allowed: false, Mode: mode}, nil
			}
			return Decision{Allowed: true, Mode: mode, Filter: &filter}, nil
		}
		return Decision{Allowed: e.conditional.Evaluate(kind, action, *res, actor), Mode: mode}, nil

	case ModeModerate:
		// Moderation is never a collection-level decision: a moderator is
		// always evaluated against a concrete resource.
		if res == nil {
			return Decision{Allowed: false, Mode: mode}, nil
		}
		return Decision{Allowed: e.moderation.Evaluate(kind, action, role, *res, actor), Mode: mode}, nil
	}

	return Decision{}, fmt.Errorf("%w: %q for %s/%s/%s", ErrInvalidMode, mode, role, kind, action)
}
