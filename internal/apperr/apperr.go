// Package apperr defines the error taxonomy shared across the decision pipeline.
//
// Errors are constructed with New/WithSnapshot and carry a Kind so callers can branch
// with errors.Is/errors.As instead of matching on message text, per the
// degrade-on-error policy: cycle-scoped kinds degrade a single symbol's
// cycle to hold, ConfigError aborts startup, RiskBlock is recorded but never
// retried.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation/degrade decisions.
type Kind string

const (
	KindConfig         Kind = "config_error"
	KindFetch          Kind = "fetch_error"
	KindAlignment      Kind = "alignment_error"
	KindInsufficient   Kind = "insufficient_data"
	KindPredictor      Kind = "predictor_error"
	KindRiskBlock      Kind = "risk_block"
	KindExec           Kind = "exec_error"
)

// Error is the taxonomy-tagged error type.
type Error struct {
	Kind      Kind
	Component string
	SnapshotID string
	Symbol    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Component, e.Symbol)
	}
	return fmt.Sprintf("%s[%s] symbol=%s snapshot=%s: %v", e.Kind, e.Component, e.Symbol, e.SnapshotID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.ErrFetch) etc. work against a bare Kind sentinel.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func New(kind Kind, component, symbol string, err error) *Error {
	return &Error{Kind: kind, Component: component, Symbol: symbol, Err: err}
}

func WithSnapshot(kind Kind, component, symbol, snapshotID string, err error) *Error {
	return &Error{Kind: kind, Component: component, Symbol: symbol, SnapshotID: snapshotID, Err: err}
}

// Sentinel values usable with errors.Is for kind-only matching.
var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrFetch        = &Error{Kind: KindFetch}
	ErrAlignment    = &Error{Kind: KindAlignment}
	ErrInsufficient = &Error{Kind: KindInsufficient}
	ErrPredictor    = &Error{Kind: KindPredictor}
	ErrRiskBlock    = &Error{Kind: KindRiskBlock}
	ErrExec         = &Error{Kind: KindExec}
)

// Degrades reports whether this Kind degrades a single cycle to hold rather
// than aborting the process.
func Degrades(kind Kind) bool {
	switch kind {
	case KindFetch, KindAlignment, KindInsufficient, KindPredictor:
		return true
	default:
		return false
	}
}
