// Package errors provides the typed errors surfaced by the plugin host.
// All error types support error unwrapping via errors.As() and errors.Is(),
// and convert to a structured entities.ErrorDetail for rendering.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/dlhost/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// Kind classifies host errors independently of their concrete type.
type Kind string

const (
	KindNone              Kind = ""
	KindLoad              Kind = "load"
	KindSymbolNotFound    Kind = "symbol_not_found"
	KindStaleSymbol       Kind = "stale_symbol"
	KindNotLoaded         Kind = "not_loaded"
	KindExchangeDeclined  Kind = "exchange_declined"
	KindProtocolViolation Kind = "protocol_violation"
	KindInvalidBuffer     Kind = "validation"
	KindConfig            Kind = "config"
	KindInternal          Kind = "internal"
)

// DetailedError is implemented by every error type in this package.
type DetailedError interface {
	error
	Kind() Kind
	ToErrorDetail() *entities.ErrorDetail
}

// KindOf returns the kind of the first DetailedError in err's chain,
// KindNone for nil and KindInternal for anything else.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.Kind()
	}
	return KindInternal
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    string(KindInternal),
	}
}

// LoadReason narrows down why an image could not be opened.
type LoadReason string

const (
	LoadReasonNotFound     LoadReason = "not_found"
	LoadReasonInvalidImage LoadReason = "invalid_image"
	LoadReasonPlatform     LoadReason = "platform"
	LoadReasonPolicy       LoadReason = "policy"
)

// LoadError reports that a plugin image could not be loaded.
type LoadError struct {
	Err    error
	Path   string
	Reason LoadReason
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot open library at '%s' (%s): %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot open library at '%s' (%s)", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Kind implements DetailedError.
func (e *LoadError) Kind() Kind { return KindLoad }

// ToErrorDetail implements DetailedError.
func (e *LoadError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       string(KindLoad),
		Code:       string(e.Reason),
		IsNotFound: e.Reason == LoadReasonNotFound,
		Details:    map[string]any{"path": e.Path},
	}
}

// SymbolNotFoundError reports that an entry point is not exported by the image.
type SymbolNotFoundError struct {
	Err    error
	Symbol string
	Path   string
}

func (e *SymbolNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot load symbol '%s' from '%s': %v", e.Symbol, e.Path, e.Err)
	}
	return fmt.Sprintf("cannot load symbol '%s' from '%s'", e.Symbol, e.Path)
}

func (e *SymbolNotFoundError) Unwrap() error {
	return e.Err
}

// Kind implements DetailedError.
func (e *SymbolNotFoundError) Kind() Kind { return KindSymbolNotFound }

// ToErrorDetail implements DetailedError.
func (e *SymbolNotFoundError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       string(KindSymbolNotFound),
		Code:       e.Symbol,
		IsNotFound: true,
		Details:    map[string]any{"path": e.Path},
	}
}

// StaleSymbolError reports an attempt to call a symbol resolved under a
// generation that is no longer loaded. Seeing it outside of tests means the
// host let a handle outlive its image.
type StaleSymbolError struct {
	Symbol            string
	SymbolGeneration  uint64
	CurrentGeneration uint64
}

func (e *StaleSymbolError) Error() string {
	return fmt.Sprintf("symbol '%s' belongs to generation %d, current generation is %d",
		e.Symbol, e.SymbolGeneration, e.CurrentGeneration)
}

// Kind implements DetailedError.
func (e *StaleSymbolError) Kind() Kind { return KindStaleSymbol }

// ToErrorDetail implements DetailedError.
func (e *StaleSymbolError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    string(KindStaleSymbol),
		Code:    e.Symbol,
		Details: map[string]any{
			"symbol_generation":  e.SymbolGeneration,
			"current_generation": e.CurrentGeneration,
		},
	}
}

// NotLoadedError reports an operation that needs a loaded plugin.
type NotLoadedError struct {
	Operation string
}

func (e *NotLoadedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("library not loaded: cannot %s", e.Operation)
	}
	return "library not loaded"
}

// Kind implements DetailedError.
func (e *NotLoadedError) Kind() Kind { return KindNotLoaded }

// ToErrorDetail implements DetailedError.
func (e *NotLoadedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: string(KindNotLoaded), Code: e.Operation}
}

// ExchangeDeclinedError reports that the plugin returned zero: it either
// failed or the buffer was too small. It is a soft error.
type ExchangeDeclinedError struct {
	Symbol   string
	Capacity int
	Override bool
}

func (e *ExchangeDeclinedError) Error() string {
	return fmt.Sprintf("exchange declined by '%s' (capacity %d, override %t)", e.Symbol, e.Capacity, e.Override)
}

// Kind implements DetailedError.
func (e *ExchangeDeclinedError) Kind() Kind { return KindExchangeDeclined }

// ToErrorDetail implements DetailedError.
func (e *ExchangeDeclinedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    string(KindExchangeDeclined),
		Code:    e.Symbol,
		Soft:    true,
		Details: map[string]any{"capacity": e.Capacity, "override": e.Override},
	}
}

// Protocol violation reasons.
const (
	ViolationOverCapacity  = "count_exceeds_capacity"
	ViolationProbeMutated  = "probe_mutated_buffer"
	ViolationReplyTooLarge = "reply_exceeds_limit"
)

// ProtocolViolationError reports a plugin that broke the exchange contract.
// Result holds the clamped interpretation of the call; it never exposes
// more than Capacity bytes.
type ProtocolViolationError struct {
	Result   entities.ExchangeResult
	Symbol   string
	Reason   string
	Reported uint64
	Capacity int
}

func (e *ProtocolViolationError) Error() string {
	switch e.Reason {
	case ViolationProbeMutated:
		return fmt.Sprintf("plugin '%s' wrote into a read-only buffer of %d bytes", e.Symbol, e.Capacity)
	case ViolationReplyTooLarge:
		return fmt.Sprintf("plugin '%s' returned %d bytes, more than the %d byte limit", e.Symbol, e.Reported, e.Capacity)
	default:
		return fmt.Sprintf("plugin '%s' reported %d bytes for a buffer of %d bytes", e.Symbol, e.Reported, e.Capacity)
	}
}

// Kind implements DetailedError.
func (e *ProtocolViolationError) Kind() Kind { return KindProtocolViolation }

// ToErrorDetail implements DetailedError.
func (e *ProtocolViolationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    string(KindProtocolViolation),
		Code:    e.Reason,
		Details: map[string]any{"reported": e.Reported, "capacity": e.Capacity},
	}
}

// InvalidBufferError reports an exchange request that fails the host's
// preconditions before any foreign call is made.
type InvalidBufferError struct {
	Err      error
	Capacity int
}

func (e *InvalidBufferError) Error() string {
	return fmt.Sprintf("invalid exchange buffer (capacity %d): %v", e.Capacity, e.Err)
}

func (e *InvalidBufferError) Unwrap() error {
	return e.Err
}

// Kind implements DetailedError.
func (e *InvalidBufferError) Kind() Kind { return KindInvalidBuffer }

// ToErrorDetail implements DetailedError.
func (e *InvalidBufferError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: string(KindInvalidBuffer), Code: "buffer"}
}

// ConfigError reports a host configuration that cannot be read or fails
// validation.
type ConfigError struct {
	Err      error
	Source   string
	Problems []entities.ValidationError
}

func (e *ConfigError) Error() string {
	src := e.Source
	if src == "" {
		src = "configuration"
	}
	if len(e.Problems) == 0 {
		return fmt.Sprintf("invalid %s: %v", src, e.Err)
	}
	msg := fmt.Sprintf("invalid %s: %s: %s", src, e.Problems[0].Field, e.Problems[0].Message)
	if n := len(e.Problems) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Kind implements DetailedError.
func (e *ConfigError) Kind() Kind { return KindConfig }

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	d := &entities.ErrorDetail{Message: e.Error(), Type: string(KindConfig), Code: "config_invalid"}
	if len(e.Problems) > 0 {
		fields := make(map[string]any, len(e.Problems))
		for _, p := range e.Problems {
			fields[p.Field] = p.Message
		}
		d.Details = fields
	}
	return d
}
