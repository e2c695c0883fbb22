// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrBudgetExceeded       = errors.New("strategy budget exceeded")
	ErrInsufficientPosition = errors.New("insufficient position for sell")
	ErrGatewayUnavailable   = errors.New("execution gateway unavailable")
	ErrNotFound             = errors.New("record not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrNotConnected         = errors.New("gateway not connected")
	ErrTimeout              = errors.New("operation timed out")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrMarketClosed         = errors.New("market is closed")
)

// LimitError reports a capital-allocation admission refusal. It is
// recoverable: the caller may resize the order or retry later.
type LimitError struct {
	StrategyID int
	Exposure   float64
	Proposed   float64
	Limit      float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit refused [strategy %d]: exposure %.2f + proposed %.2f >= limit %.2f",
		e.StrategyID, e.Exposure, e.Proposed, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return ErrBudgetExceeded
}

// NewLimitError creates a new LimitError.
func NewLimitError(strategyID int, exposure, proposed, limit float64) *LimitError {
	return &LimitError{
		StrategyID: strategyID,
		Exposure:   exposure,
		Proposed:   proposed,
		Limit:      limit,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID      string
	InstrumentID string
	Action       string
	Reason       string
	Err          error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.InstrumentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.InstrumentID, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, instrumentID, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID:      orderID,
		InstrumentID: instrumentID,
		Action:       action,
		Reason:       reason,
		Err:          err,
	}
}

// GatewayError represents an error returned by the execution gateway.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway error [%s]: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(code, message string, err error) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ConfigError represents a fatal configuration error reported at startup.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
