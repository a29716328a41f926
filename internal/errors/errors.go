// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrBotNotFound       = errors.New("bot not found")
	ErrUnknownMarketType = errors.New("unknown market type")
	ErrUnknownSide       = errors.New("unknown position side")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrStateUnavailable  = errors.New("bot state unavailable")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
	ErrNotifierDisabled  = errors.New("notifier disabled")
	ErrRateLimited       = errors.New("rate limited")
	ErrMonitorStopped    = errors.New("monitor stopped")
)

// ProviderError represents a failure fetching bot state from a provider.
type ProviderError struct {
	Bot string
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s] %s: %v", e.Bot, e.Op, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s", e.Bot, e.Op)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(bot, op string, err error) *ProviderError {
	return &ProviderError{
		Bot: bot,
		Op:  op,
		Err: err,
	}
}

// StoreError represents a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error [%s]", e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Err: err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// RiskError represents a risk limit breach.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// NotifyError represents a failure delivering an alert through a channel.
type NotifyError struct {
	Channel string
	AlertID string
	Err     error
}

func (e *NotifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify error [%s] alert %s: %v", e.Channel, e.AlertID, e.Err)
	}
	return fmt.Sprintf("notify error [%s] alert %s", e.Channel, e.AlertID)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// NewNotifyError creates a new NotifyError.
func NewNotifyError(channel, alertID string, err error) *NotifyError {
	return &NotifyError{
		Channel: channel,
		AlertID: alertID,
		Err:     err,
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
