package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the ledger service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Available float64
	Required  float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%.2f required=%.2f", e.Available, e.Required)
}

// ErrConflict indicates the operation conflicts with existing state
// (e.g. deleting a donation record that is linked to a transaction).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ============================================================
// Plan-limit errors
// ============================================================

// Plan-limit signatures emitted by backend triggers when a subscription
// quota is hit. Matched by substring against raw backend error text and
// propagated to the caller with the message intact, so clients can show
// an upgrade prompt instead of a generic failure.
const (
	PlanLimitAccount            = "ACCOUNT_LIMIT_EXCEEDED"
	PlanLimitCurrency           = "CURRENCY_LIMIT_EXCEEDED"
	PlanLimitTransaction        = "TRANSACTION_LIMIT_EXCEEDED"
	PlanLimitMonthlyTransaction = "MONTHLY_TRANSACTION_LIMIT_EXCEEDED"
	PlanLimitPurchase           = "PURCHASE_LIMIT_EXCEEDED"
	PlanLimitFeature            = "FEATURE_NOT_AVAILABLE"
)

// planLimitCodes is ordered so that the longest signature wins:
// MONTHLY_TRANSACTION_LIMIT_EXCEEDED contains TRANSACTION_LIMIT_EXCEEDED.
var planLimitCodes = []string{
	PlanLimitMonthlyTransaction,
	PlanLimitTransaction,
	PlanLimitAccount,
	PlanLimitCurrency,
	PlanLimitPurchase,
	PlanLimitFeature,
}

// ErrPlanLimit is the distinct error class for subscription-plan limits.
// Message preserves the backend's original error text verbatim.
type ErrPlanLimit struct {
	Code    string
	Message string
}

func (e *ErrPlanLimit) Error() string {
	return e.Message
}

// ClassifyPlanLimit checks an error's text for a recognized plan-limit
// signature. Returns nil if the error is not a plan-limit error.
func ClassifyPlanLimit(err error) *ErrPlanLimit {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, code := range planLimitCodes {
		if strings.Contains(msg, code) {
			return &ErrPlanLimit{Code: code, Message: msg}
		}
	}
	return nil
}

// IsPlanLimit reports whether an error carries any plan-limit signature.
func IsPlanLimit(err error) bool {
	return ClassifyPlanLimit(err) != nil
}
