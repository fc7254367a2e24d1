package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/tresora/backend/internal/queue"
	"github.com/tresora/backend/internal/services/loyalty"
)

// OrderPlacedPayload is the order-placed event from the storefront.
// TotalMinor is the already-computed order total in currency minor
// units; the ledger never re-derives it.
type OrderPlacedPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	OrderID    string    `json:"order_id"`
	TotalMinor int64     `json:"total_minor"`
}

// CustomerCreatedPayload is the customer-created event. ReferralCode is
// the code the customer typed at signup, if any.
type CustomerCreatedPayload struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	DisplayName  string    `json:"display_name"`
	ReferralCode string    `json:"referral_code,omitempty"`
}

// LoyaltyEventJob processes storefront events against the awarding
// engine. Events arrive at least once; every handler is a safe no-op on
// redelivery.
type LoyaltyEventJob struct {
	queue  queue.Queue
	engine *loyalty.Engine
}

// NewLoyaltyEventJob creates a new loyalty event job handler
func NewLoyaltyEventJob(q queue.Queue, engine *loyalty.Engine) *LoyaltyEventJob {
	return &LoyaltyEventJob{queue: q, engine: engine}
}

// RegisterLoyaltyEventJobHandlers registers the loyalty event job handlers
func RegisterLoyaltyEventJobHandlers(q queue.Queue, engine *loyalty.Engine) *LoyaltyEventJob {
	handler := NewLoyaltyEventJob(q, engine)
	q.RegisterHandler(queue.JobTypeOrderPlaced, handler.ProcessOrderPlaced)
	q.RegisterHandler(queue.JobTypeCustomerCreated, handler.ProcessCustomerCreated)
	return handler
}

// EnqueueOrderPlaced queues an order-placed event for processing
func (j *LoyaltyEventJob) EnqueueOrderPlaced(payload OrderPlacedPayload) (string, error) {
	return j.queue.Enqueue(queue.JobTypeOrderPlaced, payload)
}

// EnqueueCustomerCreated queues a customer-created event for processing
func (j *LoyaltyEventJob) EnqueueCustomerCreated(payload CustomerCreatedPayload) (string, error) {
	return j.queue.Enqueue(queue.JobTypeCustomerCreated, payload)
}

// ProcessOrderPlaced awards points for a placed order
func (j *LoyaltyEventJob) ProcessOrderPlaced(ctx context.Context, job queue.Job) error {
	var payload OrderPlacedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal order placed payload: %w", err)
	}
	if payload.CustomerID == uuid.Nil {
		log.Printf("Dropping order placed event with no customer id (job %s)", job.ID)
		return nil
	}

	_, err := j.engine.EarnFromOrder(payload.CustomerID, payload.OrderID, payload.TotalMinor)
	if isBusinessError(err) {
		// Malformed events will not become valid on retry.
		log.Printf("Dropping order placed event for order %s: %v", payload.OrderID, err)
		return nil
	}
	return err
}

// ProcessCustomerCreated grants the welcome bonus and redeems any
// signup referral code
func (j *LoyaltyEventJob) ProcessCustomerCreated(ctx context.Context, job queue.Job) error {
	var payload CustomerCreatedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal customer created payload: %w", err)
	}
	if payload.CustomerID == uuid.Nil {
		log.Printf("Dropping customer created event with no customer id (job %s)", job.ID)
		return nil
	}

	if _, err := j.engine.AwardWelcomeBonus(payload.CustomerID, payload.DisplayName); err != nil {
		return err
	}

	if payload.ReferralCode != "" {
		_, err := j.engine.AwardReferral(payload.CustomerID, payload.ReferralCode)
		if isBusinessError(err) {
			log.Printf("Signup referral code rejected for customer %s: %v", payload.CustomerID, err)
			return nil
		}
		return err
	}
	return nil
}

// isBusinessError reports whether an error is a terminal rule rejection
// rather than a retryable storage failure.
func isBusinessError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, loyalty.ErrInvalidOrderTotal),
		errors.Is(err, loyalty.ErrInvalidOrderID),
		errors.Is(err, loyalty.ErrInvalidPointsAmount),
		errors.Is(err, loyalty.ErrInvalidReferralCode),
		errors.Is(err, loyalty.ErrSelfReferral),
		errors.Is(err, loyalty.ErrReferralAlreadyClaimed),
		errors.Is(err, loyalty.ErrReferralCodeNotFound),
		errors.Is(err, loyalty.ErrProgramDisabled),
		errors.Is(err, loyalty.ErrAccountDisabled):
		return true
	}
	return false
}
