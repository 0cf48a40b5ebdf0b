package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"persona-app/internal/credits"
	"persona-app/internal/domain/plans"
)

// Subscription lifecycle event types the provider delivers.
const (
	eventSubscriptionRenewed   = "subscription.renewed"
	eventSubscriptionActive    = "subscription.active"
	eventSubscriptionCancelled = "subscription.cancelled"
	eventSubscriptionExpired   = "subscription.expired"
)

type event struct {
	Type string    `json:"type"`
	Data eventData `json:"data"`
}

type eventData struct {
	ProductID      string            `json:"product_id"`
	SubscriptionID string            `json:"subscription_id"`
	Metadata       map[string]string `json:"metadata"`
}

// apply dispatches one verified event. A nil return acknowledges the
// delivery; only errors worth a redelivery (the ledger's storage being
// down) propagate.
func (h *Handler) apply(ctx context.Context, payload []byte) error {
	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		// The signature proved this is exactly what the provider sent;
		// redelivery cannot make it parse.
		h.log.Warn("discarding unparseable webhook payload", "error", err)
		return nil
	}

	switch evt.Type {
	case eventSubscriptionRenewed:
		return h.applyRenewed(ctx, evt.Data)
	case eventSubscriptionActive:
		return h.applyActive(ctx, evt.Data)
	case eventSubscriptionCancelled, eventSubscriptionExpired:
		return h.applyRevoked(ctx, evt.Type, evt.Data)
	default:
		h.log.Info("ignoring webhook event", "type", evt.Type)
		return nil
	}
}

// applyRenewed fires on first purchase and on every renewal. Each firing
// resets the balance to the plan's monthly grant. Use-it-or-lose-it: unspent
// credits do not carry over, which also makes the event replay-safe.
func (h *Handler) applyRenewed(ctx context.Context, data eventData) error {
	userID, plan, ok := h.resolve("renewed", data)
	if !ok {
		return nil
	}

	err := h.ledger.SetPlan(ctx, userID, plan, plans.CreditGrant(plan), data.SubscriptionID)
	if errors.Is(err, credits.ErrUserNotFound) {
		h.log.Warn("renewal for unknown user", "user_id", userID)
		return nil
	}
	if err != nil {
		return err
	}

	h.log.Info("subscription renewed", "user_id", userID, "plan", plan)
	return nil
}

func (h *Handler) applyActive(ctx context.Context, data eventData) error {
	userID, plan, ok := h.resolve("active", data)
	if !ok {
		return nil
	}

	err := h.ledger.UpdatePlan(ctx, userID, plan)
	if errors.Is(err, credits.ErrUserNotFound) {
		h.log.Warn("activation for unknown user", "user_id", userID)
		return nil
	}
	if err != nil {
		return err
	}

	h.log.Info("subscription active", "user_id", userID, "plan", plan)
	return nil
}

func (h *Handler) applyRevoked(ctx context.Context, eventType string, data eventData) error {
	userID, ok := userIDFromMetadata(data.Metadata)
	if !ok {
		h.log.Warn("revocation event without user id", "type", eventType)
		return nil
	}

	if err := h.ledger.RevokeToFree(ctx, userID); err != nil {
		return err
	}

	h.log.Info("subscription revoked", "type", eventType, "user_id", userID)
	return nil
}

// resolve extracts the user and maps the external product id to a plan.
// Both missing pieces are log-and-skip: the event was received fine, the
// provider must not keep retrying it.
func (h *Handler) resolve(kind string, data eventData) (uint, string, bool) {
	userID, ok := userIDFromMetadata(data.Metadata)
	if !ok {
		h.log.Warn("event without user id in metadata", "kind", kind)
		return 0, "", false
	}
	if data.ProductID == "" {
		h.log.Warn("event without product id", "kind", kind, "user_id", userID)
		return 0, "", false
	}
	plan, ok := h.productPlans[data.ProductID]
	if !ok {
		h.log.Warn("event for unmapped product", "kind", kind, "product_id", data.ProductID)
		return 0, "", false
	}
	return userID, plan, true
}

func userIDFromMetadata(md map[string]string) (uint, bool) {
	if md == nil {
		return 0, false
	}
	s := md["userId"]
	if s == "" {
		return 0, false
	}
	uid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(uid), true
}
