package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

// StatementEvent is the message published after a statement refresh is applied.
type StatementEvent struct {
	Kind             string    `json:"kind"`
	EntityID         int64     `json:"entity_id"`
	DisplayName      string    `json:"display_name"`
	RequestID        uint64    `json:"request_id"`
	Status           string    `json:"status"`
	TotalBilled      string    `json:"total_billed"`
	TotalSettled     string    `json:"total_settled"`
	TotalRetained    string    `json:"total_retained"`
	Outstanding      string    `json:"outstanding"`
	TransactionCount int       `json:"transaction_count"`
	Warnings         int       `json:"warnings"`
	RefreshedAt      time.Time `json:"refreshed_at"`
}

// NewStatementEvent flattens an applied outcome.
func NewStatementEvent(outcome reconcile.Outcome, at time.Time) StatementEvent {
	result := outcome.Result
	return StatementEvent{
		Kind:             string(result.Entity.Kind),
		EntityID:         result.Entity.ID,
		DisplayName:      result.Entity.DisplayName,
		RequestID:        outcome.RequestID,
		Status:           string(result.State()),
		TotalBilled:      reconcile.FormatAmount(result.Summary.TotalBilled),
		TotalSettled:     reconcile.FormatAmount(result.Summary.TotalSettled),
		TotalRetained:    reconcile.FormatAmount(result.Summary.TotalRetained),
		Outstanding:      reconcile.FormatAmount(result.Summary.Outstanding),
		TransactionCount: result.Summary.TransactionCount,
		Warnings:         len(result.Warnings),
		RefreshedAt:      at.UTC(),
	}
}

// StatementPublisher delivers statement events to subscribers.
type StatementPublisher interface {
	Publish(ctx context.Context, event StatementEvent) error
}

// StatementNotifier publishes statement events on a redis channel.
type StatementNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewStatementNotifier constructs a notifier publishing on channel.
func NewStatementNotifier(client redis.UniversalClient, channel string) *StatementNotifier {
	if channel == "" {
		channel = "ledger.statement"
	}
	return &StatementNotifier{client: client, channel: channel}
}

// Publish sends event to the configured channel.
func (n *StatementNotifier) Publish(ctx context.Context, event StatementEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("jobs: publish %s: %w", n.channel, err)
	}
	return nil
}
