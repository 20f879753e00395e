package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SimulatedGateway is a PaymentGateway for development and tests. It
// approves every charge except tokens with the "bad-" prefix, records
// transactions in memory and refuses refunds for unknown transaction
// ids. A production deployment swaps this for a real provider client
// behind the same interface.
type SimulatedGateway struct {
	mu      sync.Mutex
	charges map[string]uint32 // transaction id -> charged cents
	refunds map[string]bool
}

// NewSimulatedGateway returns an empty gateway.
func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		charges: make(map[string]uint32),
		refunds: make(map[string]bool),
	}
}

// Charge implements PaymentGateway.
func (g *SimulatedGateway) Charge(_ context.Context, amountCents uint32, currency, token string) (ChargeResult, error) {
	if token == "" {
		return ChargeResult{}, fmt.Errorf("gateway: empty payment token")
	}
	if strings.HasPrefix(token, "bad-") {
		return ChargeResult{Approved: false, Reason: "card_declined"}, nil
	}
	txID := "ch_" + uuid.NewString()
	g.mu.Lock()
	g.charges[txID] = amountCents
	g.mu.Unlock()
	_ = currency
	return ChargeResult{Approved: true, TransactionID: txID}, nil
}

// Refund implements PaymentGateway.
func (g *SimulatedGateway) Refund(_ context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[transactionID]; !ok {
		return fmt.Errorf("gateway: unknown transaction %s", transactionID)
	}
	if g.refunds[transactionID] {
		return nil // refund is idempotent
	}
	g.refunds[transactionID] = true
	return nil
}

// Refunded reports whether the transaction has been refunded; test
// helper.
func (g *SimulatedGateway) Refunded(transactionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds[transactionID]
}
