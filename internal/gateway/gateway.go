// Package gateway defines the narrow RPC capability interface the submission
// engine depends on, together with an HTTP JSON-RPC client implementation.
package gateway

import (
	"context"
)

// TxState is the confirmation state of a submitted transaction as reported
// by the ledger node.
type TxState string

const (
	// StatePending means the node has seen the transaction but not finalized it.
	StatePending TxState = "PENDING"
	// StateConfirmed means the transaction has been included and finalized.
	StateConfirmed TxState = "CONFIRMED"
	// StateFailed means the node reports the transaction as failed.
	StateFailed TxState = "FAILED"
)

// Status is the result of a confirmation status query.
type Status struct {
	State TxState
	// Reason is set when State is StateFailed.
	Reason string
}

// Gateway is the capability interface to the remote ledger node.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Submit sends an opaque signed payload and returns the fingerprint
	// assigned by the node.
	Submit(ctx context.Context, payload []byte) (string, error)

	// GetStatus queries the confirmation status of a previously submitted
	// transaction by its fingerprint.
	GetStatus(ctx context.Context, fingerprint string) (Status, error)

	// GetBalance returns the balance of an account in base units.
	GetBalance(ctx context.Context, address string) (uint64, error)
}
