// internal/transfer/transfer.go
package transfer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/cmatc13/txpilot/internal/wallet"
)

// Transfer is a simple value transfer between two addresses. It exists so the
// tool has something realistic to submit; the submission engine itself only
// ever sees the encoded payload.
type Transfer struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
	Digest    string `json:"digest"`
}

// New creates an unsigned transfer
func New(sender, recipient string, amount uint64, nonce string) (*Transfer, error) {
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if sender == "" || recipient == "" {
		return nil, fmt.Errorf("sender and recipient must not be empty")
	}

	t := &Transfer{
		ID:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Nonce:     nonce,
		Timestamp: time.Now().Unix(),
	}

	digest, err := t.CalculateDigest()
	if err != nil {
		return nil, err
	}
	t.Digest = digest

	return t, nil
}

// SignableData returns the data that should be signed
func (t *Transfer) SignableData() ([]byte, error) {
	signData := fmt.Sprintf("%s|%s|%s|%d|%s|%d",
		t.ID, t.Sender, t.Recipient, t.Amount, t.Nonce, t.Timestamp)
	return []byte(signData), nil
}

// CalculateDigest calculates the transfer digest over all fields except the
// signature and the digest itself.
func (t *Transfer) CalculateDigest() (string, error) {
	copied := *t
	copied.Signature = nil
	copied.Digest = ""

	data, err := json.Marshal(copied)
	if err != nil {
		return "", fmt.Errorf("failed to serialize transfer: %w", err)
	}

	hash := blake2b.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Sign signs the transfer with the given wallet and records the public key.
func (t *Transfer) Sign(w *wallet.Wallet) error {
	signData, err := t.SignableData()
	if err != nil {
		return err
	}

	signature, err := w.SignMessage(signData)
	if err != nil {
		return fmt.Errorf("failed to sign transfer: %w", err)
	}

	t.PublicKey = w.PublicKey
	t.Signature = signature
	return nil
}

// Verify checks the transfer signature against the embedded public key.
func (t *Transfer) Verify() (bool, error) {
	if len(t.Signature) == 0 {
		return false, fmt.Errorf("transfer is not signed")
	}

	signData, err := t.SignableData()
	if err != nil {
		return false, err
	}

	return wallet.VerifySignature(t.PublicKey, signData, t.Signature)
}

// Encode serializes the signed transfer into the opaque payload submitted to
// the ledger node.
func (t *Transfer) Encode() ([]byte, error) {
	if len(t.Signature) == 0 {
		return nil, fmt.Errorf("cannot encode an unsigned transfer")
	}
	return json.Marshal(t)
}

// Decode deserializes a payload produced by Encode.
func Decode(payload []byte) (*Transfer, error) {
	var t Transfer
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("failed to decode transfer payload: %w", err)
	}
	return &t, nil
}
