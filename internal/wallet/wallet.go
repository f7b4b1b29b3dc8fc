// internal/wallet/wallet.go
package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcutil/base58"
)

// Wallet represents a signing identity
type Wallet struct {
	PrivateKey *btcec.PrivateKey
	PublicKey  []byte
	Address    string
	CreatedAt  time.Time
}

// NewWallet creates a new wallet with a unique key pair
func NewWallet() (*Wallet, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	return fromPrivateKey(privateKey), nil
}

// Import imports a wallet from a private key hex string
func Import(privateKeyHex string) (*Wallet, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimSpace(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid private key format: %w", err)
	}

	privateKey, _ := btcec.PrivKeyFromBytes(privateKeyBytes)
	if privateKey == nil {
		return nil, errors.New("invalid private key")
	}

	return fromPrivateKey(privateKey), nil
}

// Load reads a hex-encoded private key from a file. If the path is empty a
// fresh keypair is generated instead.
func Load(path string) (*Wallet, error) {
	if path == "" {
		return NewWallet()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	return Import(string(data))
}

// Save writes the hex-encoded private key to a file, readable only by the owner.
func (w *Wallet) Save(path string) error {
	return os.WriteFile(path, []byte(w.ExportPrivateKey()), 0o600)
}

// ExportPrivateKey exports the private key as a hex string
func (w *Wallet) ExportPrivateKey() string {
	return hex.EncodeToString(w.PrivateKey.Serialize())
}

// SignMessage signs a message with the wallet's private key
func (w *Wallet) SignMessage(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	signature := ecdsa.Sign(w.PrivateKey, digest[:])
	return signature.Serialize(), nil
}

// VerifySignature verifies a signature against a compressed public key
func VerifySignature(pubKey, message, signature []byte) (bool, error) {
	parsedPubKey, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}

	parsedSig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}

	digest := sha256.Sum256(message)
	return parsedSig.Verify(digest[:], parsedPubKey), nil
}

func fromPrivateKey(privateKey *btcec.PrivateKey) *Wallet {
	pubKey := privateKey.PubKey().SerializeCompressed()

	// Bitcoin-like address: first 20 bytes of the public key hash, base58
	sha := sha256.New()
	sha.Write(pubKey)
	hash := sha.Sum(nil)
	address := base58.Encode(hash[:20])

	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  pubKey,
		Address:    address,
		CreatedAt:  time.Now(),
	}
}
