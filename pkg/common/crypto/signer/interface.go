package signer

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Signer signs gateway requests on behalf of a wallet
type Signer interface {
	// Sign returns a personal_sign signature over message
	Sign(message []byte) ([]byte, error)
	// SignRequest signs the canonical request message
	SignRequest(method, path string, timestamp int64) ([]byte, error)
	// GetSigningAddress returns the address derived from signing key
	GetSigningAddress() ethcommon.Address
}
