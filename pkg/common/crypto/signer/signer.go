package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature does not recover to the expected address
var ErrInvalidSignature = errors.New("invalid signature")

var _ Signer = (*LocalSigner)(nil)

// RequestMessage is the text a client signs to authenticate a gateway request
func RequestMessage(method, path string, timestamp int64) []byte {
	return []byte("blobs3\n" + strings.ToUpper(method) + "\n" + path + "\n" + strconv.FormatInt(timestamp, 10))
}

// LocalSigner implements Signer with an in-process key
type LocalSigner struct {
	signingKey *ecdsa.PrivateKey
	address    ethcommon.Address
}

// NewLocalSigner loads the key named by cfg
func NewLocalSigner(cfg *Config) (*LocalSigner, error) {
	if cfg == nil || !cfg.IsValid() {
		return nil, fmt.Errorf("[Signer] exactly one of keystore path or private key is required")
	}

	if cfg.KeystorePath != "" {
		keyJSON, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("[Signer] failed to read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(keyJSON, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("[Signer] failed to decrypt keystore: %w", err)
		}
		return NewLocalSignerFromKey(key.PrivateKey), nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("[Signer] failed to parse private key: %w", err)
	}
	return NewLocalSignerFromKey(key), nil
}

func NewLocalSignerFromKey(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		signingKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// GetSigningAddress returns the address derived from signing key
func (s *LocalSigner) GetSigningAddress() ethcommon.Address {
	return s.address
}

// Sign implements Signer interface. The recovery id is 27 or 28 as wallets produce it.
func (s *LocalSigner) Sign(message []byte) ([]byte, error) {
	signature, err := crypto.Sign(accounts.TextHash(message), s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("[Signer] failed to sign message: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

func (s *LocalSigner) SignRequest(method, path string, timestamp int64) ([]byte, error) {
	return s.Sign(RequestMessage(method, path, timestamp))
}

// RecoverAddress returns the signer of a personal_sign signature over message
func RecoverAddress(message []byte, signature []byte) (ethcommon.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return ethcommon.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// VerifySignature verifies if the signature was signed by the given address
func VerifySignature(address ethcommon.Address, message []byte, signature []byte) error {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if recovered != address {
		return fmt.Errorf("%w: recovered address %s does not match %s", ErrInvalidSignature, recovered.Hex(), address.Hex())
	}
	return nil
}
