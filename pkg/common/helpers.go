package common

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrInvalidAddress is returned when a string cannot be normalized to a checksum address
var ErrInvalidAddress = errors.New("invalid address")

// ErrInvalidInteger is returned when a token id or balance cannot be parsed
var ErrInvalidInteger = errors.New("invalid integer")

// HeaderGetter defines the interface for reading block headers that the helper functions need
type HeaderGetter interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ParseAddress converts a hex string of any letter casing to an address.
// The address compares equal to every other casing of itself.
func ParseAddress(s string) (ethcommon.Address, error) {
	s = strings.TrimSpace(s)
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return ethcommon.HexToAddress(s), nil
}

// ToChecksumAddress returns the EIP-55 form of s
func ToChecksumAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// ParseBigInt parses a non-negative decimal or 0x-prefixed hex integer
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidInteger)
	}
	v, ok := math.ParseBig256(s)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInteger, s)
	}
	return v, nil
}

// LatestBlock returns the height and timestamp of the newest block known to the client
func LatestBlock(ctx context.Context, client HeaderGetter) (uint64, uint64, error) {
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get latest header: %w", err)
	}
	if header == nil || header.Number == nil {
		return 0, 0, errors.New("latest header is empty")
	}
	return header.Number.Uint64(), header.Time, nil
}
