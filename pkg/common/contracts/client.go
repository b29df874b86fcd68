package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TokenQuerier defines the read-only token queries used to evaluate authorization rules
type TokenQuerier interface {
	// ERC20 balanceOf(owner)
	ERC20BalanceOf(ctx context.Context, token common.Address, owner common.Address) (*big.Int, error)

	// ERC721 ownerOf(tokenId)
	ERC721OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error)

	// ERC1155 balanceOf(owner, id)
	ERC1155BalanceOf(ctx context.Context, token common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error)
}

// BlockReader reads chain heads for health probing
type BlockReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ChainClient defines the interface for interacting with a single chain
type ChainClient interface {
	TokenQuerier
	BlockReader

	// ChainID returns the id reported by the node
	ChainID(ctx context.Context) (*big.Int, error)

	// Close closes the client connection
	Close() error
}
