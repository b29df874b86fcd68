package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/galxe/blobs3/pkg/common/contracts"
	"github.com/galxe/blobs3/pkg/common/contracts/bindings"
)

var _ contracts.ChainClient = (*ChainClient)(nil)

// Config contains the connection settings of a single chain
type Config struct {
	Name     string
	Endpoint string
	// ChainID is compared against the node when non-zero
	ChainID uint64
}

// Backend is the subset of *ethclient.Client used by ChainClient
type Backend interface {
	bind.ContractCaller
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// ChainClient answers token queries against one chain.
// It is safe for concurrent use.
type ChainClient struct {
	name    string
	backend Backend
}

// Dial connects to the node at cfg.Endpoint
func Dial(ctx context.Context, cfg *Config) (*ChainClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[ChainClient] config is nil")
	}
	ethClient, err := ethclient.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to connect to %s node: %w", cfg.Name, err)
	}

	if cfg.ChainID != 0 {
		id, err := ethClient.ChainID(ctx)
		if err != nil {
			ethClient.Close()
			return nil, fmt.Errorf("[ChainClient] failed to get chain id of %s: %w", cfg.Name, err)
		}
		if !id.IsUint64() || id.Uint64() != cfg.ChainID {
			ethClient.Close()
			return nil, fmt.Errorf("[ChainClient] chain %s reports id %s, expected %d", cfg.Name, id, cfg.ChainID)
		}
	}

	return NewChainClient(cfg.Name, ethClient), nil
}

// NewChainClient wraps an already connected backend
func NewChainClient(name string, backend Backend) *ChainClient {
	return &ChainClient{
		name:    name,
		backend: backend,
	}
}

// Name returns the configured chain name
func (c *ChainClient) Name() string {
	return c.name
}

// Close implements contracts.ChainClient
func (c *ChainClient) Close() error {
	c.backend.Close()
	return nil
}

// HeaderByNumber returns a block header, nil number means latest
func (c *ChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.backend.HeaderByNumber(ctx, number)
}

func (c *ChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.backend.ChainID(ctx)
}

// Token methods
func (c *ChainClient) ERC20BalanceOf(ctx context.Context, token common.Address, owner common.Address) (*big.Int, error) {
	caller, err := bindings.NewERC20Caller(token, c.backend)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to create erc20 binding: %w", err)
	}
	balance, err := caller.BalanceOf(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to get erc20 balance of %s on %s: %w", owner.Hex(), token.Hex(), err)
	}
	return balance, nil
}

func (c *ChainClient) ERC721OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error) {
	caller, err := bindings.NewERC721Caller(token, c.backend)
	if err != nil {
		return common.Address{}, fmt.Errorf("[ChainClient] failed to create erc721 binding: %w", err)
	}
	owner, err := caller.OwnerOf(&bind.CallOpts{Context: ctx}, tokenID)
	if err != nil {
		return common.Address{}, fmt.Errorf("[ChainClient] failed to get owner of token %s on %s: %w", tokenID, token.Hex(), err)
	}
	return owner, nil
}

func (c *ChainClient) ERC1155BalanceOf(ctx context.Context, token common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	caller, err := bindings.NewERC1155Caller(token, c.backend)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to create erc1155 binding: %w", err)
	}
	balance, err := caller.BalanceOf(&bind.CallOpts{Context: ctx}, owner, tokenID)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to get erc1155 balance of %s for token %s on %s: %w", owner.Hex(), tokenID, token.Hex(), err)
	}
	return balance, nil
}
