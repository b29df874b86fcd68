package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/galxe/blobs3/pkg/common/contracts"
)

// QueryCache is the read-through cache used by CachedClient
type QueryCache interface {
	Get(ctx context.Context, queryKey string, target interface{}, expire time.Duration, f func() (interface{}, error)) error
}

// queryResult is the cached form of a token query
type queryResult struct {
	Value string `msgpack:"v"`
}

// CachedClient decorates a ChainClient so that token queries are served from a
// read-through cache for ttl. Header reads are never cached.
type CachedClient struct {
	contracts.ChainClient
	chain string
	cache QueryCache
	ttl   time.Duration
}

// NewCachedClient wraps inner with cache
func NewCachedClient(chain string, inner contracts.ChainClient, cache QueryCache, ttl time.Duration) (*CachedClient, error) {
	if inner == nil {
		return nil, fmt.Errorf("[CachedClient] inner client is nil")
	}
	if cache == nil {
		return nil, fmt.Errorf("[CachedClient] cache is nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("[CachedClient] ttl must be positive")
	}
	return &CachedClient{
		ChainClient: inner,
		chain:       chain,
		cache:       cache,
		ttl:         ttl,
	}, nil
}

func (c *CachedClient) key(kind string, parts ...string) string {
	key := fmt.Sprintf("blobs3:%s:%s", c.chain, kind)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *CachedClient) ERC20BalanceOf(ctx context.Context, token common.Address, owner common.Address) (*big.Int, error) {
	var res queryResult
	err := c.cache.Get(ctx, c.key("erc20", token.Hex(), owner.Hex()), &res, c.ttl, func() (interface{}, error) {
		balance, err := c.ChainClient.ERC20BalanceOf(ctx, token, owner)
		if err != nil {
			return nil, err
		}
		return &queryResult{Value: balance.String()}, nil
	})
	if err != nil {
		return nil, err
	}
	return parseCachedInt(res.Value)
}

func (c *CachedClient) ERC721OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error) {
	var res queryResult
	err := c.cache.Get(ctx, c.key("erc721", token.Hex(), tokenID.String()), &res, c.ttl, func() (interface{}, error) {
		owner, err := c.ChainClient.ERC721OwnerOf(ctx, token, tokenID)
		if err != nil {
			return nil, err
		}
		return &queryResult{Value: owner.Hex()}, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(res.Value) {
		return common.Address{}, fmt.Errorf("[CachedClient] corrupt cached owner %q", res.Value)
	}
	return common.HexToAddress(res.Value), nil
}

func (c *CachedClient) ERC1155BalanceOf(ctx context.Context, token common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	var res queryResult
	err := c.cache.Get(ctx, c.key("erc1155", token.Hex(), owner.Hex(), tokenID.String()), &res, c.ttl, func() (interface{}, error) {
		balance, err := c.ChainClient.ERC1155BalanceOf(ctx, token, owner, tokenID)
		if err != nil {
			return nil, err
		}
		return &queryResult{Value: balance.String()}, nil
	})
	if err != nil {
		return nil, err
	}
	return parseCachedInt(res.Value)
}

func parseCachedInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("[CachedClient] corrupt cached integer %q", s)
	}
	return v, nil
}
