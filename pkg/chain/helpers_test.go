package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeClient struct {
	mu       sync.Mutex
	next     func(call int) (*types.Header, error)
	calls    int
	closed   bool
	closeErr error
}

// advancing returns a client whose height and timestamp grow on every call
func advancing() *fakeClient {
	return &fakeClient{next: func(call int) (*types.Header, error) {
		return header(uint64(call), uint64(1000+call)), nil
	}}
}

// scripted returns the given headers in order, repeating the last one
func scripted(headers ...*types.Header) *fakeClient {
	return &fakeClient{next: func(call int) (*types.Header, error) {
		if call > len(headers) {
			call = len(headers)
		}
		return headers[call-1], nil
	}}
}

func header(height, timestamp uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(height), Time: timestamp}
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.next(f.calls)
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeClient) ERC20BalanceOf(ctx context.Context, token common.Address, owner common.Address) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) ERC721OwnerOf(ctx context.Context, token common.Address, tokenID *big.Int) (common.Address, error) {
	return common.Address{}, errors.New("not implemented")
}

func (f *fakeClient) ERC1155BalanceOf(ctx context.Context, token common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
