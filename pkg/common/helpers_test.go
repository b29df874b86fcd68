package common

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerGetterFunc func(ctx context.Context, number *big.Int) (*types.Header, error)

func (f headerGetterFunc) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return f(ctx, number)
}

func TestToChecksumAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "lowercase",
			input: "0x49ca1f6801c085abb165a827badfd6742a3f8dbc",
			want:  "0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc",
		},
		{
			name:  "uppercase hex digits",
			input: "0x49CA1F6801C085ABB165A827BADFD6742A3F8DBC",
			want:  "0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc",
		},
		{
			name:  "surrounding whitespace",
			input: "  0x49ca1f6801c085abb165a827badfd6742a3f8dbc ",
			want:  "0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc",
		},
		{
			name:    "too short",
			input:   "0x49ca1f",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "0xzzca1f6801c085abb165a827badfd6742a3f8dbc",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToChecksumAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddressCaseInsensitive(t *testing.T) {
	lower, err := ParseAddress("0x49ca1f6801c085abb165a827badfd6742a3f8dbc")
	require.NoError(t, err)
	mixed, err := ParseAddress("0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc")
	require.NoError(t, err)
	assert.Equal(t, lower, mixed)
}

func TestParseBigInt(t *testing.T) {
	v, err := ParseBigInt("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	v, err = ParseBigInt("0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	_, err = ParseBigInt("img.png")
	assert.ErrorIs(t, err, ErrInvalidInteger)

	_, err = ParseBigInt("-1")
	assert.ErrorIs(t, err, ErrInvalidInteger)
}

func TestLatestBlock(t *testing.T) {
	client := headerGetterFunc(func(ctx context.Context, number *big.Int) (*types.Header, error) {
		assert.Nil(t, number)
		return &types.Header{Number: big.NewInt(100), Time: 1700000000}, nil
	})
	height, ts, err := LatestBlock(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), height)
	assert.Equal(t, uint64(1700000000), ts)

	failing := headerGetterFunc(func(ctx context.Context, number *big.Int) (*types.Header, error) {
		return nil, errors.New("connection refused")
	})
	_, _, err = LatestBlock(context.Background(), failing)
	assert.Error(t, err)
}
