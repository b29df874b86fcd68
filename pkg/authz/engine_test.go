package authz

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/chain"
	"github.com/galxe/blobs3/pkg/common"
)

const (
	token     = "0x49ca1F6801c085ABB165a827baDFD6742a3f8DBc"
	userMixed = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	userLower = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	other     = "0x1111111111111111111111111111111111111111"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ERC20BalanceOf(ctx context.Context, token ethcommon.Address, owner ethcommon.Address) (*big.Int, error) {
	args := m.Called(ctx, token, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockClient) ERC721OwnerOf(ctx context.Context, token ethcommon.Address, tokenID *big.Int) (ethcommon.Address, error) {
	args := m.Called(ctx, token, tokenID)
	return args.Get(0).(ethcommon.Address), args.Error(1)
}

func (m *mockClient) ERC1155BalanceOf(ctx context.Context, token ethcommon.Address, owner ethcommon.Address, tokenID *big.Int) (*big.Int, error) {
	args := m.Called(ctx, token, owner, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), Time: 1}, nil
}

func (m *mockClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (m *mockClient) Close() error {
	return nil
}

func addr(s string) ethcommon.Address {
	return ethcommon.HexToAddress(s)
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}

// bigEq matches a *big.Int argument by value
func bigEq(v int64) interface{} {
	return mock.MatchedBy(func(b *big.Int) bool { return b != nil && b.Cmp(big.NewInt(v)) == 0 })
}

type EngineTestSuite struct {
	suite.Suite
	healthy   *mockClient
	unhealthy *mockClient
	registry  *chain.Registry
}

func (s *EngineTestSuite) SetupTest() {
	s.healthy = new(mockClient)
	s.unhealthy = new(mockClient)
	registry, err := chain.NewRegistry(
		// exempt from monitoring, always healthy
		chain.NewHandle(chain.Definition{Name: "wyrm"}, s.healthy),
		// monitored and never probed, so unhealthy
		chain.NewHandle(chain.Definition{Name: "drake", HealthCheckInterval: time.Second}, s.unhealthy),
	)
	s.Require().NoError(err)
	s.registry = registry
}

func (s *EngineTestSuite) TearDownTest() {
	s.healthy.AssertExpectations(s.T())
	s.unhealthy.AssertExpectations(s.T())
}

func (s *EngineTestSuite) engine(rules string) *Engine {
	rs, err := access.Load([]byte(rules))
	s.Require().NoError(err)
	e, err := NewEngine(&Config{Rules: rs, Chains: s.registry})
	s.Require().NoError(err)
	return e
}

func (s *EngineTestSuite) TestERC721Scenario() {
	e := s.engine(`[{
		"storage_path": ["bucket", "dir1", "var/tokenId"],
		"authorization": {"blockchain": "wyrm", "authorization_type": "ERC721", "contract_address": "` + token + `", "token_id": "var/tokenId"},
		"access": "CREATE"
	}]`)
	s.healthy.On("ERC721OwnerOf", mock.Anything, addr(token), bigEq(42)).Return(addr(userMixed), nil).Once()
	s.healthy.On("ERC721OwnerOf", mock.Anything, addr(token), bigEq(43)).Return(addr(other), nil).Once()

	rule, ok, err := e.Authorize(context.Background(), userLower, access.AccessCreate, "bucket/dir1/42/img.png")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]string{"bucket", "dir1", "var/tokenId"}, rule.StoragePath)

	_, ok, err = e.Authorize(context.Background(), userLower, access.AccessCreate, "bucket/dir1/43/img.png")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *EngineTestSuite) TestPublicIgnoresUser() {
	e := s.engine(`[{"storage_path": ["pub"], "authorization": {"blockchain": "nowhere", "authorization_type": "PUBLIC"}, "access": "READ"}]`)

	for _, user := range []string{"", userMixed, other} {
		_, ok, err := e.Authorize(context.Background(), user, access.AccessRead, "/pub/file.txt")
		s.Require().NoError(err)
		s.True(ok, user)
	}

	_, ok, err := e.Authorize(context.Background(), userMixed, access.AccessUpdate, "pub/file.txt")
	s.Require().NoError(err)
	s.False(ok, "access type must match")
}

func (s *EngineTestSuite) TestERC20Threshold() {
	e := s.engine(`[{"storage_path": ["gold"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC20", "contract_address": "` + token + `", "minimum_balance": 100}, "access": "READ"}]`)
	s.healthy.On("ERC20BalanceOf", mock.Anything, addr(token), addr(userMixed)).Return(bigInt(99), nil).Once()
	s.healthy.On("ERC20BalanceOf", mock.Anything, addr(token), addr(userMixed)).Return(bigInt(100), nil).Once()

	_, ok, err := e.Authorize(context.Background(), userMixed, access.AccessRead, "gold/a")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, err = e.Authorize(context.Background(), userMixed, access.AccessRead, "gold/a")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *EngineTestSuite) TestERC1155DefaultMinimum() {
	e := s.engine(`[{"storage_path": ["items", "var/id"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC1155", "contract_address": "` + token + `", "token_id": "var/id"}, "access": "READ"}]`)
	s.healthy.On("ERC1155BalanceOf", mock.Anything, addr(token), addr(userMixed), bigEq(5)).Return(bigInt(0), nil).Once()
	s.healthy.On("ERC1155BalanceOf", mock.Anything, addr(token), addr(userMixed), bigEq(6)).Return(bigInt(1), nil).Once()

	_, ok, err := e.Authorize(context.Background(), userMixed, access.AccessRead, "items/5")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, err = e.Authorize(context.Background(), userMixed, access.AccessRead, "items/6")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *EngineTestSuite) TestUnhealthyChainSkipped() {
	e := s.engine(`[
		{"storage_path": ["vault"], "authorization": {"blockchain": "drake", "authorization_type": "ERC20", "contract_address": "` + token + `"}, "access": "READ"},
		{"storage_path": ["vault"], "authorization": {"blockchain": "missing", "authorization_type": "ERC20", "contract_address": "` + token + `"}, "access": "READ"}
	]`)

	_, ok, err := e.Authorize(context.Background(), userMixed, access.AccessRead, "vault/x")
	s.Require().NoError(err)
	s.False(ok)
	s.unhealthy.AssertNotCalled(s.T(), "ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestTransportErrorFallsThrough() {
	e := s.engine(`[
		{"storage_path": ["vault"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC20", "contract_address": "` + token + `"}, "access": "READ"},
		{"storage_path": ["vault"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC721", "contract_address": "` + token + `", "token_id": 1}, "access": "READ"}
	]`)
	s.healthy.On("ERC20BalanceOf", mock.Anything, addr(token), addr(userMixed)).Return(nil, errors.New("connection reset")).Once()
	s.healthy.On("ERC721OwnerOf", mock.Anything, addr(token), bigEq(1)).Return(addr(userMixed), nil).Once()

	rule, ok, err := e.Authorize(context.Background(), userMixed, access.AccessRead, "vault/x")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(access.AuthorizationERC721, rule.Authorization.AuthorizationType)
}

func (s *EngineTestSuite) TestShorterPatternsFirstAndFirstGrantWins() {
	e := s.engine(`[
		{"storage_path": ["a", "b"], "authorization": {"blockchain": "wyrm", "authorization_type": "PUBLIC"}, "access": "READ"},
		{"storage_path": ["a"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC20", "contract_address": "` + token + `"}, "access": "READ"}
	]`)
	s.healthy.On("ERC20BalanceOf", mock.Anything, addr(token), addr(userMixed)).Return(bigInt(1), nil).Once()

	rule, ok, err := e.Authorize(context.Background(), userMixed, access.AccessRead, "a/b/c")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]string{"a"}, rule.StoragePath)
}

func (s *EngineTestSuite) TestVariableContractAddress() {
	e := s.engine(`[{"storage_path": ["collections", "var/contract", "var/id"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC721", "contract_address": "var/contract", "token_id": "var/id"}, "access": "UPDATE"}]`)
	s.healthy.On("ERC721OwnerOf", mock.Anything, addr(token), bigEq(9)).Return(addr(userMixed), nil).Once()

	_, ok, err := e.Authorize(context.Background(), userMixed, access.AccessUpdate, "collections/0x49ca1f6801c085abb165a827badfd6742a3f8dbc/9/meta.json")
	s.Require().NoError(err)
	s.True(ok)

	// malformed substitutions deny without a query
	_, ok, err = e.Authorize(context.Background(), userMixed, access.AccessUpdate, "collections/not-an-address/9")
	s.Require().NoError(err)
	s.False(ok)
	_, ok, err = e.Authorize(context.Background(), userMixed, access.AccessUpdate, "collections/"+token+"/img.png")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *EngineTestSuite) TestAnonymousOnlyPublic() {
	e := s.engine(`[{"storage_path": ["gold"], "authorization": {"blockchain": "wyrm", "authorization_type": "ERC20", "contract_address": "` + token + `"}, "access": "READ"}]`)

	_, ok, err := e.Authorize(context.Background(), "", access.AccessRead, "gold/a")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *EngineTestSuite) TestInvalidInputs() {
	e := s.engine(`[]`)

	_, _, err := e.Authorize(context.Background(), "0x1234", access.AccessRead, "a")
	s.ErrorIs(err, common.ErrInvalidAddress)

	_, _, err = e.Authorize(context.Background(), userMixed, access.AccessType("DELETE"), "a")
	s.ErrorIs(err, access.ErrInvalidConfig)
}

func (s *EngineTestSuite) TestCancelledContext() {
	e := s.engine(`[{"storage_path": ["a"], "authorization": {"blockchain": "wyrm", "authorization_type": "PUBLIC"}, "access": "READ"}]`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := e.Authorize(ctx, userMixed, access.AccessRead, "a")
	s.ErrorIs(err, context.Canceled)
	s.False(ok)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	rs, err := access.NewRuleSet(nil)
	require.NoError(t, err)
	_, err = NewEngine(&Config{Rules: rs})
	assert.Error(t, err)
}
