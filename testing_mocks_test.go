package epicgame

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/tranvictor/jarvis/networks"
	"github.com/tranvictor/jarvis/util/account"
)

// ============================================================
// Chain mocks
// ============================================================

type gethOverride = gethclient.OverrideAccount

// mockEthReader implements EthReader for testing
type mockEthReader struct {
	mu sync.Mutex

	// Function hooks - set these to customize behavior
	GetPendingNonceFn      func(addr string) (uint64, error)
	EstimateExactGasFn     func(from, to string, gasPrice float64, value *big.Int, data []byte) (uint64, error)
	SuggestedGasSettingsFn func() (float64, float64, error)
	EthCallFn              func(from, to string, data []byte, overrides *map[common.Address]gethclient.OverrideAccount) ([]byte, error)
	TxInfoFromHashFn       func(hash string) (TxInfo, error)

	// Call tracking for assertions
	GetPendingNonceCalls      []string
	EstimateExactGasCalls     int
	SuggestedGasSettingsCalls int
	EthCallCalls              []struct {
		From, To string
		Data     []byte
	}
	TxInfoFromHashCalls []string
}

func (m *mockEthReader) GetPendingNonce(addr string) (uint64, error) {
	m.mu.Lock()
	m.GetPendingNonceCalls = append(m.GetPendingNonceCalls, addr)
	m.mu.Unlock()
	if m.GetPendingNonceFn != nil {
		return m.GetPendingNonceFn(addr)
	}
	return 0, nil
}

func (m *mockEthReader) EstimateExactGas(from, to string, gasPrice float64, value *big.Int, data []byte) (uint64, error) {
	m.mu.Lock()
	m.EstimateExactGasCalls++
	m.mu.Unlock()
	if m.EstimateExactGasFn != nil {
		return m.EstimateExactGasFn(from, to, gasPrice, value, data)
	}
	return 50000, nil
}

func (m *mockEthReader) SuggestedGasSettings() (float64, float64, error) {
	m.mu.Lock()
	m.SuggestedGasSettingsCalls++
	m.mu.Unlock()
	if m.SuggestedGasSettingsFn != nil {
		return m.SuggestedGasSettingsFn()
	}
	return 20.0, 2.0, nil
}

func (m *mockEthReader) EthCall(from, to string, data []byte, overrides *map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	m.mu.Lock()
	m.EthCallCalls = append(m.EthCallCalls, struct {
		From, To string
		Data     []byte
	}{from, to, data})
	m.mu.Unlock()
	if m.EthCallFn != nil {
		return m.EthCallFn(from, to, data, overrides)
	}
	return nil, nil
}

func (m *mockEthReader) TxInfoFromHash(hash string) (TxInfo, error) {
	m.mu.Lock()
	m.TxInfoFromHashCalls = append(m.TxInfoFromHashCalls, hash)
	m.mu.Unlock()
	if m.TxInfoFromHashFn != nil {
		return m.TxInfoFromHashFn(hash)
	}
	return TxInfo{Status: TxStatusPending}, nil
}

// mockEthBroadcaster implements EthBroadcaster for testing
type mockEthBroadcaster struct {
	mu sync.Mutex

	BroadcastTxFn     func(tx *types.Transaction) (string, bool, error)
	BroadcastTxSyncFn func(tx *types.Transaction) (*types.Receipt, error)

	BroadcastTxCalls     []*types.Transaction
	BroadcastTxSyncCalls []*types.Transaction
}

func (m *mockEthBroadcaster) BroadcastTx(tx *types.Transaction) (string, bool, error) {
	m.mu.Lock()
	m.BroadcastTxCalls = append(m.BroadcastTxCalls, tx)
	m.mu.Unlock()
	if m.BroadcastTxFn != nil {
		return m.BroadcastTxFn(tx)
	}
	return tx.Hash().Hex(), true, nil
}

func (m *mockEthBroadcaster) BroadcastTxSync(tx *types.Transaction) (*types.Receipt, error) {
	m.mu.Lock()
	m.BroadcastTxSyncCalls = append(m.BroadcastTxSyncCalls, tx)
	m.mu.Unlock()
	if m.BroadcastTxSyncFn != nil {
		return m.BroadcastTxSyncFn(tx)
	}
	return newSuccessReceipt(tx), nil
}

// mockTxMonitor implements TxMonitor for testing
type mockTxMonitor struct {
	mu sync.Mutex

	StatusToReturn TxMonitorStatus
	Delay          time.Duration

	MakeWaitChannelCalls []string
}

func (m *mockTxMonitor) MakeWaitChannelWithInterval(hash string, interval time.Duration) <-chan TxMonitorStatus {
	m.mu.Lock()
	m.MakeWaitChannelCalls = append(m.MakeWaitChannelCalls, hash)
	status := m.StatusToReturn
	delay := m.Delay
	m.mu.Unlock()

	ch := make(chan TxMonitorStatus, 1)
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		ch <- status
		close(ch)
	}()
	return ch
}

// mockNetwork is a jarvis network with a configurable chain and sync tx support
type mockNetwork struct {
	chainID uint64
	name    string
	syncTx  bool
}

func newMockNetwork(chainID uint64, name string) *mockNetwork {
	return &mockNetwork{chainID: chainID, name: name}
}

func (m *mockNetwork) GetName() string                            { return m.name }
func (m *mockNetwork) GetChainID() uint64                         { return m.chainID }
func (m *mockNetwork) GetAlternativeNames() []string              { return nil }
func (m *mockNetwork) GetNativeTokenSymbol() string               { return "ETH" }
func (m *mockNetwork) GetNativeTokenDecimal() uint64              { return 18 }
func (m *mockNetwork) GetBlockTime() time.Duration                { return 12 * time.Second }
func (m *mockNetwork) GetNodeVariableName() string                { return "MOCK_NODE" }
func (m *mockNetwork) GetDefaultNodes() map[string]string         { return nil }
func (m *mockNetwork) GetBlockExplorerAPIKeyVariableName() string { return "" }
func (m *mockNetwork) GetBlockExplorerAPIURL() string             { return "" }
func (m *mockNetwork) RecommendedGasPrice() (float64, error)      { return 20.0, nil }
func (m *mockNetwork) GetABIString(address string) (string, error) {
	return "", nil
}
func (m *mockNetwork) IsSyncTxSupported() bool      { return m.syncTx }
func (m *mockNetwork) MultiCallContract() string    { return "" }
func (m *mockNetwork) MarshalJSON() ([]byte, error) { return []byte(`{}`), nil }
func (m *mockNetwork) UnmarshalJSON([]byte) error   { return nil }

var _ networks.Network = (*mockNetwork)(nil)

// mockRevertError mimics the JSON-RPC error of a reverted eth_call
type mockRevertError struct {
	data string
}

func (e *mockRevertError) Error() string          { return "execution reverted" }
func (e *mockRevertError) ErrorCode() int         { return 3 }
func (e *mockRevertError) ErrorData() interface{} { return e.data }

// ============================================================
// Wallet mocks
// ============================================================

// mockWalletProvider implements WalletProvider for testing
type mockWalletProvider struct {
	mu sync.Mutex

	ChainIDValue uint64
	Accounts     []common.Address
	RequestErr   error
	SwitchErr    error
	Signers      map[common.Address]Signer

	RequestAccountsCalls int
	SwitchChainCalls     []uint64
	changes              chan uint64
}

func (m *mockWalletProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestAccountsCalls++
	if m.RequestErr != nil {
		return nil, m.RequestErr
	}
	return m.Accounts, nil
}

func (m *mockWalletProvider) ChainID(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ChainIDValue, nil
}

func (m *mockWalletProvider) SwitchChain(_ context.Context, chainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SwitchChainCalls = append(m.SwitchChainCalls, chainID)
	return m.SwitchErr
}

func (m *mockWalletProvider) SubscribeChainChanged(ctx context.Context) (<-chan uint64, error) {
	m.mu.Lock()
	if m.changes == nil {
		m.changes = make(chan uint64, 4)
	}
	ch := m.changes
	m.mu.Unlock()
	return ch, nil
}

func (m *mockWalletProvider) Signer(addr common.Address) (Signer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Signers[addr]; ok {
		return s, nil
	}
	return nil, ErrNoAccount
}

// emitChainChanged simulates the wallet moving to another chain
func (m *mockWalletProvider) emitChainChanged(chainID uint64) {
	m.mu.Lock()
	if m.changes == nil {
		m.changes = make(chan uint64, 4)
	}
	ch := m.changes
	m.mu.Unlock()
	ch <- chainID
}

// ============================================================
// Contract mocks
// ============================================================

// mockBackend implements Backend, confirming every tx unless WaitFn says otherwise
type mockBackend struct {
	mu sync.Mutex

	from   common.Address
	WaitFn func(tx *types.Transaction) (*types.Receipt, error)

	WaitCalls []common.Hash
}

func (m *mockBackend) From() common.Address { return m.from }

func (m *mockBackend) Call(context.Context, common.Address, []byte) ([]byte, error) {
	return nil, errors.New("mockBackend does not serve calls")
}

func (m *mockBackend) Submit(context.Context, common.Address, []byte) (*types.Transaction, error) {
	return nil, errors.New("mockBackend does not serve submits")
}

func (m *mockBackend) Wait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	m.mu.Lock()
	m.WaitCalls = append(m.WaitCalls, tx.Hash())
	m.mu.Unlock()
	if m.WaitFn != nil {
		return m.WaitFn(tx)
	}
	return newSuccessReceipt(tx), nil
}

// txCounter hands out distinct transactions
type txCounter struct {
	mu    sync.Mutex
	nonce uint64
}

func (c *txCounter) next() *types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce++
	return newTestTx(c.nonce, testGameAddr)
}

// mockToken implements TokenContract for testing
type mockToken struct {
	mu  sync.Mutex
	txs *txCounter

	Balance    *big.Int
	BalanceErr error
	ApproveErr error
	FaucetErr  error

	BalanceOfCalls int
	ApproveCalls   []struct {
		Spender common.Address
		Amount  *big.Int
	}
	FaucetCalls []struct {
		To     common.Address
		Amount *big.Int
	}
}

func (m *mockToken) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BalanceOfCalls++
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	return new(big.Int).Set(m.Balance), nil
}

func (m *mockToken) Approve(_ context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApproveCalls = append(m.ApproveCalls, struct {
		Spender common.Address
		Amount  *big.Int
	}{spender, new(big.Int).Set(amount)})
	if m.ApproveErr != nil {
		return nil, m.ApproveErr
	}
	return m.txs.next(), nil
}

func (m *mockToken) Faucet(_ context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FaucetCalls = append(m.FaucetCalls, struct {
		To     common.Address
		Amount *big.Int
	}{to, new(big.Int).Set(amount)})
	if m.FaucetErr != nil {
		return nil, m.FaucetErr
	}
	return m.txs.next(), nil
}

// mockGame implements GameContract for testing
type mockGame struct {
	mu  sync.Mutex
	txs *txCounter

	Owned    Record
	Roster   []Record
	Boss     Record
	Attacks  []Record
	Specials []Record

	CheckErr  error
	BossErr   error
	WriteErr  error
	WriteHook func(method string)

	CheckCalls   int
	RosterCalls  int
	SpecialCalls int
	Writes       []string
	WriteArgs    []*big.Int
}

func (m *mockGame) Address() common.Address { return testGameAddr }

func (m *mockGame) CheckIfUserHasNFT(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckCalls++
	if m.CheckErr != nil {
		return nil, m.CheckErr
	}
	return m.Owned, nil
}

func (m *mockGame) GetAllDefaultCharacters(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RosterCalls++
	return m.Roster, nil
}

func (m *mockGame) GetBigBoss(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BossErr != nil {
		return nil, m.BossErr
	}
	return m.Boss, nil
}

func (m *mockGame) GetAllAttacks(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Attacks, nil
}

func (m *mockGame) GetAllSpecialAttacks(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpecialCalls++
	return m.Specials, nil
}

func (m *mockGame) write(method string, arg *big.Int) (*types.Transaction, error) {
	m.mu.Lock()
	m.Writes = append(m.Writes, method)
	m.WriteArgs = append(m.WriteArgs, arg)
	hook, err := m.WriteHook, m.WriteErr
	m.mu.Unlock()
	if hook != nil {
		hook(method)
	}
	if err != nil {
		return nil, err
	}
	return m.txs.next(), nil
}

func (m *mockGame) MintCharacterNFT(_ context.Context, i *big.Int) (*types.Transaction, error) {
	return m.write("mintCharacterNFT", i)
}

func (m *mockGame) AttackBoss(_ context.Context, i *big.Int) (*types.Transaction, error) {
	return m.write("attackBoss", i)
}

func (m *mockGame) AttackSpecialBoss(_ context.Context, i *big.Int) (*types.Transaction, error) {
	return m.write("attackSpecialBoss", i)
}

func (m *mockGame) ClaimHealth(context.Context) (*types.Transaction, error) {
	return m.write("claimHealth", nil)
}

func (m *mockGame) BuySpecialAttack(_ context.Context, i *big.Int) (*types.Transaction, error) {
	return m.write("buySpecialAttack", i)
}

// recordingNotifier keeps every notification
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

func (r *recordingNotifier) messages() []string {
	var out []string
	for _, n := range r.all() {
		out = append(out, n.Message)
	}
	return out
}

func (r *recordingNotifier) count(kind NotificationKind, msg string) int {
	c := 0
	for _, n := range r.all() {
		if n.Kind == kind && n.Message == msg {
			c++
		}
	}
	return c
}

// ============================================================
// Test Fixtures
// ============================================================

const (
	testPrivateKeyHex1 = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testPrivateKeyHex2 = "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
)

var (
	testTokenAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testGameAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")

	testChainID = uint64(1337)
)

func newTestTx(nonce uint64, to common.Address) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(testChainID),
		Nonce:     nonce,
		GasTipCap: big.NewInt(2000000000),
		GasFeeCap: big.NewInt(20000000000),
		Gas:       50000,
		To:        &to,
		Value:     big.NewInt(0),
	})
}

func newTestReceipt(tx *types.Transaction, status uint64) *types.Receipt {
	return &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(12345678),
		GasUsed:     tx.Gas(),
	}
}

func newSuccessReceipt(tx *types.Transaction) *types.Receipt {
	return newTestReceipt(tx, types.ReceiptStatusSuccessful)
}

func newFailedReceipt(tx *types.Transaction) *types.Receipt {
	return newTestReceipt(tx, types.ReceiptStatusFailed)
}

func testAccount(t *testing.T, hex string) *account.Account {
	t.Helper()
	acc, err := account.NewPrivateKeyAccount(hex)
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return acc
}

// ============================================================
// Test Helpers
// ============================================================

// sessionSetup wires a session to mocked contracts and backend
type sessionSetup struct {
	Session  *Session
	Provider *mockWalletProvider
	Backend  *mockBackend
	Token    *mockToken
	Game     *mockGame
	Notes    *recordingNotifier
	Account  common.Address

	GameBinds int
}

func fixtureCharacter(name string, idx int64) Record {
	return Character{
		Index:          big.NewInt(idx),
		Name:           name,
		ImageURI:       "ipfs://" + name,
		HP:             big.NewInt(100),
		MaxHP:          big.NewInt(100),
		Attacks:        []*big.Int{big.NewInt(0), big.NewInt(1)},
		SpecialAttacks: []*big.Int{},
		LastRegenTime:  big.NewInt(1650000000),
		TokenID:        big.NewInt(idx + 1),
	}.Record()
}

// newSessionSetup returns a session for an account without a character:
// balance 0, three default characters, two attacks, one special attack.
func newSessionSetup(t *testing.T, opts ...SessionOption) *sessionSetup {
	t.Helper()

	acc := testAccount(t, testPrivateKeyHex1)
	txs := &txCounter{}
	setup := &sessionSetup{
		Provider: &mockWalletProvider{
			ChainIDValue: testChainID,
			Accounts:     []common.Address{acc.Address()},
			Signers:      map[common.Address]Signer{acc.Address(): acc},
		},
		Backend: &mockBackend{from: acc.Address()},
		Token:   &mockToken{txs: txs, Balance: big.NewInt(0)},
		Game: &mockGame{
			txs:   txs,
			Owned: Character{Name: ""}.Record(),
			Roster: []Record{
				fixtureCharacter("Ironman", 0),
				fixtureCharacter("Thor", 1),
				fixtureCharacter("Hulk", 2),
			},
			Boss: Boss{
				Name:         "Thanos",
				ImageURI:     "ipfs://thanos",
				AttackDamage: big.NewInt(25),
				HP:           big.NewInt(10000),
				MaxHP:        big.NewInt(10000),
			}.Record(),
			Attacks: []Record{
				Attack{Index: big.NewInt(0), Name: "Punch", ImageURI: "ipfs://punch", Damage: big.NewInt(10)}.Record(),
				Attack{Index: big.NewInt(1), Name: "Kick", ImageURI: "ipfs://kick", Damage: big.NewInt(15)}.Record(),
			},
			Specials: []Record{
				SpecialAttack{Index: big.NewInt(0), Name: "Mjolnir", ImageURI: "ipfs://mjolnir", Damage: big.NewInt(100), Price: tokens("5")}.Record(),
			},
		},
		Notes:   &recordingNotifier{},
		Account: acc.Address(),
	}

	base := []SessionOption{
		WithBackendFactory(func(networks.Network, Signer) (Backend, error) {
			return setup.Backend, nil
		}),
		WithTokenBinder(func(common.Address, ContractBackend) (TokenContract, error) {
			return setup.Token, nil
		}),
		WithGameBinder(func(common.Address, ContractBackend) (GameContract, error) {
			setup.GameBinds++
			return setup.Game, nil
		}),
		WithNotifier(setup.Notes),
	}

	s, err := NewSession(newMockNetwork(testChainID, "epicnet"), Contracts{Token: testTokenAddr, Game: testGameAddr}, setup.Provider, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(s.Close)
	setup.Session = s
	return setup
}

// start runs Session.Start and fails the test on error
func (s *sessionSetup) start(t *testing.T) {
	t.Helper()
	if err := s.Session.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
}

// withBalance sets the token balance and loads it into the session
func (s *sessionSetup) withBalance(t *testing.T, wei string) {
	t.Helper()
	b, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		t.Fatalf("bad balance %q", wei)
	}
	s.Token.mu.Lock()
	s.Token.Balance = b
	s.Token.mu.Unlock()
	if _, err := s.Session.FetchBalance(context.Background()); err != nil {
		t.Fatalf("Failed to fetch balance: %v", err)
	}
}
