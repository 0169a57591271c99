package evm

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/signer"
	"github.com/ClipFinance/bridge-coordinator/chains/evm/utils"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	testBridge = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testToken  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testTxID   = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

type onchainTx struct {
	User          common.Address
	Token         common.Address
	Amount        *big.Int
	Fee           *big.Int
	SourceChain   *big.Int
	TargetChain   *big.Int
	TargetAddress string
	Timestamp     *big.Int
	Status        uint8
}

// fakeClient emulates an ERC20 token and the bridge contract.
type fakeClient struct {
	mu            sync.Mutex
	chainID       int64
	closed        bool
	nonce         uint64
	allowance     *big.Int
	revertApprove bool
	approveNoop   bool
	dropEvent     bool
	sent          []string
	receipts      map[common.Hash]*ethtypes.Receipt
	txs           map[common.Hash]onchainTx
	userTxs       [][32]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chainID:   11155111,
		allowance: big.NewInt(0),
		receipts:  map[common.Hash]*ethtypes.Receipt{},
		txs:       map[common.Hash]onchainTx{},
	}
}

func decodeCall(t abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	method, err := t.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	return method, args, err
}

func (f *fakeClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if *msg.To == testToken {
		method, _, err := decodeCall(erc20ABI, msg.Data)
		if err != nil {
			return nil, err
		}
		if method.Name != "allowance" {
			return nil, errors.Errorf("unexpected token call %s", method.Name)
		}
		return method.Outputs.Pack(f.allowance)
	}

	method, args, err := decodeCall(bridgeABI, msg.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getTransaction":
		id := args[0].([32]byte)
		tx, ok := f.txs[common.Hash(id)]
		if !ok {
			return method.Outputs.Pack(common.Address{}, common.Address{}, big.NewInt(0), big.NewInt(0),
				big.NewInt(0), big.NewInt(0), "", big.NewInt(0), uint8(0))
		}
		return method.Outputs.Pack(tx.User, tx.Token, tx.Amount, tx.Fee, tx.SourceChain, tx.TargetChain,
			tx.TargetAddress, tx.Timestamp, tx.Status)
	case "getUserTransactions":
		return method.Outputs.Pack(f.userTxs)
	case "estimateFee":
		amount := args[1].(*big.Int)
		return method.Outputs.Pack(new(big.Int).Div(amount, big.NewInt(100)))
	case "checkFeeRequirements":
		return method.Outputs.Pack(true, false, big.NewInt(10), big.NewInt(0))
	}
	return nil, errors.Errorf("unexpected bridge call %s", method.Name)
}

func (f *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeClient) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{BaseFee: big.NewInt(100)}, nil
}

func (f *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce++

	receipt := &ethtypes.Receipt{
		TxHash:      tx.Hash(),
		Status:      ethtypes.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(10),
	}

	switch *tx.To() {
	case testToken:
		method, args, err := decodeCall(erc20ABI, tx.Data())
		if err != nil {
			return err
		}
		f.sent = append(f.sent, method.Name)
		if f.revertApprove {
			receipt.Status = ethtypes.ReceiptStatusFailed
		} else if !f.approveNoop {
			f.allowance = args[1].(*big.Int)
		}
	case testBridge:
		method, args, err := decodeCall(bridgeABI, tx.Data())
		if err != nil {
			return err
		}
		f.sent = append(f.sent, method.Name)
		amount := args[1].(*big.Int)
		if f.allowance.Cmp(amount) < 0 {
			receipt.Status = ethtypes.ReceiptStatusFailed
			break
		}
		f.allowance = new(big.Int).Sub(f.allowance, amount)
		if f.dropEvent {
			break
		}
		data, err := bridgeABI.Events["BridgeInitiated"].Inputs.NonIndexed().Pack(
			amount, big.NewInt(1), args[2].(*big.Int), args[3].(string))
		if err != nil {
			return err
		}
		from, _ := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx)
		receipt.Logs = []*ethtypes.Log{{
			Address: testBridge,
			Topics: []common.Hash{
				utils.BridgeInitiatedTopic,
				testTxID,
				common.BytesToHash(from.Bytes()),
				common.BytesToHash(args[0].(common.Address).Bytes()),
			},
			Data: data,
		}}
	}

	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeClient) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return 20, nil
}

func (f *fakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func newTestEvm(t *testing.T, client Client) *evm {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := signer.FromHex(devKey, 11155111)
	require.NoError(t, err)

	config := &types.ChainConfig{
		Name:          "sepolia",
		ChainID:       11155111,
		BridgeAddress: testBridge.Hex(),
		BridgeVersion: types.BridgeV2,
		WaitNBlocks:   2,
		PollInterval:  time.Millisecond,
	}
	caps, err := types.CapabilitiesForVersion(config.BridgeVersion)
	require.NoError(t, err)
	return newEvm(config, caps, client, s, logger)
}

func submitRequest(amount int64) *types.SubmitRequest {
	return &types.SubmitRequest{
		ChainID:     11155111,
		Token:       testToken.Hex(),
		Amount:      big.NewInt(amount),
		DestChain:   97,
		DestAddress: "0x00000000000000000000000000000000000000d1",
	}
}

func TestSubmitLockApprovesFirst(t *testing.T) {
	client := newFakeClient()
	chain := newTestEvm(t, client)

	id, err := chain.SubmitLock(context.Background(), submitRequest(500))
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(testTxID.Bytes()), id)
	assert.Equal(t, []string{"approve", "lockTokens"}, client.sent)
	assert.Equal(t, 0, client.allowance.Sign(), "the transfer spends the approval")
}

func TestConcurrentSubmitsOfOneTokenDoNotShareApprovals(t *testing.T) {
	client := newFakeClient()
	chain := newTestEvm(t, client)

	amounts := []int64{500, 300}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount int64) {
			defer wg.Done()
			_, errs[i] = chain.SubmitLock(context.Background(), submitRequest(amount))
		}(i, amount)
	}
	wg.Wait()

	for i := range amounts {
		assert.NoError(t, errs[i], "submit of %d", amounts[i])
	}
	assert.Equal(t, []string{"approve", "lockTokens", "approve", "lockTokens"}, client.sent)
	assert.Equal(t, 0, client.allowance.Sign())
}

func TestSubmitWaitsForTokenLockWithContext(t *testing.T) {
	client := newFakeClient()
	chain := newTestEvm(t, client)

	unlock, err := chain.lockToken(context.Background(), testToken)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = chain.SubmitLock(ctx, submitRequest(500))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, client.sent)
}

func TestSubmitWithoutEventReportsTxHash(t *testing.T) {
	client := newFakeClient()
	client.allowance = big.NewInt(500)
	client.dropEvent = true
	chain := newTestEvm(t, client)

	_, err := chain.SubmitLock(context.Background(), submitRequest(500))
	require.Error(t, err)
	assert.ErrorIs(t, err, bridgeerrors.ErrTransferUnconfirmed)

	var subErr *bridgeerrors.SubmittedError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, uint64(11155111), subErr.ChainID)
	require.Len(t, client.receipts, 1)
	for hash := range client.receipts {
		assert.Equal(t, hash.Hex(), subErr.TxHash)
	}
}

func TestSubmitBurnSkipsApproveWithAllowance(t *testing.T) {
	client := newFakeClient()
	client.allowance = big.NewInt(1000)
	chain := newTestEvm(t, client)

	_, err := chain.SubmitBurnAndMint(context.Background(), submitRequest(500))
	require.NoError(t, err)
	assert.Equal(t, []string{"burnAndBridge"}, client.sent)
}

func TestSubmitApprovalFailures(t *testing.T) {
	client := newFakeClient()
	client.revertApprove = true
	chain := newTestEvm(t, client)

	_, err := chain.SubmitLock(context.Background(), submitRequest(500))
	assert.ErrorIs(t, err, bridgeerrors.ErrApprovalFailed)
	assert.Equal(t, []string{"approve"}, client.sent, "transfer must not be sent without approval")

	client = newFakeClient()
	client.approveNoop = true
	chain = newTestEvm(t, client)

	_, err = chain.SubmitLock(context.Background(), submitRequest(500))
	assert.ErrorIs(t, err, bridgeerrors.ErrApprovalFailed)
}

func TestSubmitValidation(t *testing.T) {
	client := newFakeClient()
	chain := newTestEvm(t, client)

	_, err := chain.SubmitLock(context.Background(), submitRequest(0))
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidRequest)

	req := submitRequest(5)
	req.Sender = "0x00000000000000000000000000000000000000e1"
	_, err = chain.SubmitLock(context.Background(), req)
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidRequest)

	req = submitRequest(5)
	req.Token = "nope"
	_, err = chain.SubmitLock(context.Background(), req)
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidRequest)
	assert.Empty(t, client.sent)
}

func TestGetTransaction(t *testing.T) {
	client := newFakeClient()
	user := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	client.txs[testTxID] = onchainTx{
		User:          user,
		Token:         testToken,
		Amount:        big.NewInt(1000),
		Fee:           big.NewInt(25),
		SourceChain:   big.NewInt(11155111),
		TargetChain:   big.NewInt(97),
		TargetAddress: "0xdest",
		Timestamp:     big.NewInt(1700000000),
		Status:        2,
	}
	chain := newTestEvm(t, client)

	tx, err := chain.GetTransaction(context.Background(), testTxID.Hex())
	require.NoError(t, err)
	assert.Equal(t, user.Hex(), tx.User)
	assert.Equal(t, big.NewInt(25), tx.Fee)
	assert.Equal(t, uint64(97), tx.TargetChain)
	assert.Equal(t, types.StatusReleased, tx.Status)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tx.CreatedAt)

	_, err = chain.GetTransaction(context.Background(), common.HexToHash("0x22").Hex())
	assert.ErrorIs(t, err, bridgeerrors.ErrNotFound)

	_, err = chain.GetTransaction(context.Background(), "0x1234")
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidRequest)

	bad := client.txs[testTxID]
	bad.Status = 9
	client.txs[testTxID] = bad
	_, err = chain.GetTransaction(context.Background(), testTxID.Hex())
	assert.ErrorIs(t, err, types.ErrUnknownStatusCode)
}

func TestGetUserTransactionsMostRecentFirst(t *testing.T) {
	client := newFakeClient()
	client.userTxs = [][32]byte{common.HexToHash("0x01"), common.HexToHash("0x02")}
	chain := newTestEvm(t, client)

	ids, err := chain.GetUserTransactions(context.Background(), "0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	assert.Equal(t, []string{common.HexToHash("0x02").Hex(), common.HexToHash("0x01").Hex()}, ids)

	_, err = chain.GetUserTransactions(context.Background(), "bad")
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidRequest)
}

func TestFees(t *testing.T) {
	chain := newTestEvm(t, newFakeClient())

	fee, err := chain.EstimateFee(context.Background(), testToken.Hex(), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), fee)

	req, err := chain.CheckFeeRequirements(context.Background(), "0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	assert.True(t, req.HasBalance)
	assert.False(t, req.HasAllowance)
	assert.Equal(t, big.NewInt(10), req.Balance)
}

func TestPrepareTransactionTypes(t *testing.T) {
	chain := newTestEvm(t, newFakeClient())

	tx, err := chain.prepareTransaction(context.Background(), 3, testBridge, big.NewInt(0), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(ethtypes.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(55_000), tx.Gas())
	assert.Equal(t, big.NewInt(1_500_000_000), tx.GasPrice())

	chain.config.TxType = TxTypeEIP1559
	tx, err = chain.prepareTransaction(context.Background(), 3, testBridge, big.NewInt(0), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, big.NewInt(131), tx.GasFeeCap())
}

func TestWaitReceiptHonoursContext(t *testing.T) {
	chain := newTestEvm(t, newFakeClient())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := chain.waitReceipt(ctx, common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconnectVerifiesChain(t *testing.T) {
	original := newFakeClient()
	chain := newTestEvm(t, original)
	probe := &rpcProbe{chain: chain}

	wrong := newFakeClient()
	wrong.chainID = 1
	chain.dial = func(context.Context, string) (Client, error) { return wrong, nil }

	err := probe.Reconnect(context.Background())
	assert.ErrorIs(t, err, bridgeerrors.ErrInvalidChainID)
	assert.True(t, wrong.closed)
	current, err := chain.getClient()
	require.NoError(t, err)
	assert.Same(t, original, current)

	fresh := newFakeClient()
	chain.dial = func(context.Context, string) (Client, error) { return fresh, nil }
	require.NoError(t, probe.Reconnect(context.Background()))
	current, err = chain.getClient()
	require.NoError(t, err)
	assert.Same(t, fresh, current)
	assert.True(t, original.closed)
	assert.NoError(t, probe.CheckConnection(context.Background()))
}

func TestStatusPollingLifecycle(t *testing.T) {
	chain := newTestEvm(t, newFakeClient())
	events := make(chan types.StatusEvent, 1)

	require.NoError(t, chain.InitHTTPPolling(context.Background(), events))
	first := chain.eventHandler
	require.NoError(t, chain.InitHTTPPolling(context.Background(), events))
	assert.NotSame(t, first, chain.eventHandler)

	chain.ShutdownListeners()
	assert.Nil(t, chain.eventHandler)
	chain.ShutdownListeners()

	chain.Close()
	assert.Error(t, chain.InitHTTPPolling(context.Background(), events))
}
