package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Buffers applied to node suggestions, in percent.
const (
	gasLimitBufferPct    = 110
	legacyPriceBufferPct = 150
	baseFeeBufferPct     = 130
)

var minTipCap = big.NewInt(1)

// gasQuote is the gas limit and pricing of one submission. Price is set for legacy
// transactions, TipCap and FeeCap for EIP-1559 ones.
type gasQuote struct {
	Limit  uint64
	Price  *big.Int
	TipCap *big.Int
	FeeCap *big.Int
}

func withBuffer(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}

// quoteGas estimates the limit of a zero-value call from the signer and prices it for the
// configured transaction type.
//
// Parameters:
// - ctx: the context for the RPC calls.
// - client: the client to estimate with.
// - from: the sender.
// - to: the called contract.
// - data: the call data.
//
// Returns:
// - *gasQuote: the buffered limit and prices.
// - error: the estimation error, or a missing base fee on an EIP-1559 chain.
func (e *evm) quoteGas(ctx context.Context, client Client, from, to common.Address, value *big.Int, data []byte) (*gasQuote, error) {
	logger := e.logger.WithFields(logrus.Fields{"chain": e.config.Name, "to": to.Hex()})

	estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		logger.WithError(err).Warn("Failed to estimate gas")
		return nil, errors.Wrap(err, "failed to estimate gas")
	}
	quote := &gasQuote{Limit: estimated * gasLimitBufferPct / 100}

	if e.config.TxType != TxTypeEIP1559 {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get gas price")
		}
		quote.Price = withBuffer(price, legacyPriceBufferPct)
		return quote, nil
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to get suggested gas tip, using the minimum")
		tip = minTipCap
	}
	if tip.Cmp(minTipCap) < 0 {
		tip = minTipCap
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest header")
	}
	if header.BaseFee == nil {
		return nil, errors.Errorf("chain %d has no base fee, configure tx_type %d", e.config.ChainID, TxTypeLegacy)
	}

	quote.TipCap = new(big.Int).Set(tip)
	quote.FeeCap = new(big.Int).Add(withBuffer(header.BaseFee, baseFeeBufferPct), tip)
	return quote, nil
}

// prepareTransaction builds an unsigned transaction from the signer to to.
func (e *evm) prepareTransaction(ctx context.Context, nonce uint64, to common.Address, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	s, err := e.getSigner()
	if err != nil {
		return nil, err
	}

	gas, err := e.quoteGas(ctx, client, s.Address(), to, value, data)
	if err != nil {
		return nil, err
	}

	if gas.Price != nil {
		return ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    value,
			Gas:      gas.Limit,
			GasPrice: gas.Price,
			Data:     data,
		}), nil
	}
	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   s.ChainID(),
		Nonce:     nonce,
		GasTipCap: gas.TipCap,
		GasFeeCap: gas.FeeCap,
		Gas:       gas.Limit,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}
