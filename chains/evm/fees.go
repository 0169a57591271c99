package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// EstimateFee reads the token fee the bridge charges for amount of token.
//
// Parameters:
// - ctx: the context for managing the request.
// - token: the token contract address.
// - amount: the amount in token base units.
//
// Returns:
// - *big.Int: the fee in token base units.
// - error: an error if the call fails.
func (e *evm) EstimateFee(ctx context.Context, token string, amount *big.Int) (*big.Int, error) {
	if !common.IsHexAddress(token) {
		return nil, bridgeerrors.InvalidRequest("invalid token address %q", token)
	}

	out, err := e.callBridge(ctx, "estimateFee", common.HexToAddress(token), amount)
	if err != nil {
		return nil, err
	}

	fee, ok := out[0].(*big.Int)
	if !ok || fee == nil {
		return nil, errors.Errorf("unexpected estimateFee output type %T", out[0])
	}
	return fee, nil
}

// CheckFeeRequirements reads whether user has the flat fee balance and has approved the
// bridge to pull it.
//
// Parameters:
// - ctx: the context for managing the request.
// - user: the user address.
//
// Returns:
// - *types.FeeRequirements: both checks and the raw balance and allowance.
// - error: an error if the call fails.
func (e *evm) CheckFeeRequirements(ctx context.Context, user string) (*types.FeeRequirements, error) {
	if !common.IsHexAddress(user) {
		return nil, bridgeerrors.InvalidRequest("invalid user address %q", user)
	}

	out, err := e.callBridge(ctx, "checkFeeRequirements", common.HexToAddress(user))
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, errors.Errorf("unexpected checkFeeRequirements output length %d", len(out))
	}

	hasBalance, _ := out[0].(bool)
	hasAllowance, _ := out[1].(bool)
	balance, _ := out[2].(*big.Int)
	allowance, _ := out[3].(*big.Int)

	return &types.FeeRequirements{
		HasBalance:   hasBalance,
		HasAllowance: hasAllowance,
		Balance:      balance,
		Allowance:    allowance,
	}, nil
}
