package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/utils"
)

// bridgeInitiated is the decoded BridgeInitiated event.
type bridgeInitiated struct {
	TxID          common.Hash
	User          common.Address
	Token         common.Address
	Amount        *big.Int
	Fee           *big.Int
	TargetChain   *big.Int
	TargetAddress string
}

// parseBridgeInitiated finds the BridgeInitiated event emitted by the bridge contract in a
// receipt.
func (e *evm) parseBridgeInitiated(receipt *ethtypes.Receipt) (*bridgeInitiated, error) {
	for _, log := range receipt.Logs {
		if log == nil || log.Address != e.bridgeAddress || utils.GetEventType(*log) != "BridgeInitiated" {
			continue
		}
		if len(log.Topics) != 4 {
			return nil, errors.Errorf("BridgeInitiated log has %d topics", len(log.Topics))
		}

		values, err := bridgeABI.Unpack("BridgeInitiated", log.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unpack BridgeInitiated data")
		}
		if len(values) != 4 {
			return nil, errors.Errorf("unexpected BridgeInitiated data length %d", len(values))
		}

		event := &bridgeInitiated{
			TxID:  log.Topics[1],
			User:  common.BytesToAddress(log.Topics[2].Bytes()),
			Token: common.BytesToAddress(log.Topics[3].Bytes()),
		}
		event.Amount, _ = values[0].(*big.Int)
		event.Fee, _ = values[1].(*big.Int)
		event.TargetChain, _ = values[2].(*big.Int)
		event.TargetAddress, _ = values[3].(string)
		return event, nil
	}

	return nil, errors.Errorf("no BridgeInitiated event in receipt %s", receipt.TxHash.Hex())
}

// validateInitiated checks the event against what was submitted.
func validateInitiated(event *bridgeInitiated, user, token common.Address, amount *big.Int) error {
	if event.User != user {
		return errors.New("sender address mismatch")
	}

	if event.Token != token {
		return errors.New("token address mismatch")
	}

	if event.Amount == nil || event.Amount.Cmp(amount) != 0 {
		return errors.New("transfer amount mismatch")
	}

	return nil
}
