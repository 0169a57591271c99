package utils

import (
	"github.com/ethereum/go-ethereum/core/types"
)

// GetEventType determines event type from log topics
func GetEventType(log types.Log) string {
	if len(log.Topics) == 0 {
		return ""
	}

	switch log.Topics[0] {
	case BridgeInitiatedTopic:
		return "BridgeInitiated"
	case BridgeStatusUpdatedTopic:
		return "BridgeStatusUpdated"
	case ApprovalTopic:
		return "Approval"
	default:
		return ""
	}
}
