package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

func TestSubmitTimeoutFollowsSlowestChain(t *testing.T) {
	configs := []types.ChainConfig{
		{ChainID: 1, ConfirmationTimeout: 5 * time.Minute},
		{ChainID: 56, ConfirmationTimeout: 12 * time.Minute},
	}
	assert.Equal(t, 12*time.Minute+submitTimeoutMargin, submitTimeout(configs))
	assert.Zero(t, submitTimeout(nil))
}
