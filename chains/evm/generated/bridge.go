// Package generated holds the contract ABIs the EVM ledger talks to.
package generated

// BridgeABI is the input ABI of the bridge contract.
const BridgeABI = `[
  {"type":"function","name":"lockTokens","stateMutability":"nonpayable",
   "inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"targetChain","type":"uint256"},{"name":"targetAddress","type":"string"}],
   "outputs":[{"name":"txId","type":"bytes32"}]},
  {"type":"function","name":"burnAndBridge","stateMutability":"nonpayable",
   "inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"targetChain","type":"uint256"},{"name":"targetAddress","type":"string"}],
   "outputs":[{"name":"txId","type":"bytes32"}]},
  {"type":"function","name":"getTransaction","stateMutability":"view",
   "inputs":[{"name":"txId","type":"bytes32"}],
   "outputs":[{"name":"user","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"fee","type":"uint256"},{"name":"sourceChain","type":"uint256"},{"name":"targetChain","type":"uint256"},{"name":"targetAddress","type":"string"},{"name":"timestamp","type":"uint256"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"getUserTransactions","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"bytes32[]"}]},
  {"type":"function","name":"checkFeeRequirements","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"hasBalance","type":"bool"},{"name":"hasAllowance","type":"bool"},{"name":"balance","type":"uint256"},{"name":"allowance","type":"uint256"}]},
  {"type":"function","name":"estimateFee","stateMutability":"view",
   "inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"BridgeInitiated","anonymous":false,
   "inputs":[{"name":"txId","type":"bytes32","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"fee","type":"uint256","indexed":false},{"name":"targetChain","type":"uint256","indexed":false},{"name":"targetAddress","type":"string","indexed":false}]},
  {"type":"event","name":"BridgeStatusUpdated","anonymous":false,
   "inputs":[{"name":"txId","type":"bytes32","indexed":true},{"name":"status","type":"uint8","indexed":false}]}
]`

// ERC20ABI is the subset of the ERC20 ABI the ledger uses.
const ERC20ABI = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"type":"event","name":"Approval","anonymous":false,
   "inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`
