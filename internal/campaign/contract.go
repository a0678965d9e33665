package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const stakingABI = `[{
	"inputs": [{"internalType": "address", "name": "", "type": "address"}],
	"name": "totalMetisStaked",
	"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

const methodTotalStaked = "totalMetisStaked"

// ContractCaller is the subset of ethclient.Client used for read-only calls.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractSource reads stakes from the staking contract over JSON-RPC.
type ContractSource struct {
	caller   ContractCaller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// NewContractSource creates a ContractSource calling contract through
// caller. A positive timeout bounds every call.
func NewContractSource(caller ContractCaller, contract common.Address, timeout time.Duration) (*ContractSource, error) {
	if caller == nil {
		return nil, errors.New("campaign: contract caller must not be nil")
	}

	parsed, err := abi.JSON(strings.NewReader(stakingABI))
	if err != nil {
		return nil, fmt.Errorf("campaign: parse staking abi: %w", err)
	}

	return &ContractSource{
		caller:   caller,
		contract: contract,
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// DialContractSource connects to rpcURL and returns a ContractSource and the
// client, which the caller must close.
func DialContractSource(ctx context.Context, rpcURL string, contract common.Address, timeout time.Duration) (*ContractSource, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("campaign: dial %s: %w", rpcURL, err)
	}

	source, err := NewContractSource(client, contract, timeout)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return source, client, nil
}

// Name implements StakeSource.
func (s *ContractSource) Name() string {
	return "rpc"
}

// TotalStaked implements StakeSource.
func (s *ContractSource) TotalStaked(ctx context.Context, wallet common.Address) (*big.Int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	data, err := s.abi.Pack(methodTotalStaked, wallet)
	if err != nil {
		return nil, fmt.Errorf("pack call: %w", err)
	}

	contract := s.contract
	out, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", methodTotalStaked, err)
	}

	values, err := s.abi.Unpack(methodTotalStaked, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", methodTotalStaked, err)
	}

	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: got %d values", methodTotalStaked, len(values))
	}

	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", methodTotalStaked, values[0])
	}

	return amount, nil
}
