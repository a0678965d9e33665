// Package campaign answers whether a wallet has completed campaign tasks.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
)

// TaskStake is complete once the wallet has staked at least the configured
// minimum.
const TaskStake = "stake"

// OneMetis is 1 METIS in wei, the default stake threshold.
var OneMetis = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var knownTasks = []string{TaskStake}

// Request validation errors.
var (
	// ErrInvalidTaskList is returned when the task parameter is not a
	// non-empty JSON array of strings.
	ErrInvalidTaskList = errors.New("task is not a list of string")

	// ErrUnknownTask is returned when the task list names a task that does
	// not exist.
	ErrUnknownTask = errors.New("one of task element is not valid")

	// ErrInvalidWallet is returned when walletAddress is not a 0x-prefixed
	// 20-byte hex address.
	ErrInvalidWallet = errors.New("walletAddress is not a valid address")
)

// ErrSourceUnavailable wraps stake source failures.
var ErrSourceUnavailable = errors.New("stake source unavailable")

// StakeSource reports how much a wallet has staked, in wei.
type StakeSource interface {
	Name() string
	TotalStaked(ctx context.Context, wallet common.Address) (*big.Int, error)
}

// Observer receives timing and outcome of every stake lookup.
type Observer interface {
	ObserveStakeLookup(source string, err error, elapsed time.Duration)
}

// ParseTasks decodes a JSON array of task names. Duplicates are dropped,
// keeping first-seen order.
func ParseTasks(raw string) ([]string, error) {
	var tasks []string
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil || len(tasks) == 0 {
		return nil, ErrInvalidTaskList
	}

	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if !slices.Contains(knownTasks, task) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
		}

		if !slices.Contains(out, task) {
			out = append(out, task)
		}
	}

	return out, nil
}

// ParseWallet parses a 0x-prefixed hex address.
func ParseWallet(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidWallet
	}

	return common.HexToAddress(s), nil
}

// Service evaluates task completion.
type Service struct {
	source   StakeSource
	minStake *big.Int
	observer Observer
}

// NewService creates a Service. minStake defaults to OneMetis when nil;
// observer may be nil.
func NewService(source StakeSource, minStake *big.Int, observer Observer) (*Service, error) {
	if source == nil {
		return nil, errors.New("campaign: stake source must not be nil")
	}

	if minStake == nil {
		minStake = OneMetis
	}

	return &Service{
		source:   source,
		minStake: new(big.Int).Set(minStake),
		observer: observer,
	}, nil
}

// Completion reports, for each task, whether wallet has completed it.
// tasks must come from ParseTasks.
func (s *Service) Completion(ctx context.Context, wallet common.Address, tasks []string) (map[string]bool, error) {
	result := make(map[string]bool, len(tasks))

	for _, task := range tasks {
		switch task {
		case TaskStake:
			staked, err := s.totalStaked(ctx, wallet)
			if err != nil {
				return nil, err
			}

			result[task] = staked.Cmp(s.minStake) >= 0
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
		}
	}

	return result, nil
}

func (s *Service) totalStaked(ctx context.Context, wallet common.Address) (*big.Int, error) {
	start := time.Now()
	staked, err := s.source.TotalStaked(ctx, wallet)

	if s.observer != nil {
		s.observer.ObserveStakeLookup(s.source.Name(), err, time.Since(start))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.source.Name(), err)
	}

	if staked == nil {
		return new(big.Int), nil
	}

	return staked, nil
}
