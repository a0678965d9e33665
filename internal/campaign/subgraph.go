package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Participant is the slice of a subgraph participant entity the service
// reads. The subgraph indexer keeps one row per entity version; the highest
// vid is the latest.
type Participant struct {
	Vid              int64  `gorm:"column:vid;primaryKey"`
	Address          string `gorm:"column:address;index"`
	TotalMetisAmount string `gorm:"column:total_metis_amount"`
}

// SubgraphSource reads stakes indexed by a subgraph into a SQL database.
type SubgraphSource struct {
	db    *gorm.DB
	table string
}

// OpenSubgraph opens the subgraph database. driver is "postgres" or
// "sqlite".
func OpenSubgraph(driver, dsn string, maxOpenConns int) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("campaign: unsupported subgraph driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("campaign: open subgraph database: %w", err)
	}

	if maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("campaign: subgraph pool: %w", err)
		}

		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	return db, nil
}

// NewSubgraphSource creates a SubgraphSource reading participants from table.
func NewSubgraphSource(db *gorm.DB, table string) (*SubgraphSource, error) {
	if db == nil {
		return nil, errors.New("campaign: subgraph database must not be nil")
	}

	if table == "" {
		return nil, errors.New("campaign: subgraph table must not be empty")
	}

	return &SubgraphSource{db: db, table: table}, nil
}

// Name implements StakeSource.
func (s *SubgraphSource) Name() string {
	return "subgraph"
}

// TotalStaked implements StakeSource. A wallet the subgraph has never seen
// has staked nothing.
func (s *SubgraphSource) TotalStaked(ctx context.Context, wallet common.Address) (*big.Int, error) {
	var rows []Participant

	err := s.db.WithContext(ctx).
		Table(s.table).
		Select("vid", "address", "total_metis_amount").
		Where("address = ?", strings.ToLower(wallet.Hex())).
		Order("vid DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query participant: %w", err)
	}

	if len(rows) == 0 {
		return new(big.Int), nil
	}

	return parseAmount(rows[0].TotalMetisAmount)
}

// parseAmount parses a NUMERIC column rendered as text, dropping any
// fractional part.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	if v, ok := new(big.Int).SetString(s, 10); ok {
		return v, nil
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}
