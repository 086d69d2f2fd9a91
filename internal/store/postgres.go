package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/port3/staking-engine/internal/amount"
	"github.com/port3/staking-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All balances are stored as NUMERIC for exact precision. The config row
// is a singleton keyed by id = 1.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const configColumns = `owner, pool_count, is_paused,
	total_mint_reward::TEXT, total_eth_mint_reward::TEXT,
	fee_per_thousand, fee_account, vault_contract,
	total_staking::TEXT, reward_threshold::TEXT, created_at`

func (s *PostgresStore) GetConfig(ctx context.Context) (*model.Config, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+configColumns+` FROM staking_config WHERE id = 1`)
	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

func (s *PostgresStore) PutConfig(ctx context.Context, cfg *model.Config) error {
	_, err := s.pool.Exec(ctx, upsertConfigSQL, configArgs(cfg)...)
	return err
}

const upsertConfigSQL = `
	INSERT INTO staking_config (id, owner, pool_count, is_paused,
		total_mint_reward, total_eth_mint_reward,
		fee_per_thousand, fee_account, vault_contract,
		total_staking, reward_threshold, created_at)
	VALUES (1, $1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11)
	ON CONFLICT (id) DO UPDATE SET
		owner = EXCLUDED.owner,
		pool_count = EXCLUDED.pool_count,
		is_paused = EXCLUDED.is_paused,
		total_mint_reward = EXCLUDED.total_mint_reward,
		total_eth_mint_reward = EXCLUDED.total_eth_mint_reward,
		fee_per_thousand = EXCLUDED.fee_per_thousand,
		fee_account = EXCLUDED.fee_account,
		vault_contract = EXCLUDED.vault_contract,
		total_staking = EXCLUDED.total_staking,
		reward_threshold = EXCLUDED.reward_threshold`

func configArgs(cfg *model.Config) []any {
	return []any{
		cfg.Owner, cfg.PoolCount, cfg.IsPaused,
		cfg.TotalMintReward.String(), cfg.TotalEthMintReward.String(),
		cfg.FeePerThousand, cfg.FeeAccount, cfg.VaultContract,
		cfg.TotalStaking.String(), cfg.RewardThreshold.String(),
		cfg.CreatedAt,
	}
}

func scanConfig(row pgx.Row) (*model.Config, error) {
	var cfg model.Config
	var mintReward, ethMintReward, totalStaking, threshold string

	err := row.Scan(&cfg.Owner, &cfg.PoolCount, &cfg.IsPaused,
		&mintReward, &ethMintReward,
		&cfg.FeePerThousand, &cfg.FeeAccount, &cfg.VaultContract,
		&totalStaking, &threshold, &cfg.CreatedAt)
	if err != nil {
		return nil, err
	}

	cfg.TotalMintReward, _ = amount.FromString(mintReward)
	cfg.TotalEthMintReward, _ = amount.FromString(ethMintReward)
	cfg.TotalStaking, _ = amount.FromString(totalStaking)
	cfg.RewardThreshold, _ = amount.FromString(threshold)
	return &cfg, nil
}

// CreatePool inserts the pool and rewrites the config row in one
// transaction so the pool counter can never drift from the pool set.
func (s *PostgresStore) CreatePool(ctx context.Context, cfg *model.Config, pool *model.Pool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO pools (id, lp_token, reward_per_block, lock_period, unlock_period,
			emergency_enable, amount, last_reward_time, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7::NUMERIC, $8, $9)`,
		pool.ID, pool.LPToken, pool.RewardPerBlock.String(),
		pool.LockPeriod, pool.UnlockPeriod, pool.EmergencyEnable,
		pool.Amount.String(), pool.LastRewardTime, pool.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create pool %d: %w", pool.ID, err)
	}

	if _, err := tx.Exec(ctx, upsertConfigSQL, configArgs(cfg)...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const poolColumns = `id, lp_token, reward_per_block::TEXT, lock_period, unlock_period,
	emergency_enable, amount::TEXT, last_reward_time, created_at`

func scanPool(row pgx.Row) (*model.Pool, error) {
	var p model.Pool
	var rewardPerBlock, amt string

	err := row.Scan(&p.ID, &p.LPToken, &rewardPerBlock, &p.LockPeriod, &p.UnlockPeriod,
		&p.EmergencyEnable, &amt, &p.LastRewardTime, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.RewardPerBlock, _ = amount.FromString(rewardPerBlock)
	p.Amount, _ = amount.FromString(amt)
	return &p, nil
}

func (s *PostgresStore) GetPool(ctx context.Context, id uint64) (*model.Pool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE id = $1`, id)
	p, err := scanPool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pool %d: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+poolColumns+` FROM pools ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

const positionColumns = `pool_id, user_id, amount::TEXT, pending_reward::TEXT,
	reward_claimed::TEXT, deposit_time, last_harvest_time`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var amt, pending, claimed string

	err := row.Scan(&p.PoolID, &p.User, &amt, &pending, &claimed,
		&p.DepositTime, &p.LastHarvestTime)
	if err != nil {
		return nil, err
	}

	p.Amount, _ = amount.FromString(amt)
	p.PendingReward, _ = amount.FromString(pending)
	p.RewardClaimed, _ = amount.FromString(claimed)
	return &p, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, poolID uint64, user string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE pool_id = $1 AND user_id = $2`,
		poolID, user)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position %d/%s: %w", poolID, user, ErrNotFound)
	}
	return p, err
}

func (s *PostgresStore) ListPositionsByPool(ctx context.Context, poolID uint64) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE pool_id = $1 ORDER BY user_id`,
		poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// ApplyTransition writes config, pool, position, and the ledger entry in
// one transaction: the all-or-nothing contract of every engine operation.
func (s *PostgresStore) ApplyTransition(ctx context.Context, cfg *model.Config, pool *model.Pool, pos *model.Position, entry *model.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertConfigSQL, configArgs(cfg)...); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE pools
		 SET amount = $2::NUMERIC, last_reward_time = $3
		 WHERE id = $1`,
		pool.ID, pool.Amount.String(), pool.LastRewardTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pool %d: %w", pool.ID, ErrNotFound)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO positions (pool_id, user_id, amount, pending_reward, reward_claimed,
			deposit_time, last_harvest_time)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7)
		 ON CONFLICT (pool_id, user_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			pending_reward = EXCLUDED.pending_reward,
			reward_claimed = EXCLUDED.reward_claimed,
			deposit_time = EXCLUDED.deposit_time,
			last_harvest_time = EXCLUDED.last_harvest_time`,
		pos.PoolID, pos.User, pos.Amount.String(), pos.PendingReward.String(),
		pos.RewardClaimed.String(), pos.DepositTime, pos.LastHarvestTime,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, user_id, pool_id, kind, amount, fee, reward, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		entry.ID, entry.User, entry.PoolID, entry.Kind,
		entry.Amount.String(), entry.Fee.String(), entry.Reward.String(),
		entry.Timestamp,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const ledgerColumns = `id, user_id, pool_id, kind, amount::TEXT, fee::TEXT, reward::TEXT, timestamp`

func (s *PostgresStore) LedgerByPool(ctx context.Context, poolID uint64) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE pool_id = $1 ORDER BY timestamp`,
		poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE user_id = $1 ORDER BY timestamp`,
		user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amt, feeS, rewardS string

		if err := rows.Scan(&e.ID, &e.User, &e.PoolID, &e.Kind,
			&amt, &feeS, &rewardS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = amount.FromString(amt)
		e.Fee, _ = amount.FromString(feeS)
		e.Reward, _ = amount.FromString(rewardS)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
