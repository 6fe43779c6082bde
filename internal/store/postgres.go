package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Money columns are BIGINT counts of smallest units.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vaults (
		id                  BIGINT PRIMARY KEY,
		manager             TEXT NOT NULL,
		name                TEXT NOT NULL DEFAULT '',
		description         TEXT NOT NULL DEFAULT '',
		total_value         BIGINT NOT NULL CHECK (total_value >= 0),
		total_shares        BIGINT NOT NULL CHECK (total_shares >= 0),
		management_fee_bps  INTEGER NOT NULL,
		performance_fee_bps INTEGER NOT NULL,
		min_deposit         BIGINT NOT NULL,
		status              TEXT NOT NULL,
		high_water_mark     BIGINT NOT NULL,
		fees_collected      BIGINT NOT NULL DEFAULT 0,
		last_fee_collection TIMESTAMPTZ NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vaults_manager ON vaults(manager)`,

	`CREATE TABLE IF NOT EXISTS positions (
		vault_id BIGINT NOT NULL REFERENCES vaults(id),
		investor TEXT NOT NULL,
		shares   BIGINT NOT NULL CHECK (shares > 0),
		PRIMARY KEY (vault_id, investor)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_investor ON positions(investor)`,

	`CREATE TABLE IF NOT EXISTS vault_events (
		seq             BIGSERIAL PRIMARY KEY,
		id              TEXT NOT NULL UNIQUE,
		vault_id        BIGINT NOT NULL REFERENCES vaults(id),
		kind            TEXT NOT NULL,
		caller          TEXT NOT NULL,
		amount          BIGINT NOT NULL DEFAULT 0,
		shares          BIGINT NOT NULL DEFAULT 0,
		management_fee  BIGINT NOT NULL DEFAULT 0,
		performance_fee BIGINT NOT NULL DEFAULT 0,
		total_value     BIGINT NOT NULL,
		total_shares    BIGINT NOT NULL,
		status          TEXT NOT NULL,
		timestamp       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vault_events_vault ON vault_events(vault_id, seq)`,

	`CREATE TABLE IF NOT EXISTS nav_samples (
		vault_id      BIGINT NOT NULL REFERENCES vaults(id),
		at            TIMESTAMPTZ NOT NULL,
		nav_per_share BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nav_samples_vault_at ON nav_samples(vault_id, at DESC)`,
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateVault(ctx context.Context, v *model.Vault, ev *model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO vaults (id, manager, name, description, total_value, total_shares,
		                     management_fee_bps, performance_fee_bps, min_deposit, status,
		                     high_water_mark, fees_collected, last_fee_collection, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		int64(v.ID), v.Manager, v.Name, v.Description,
		int64(v.TotalValue), int64(v.TotalShares),
		int32(v.ManagementFee), int32(v.PerformanceFee), int64(v.MinDeposit), string(v.Status),
		int64(v.HighWaterMark), int64(v.FeesCollected),
		v.LastFeeCollection, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %d", ErrDuplicateVault, v.ID)
		}
		return fmt.Errorf("insert vault %d: %w", v.ID, err)
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Commit(ctx context.Context, c *Commit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	v := c.Vault
	tag, err := tx.Exec(ctx,
		`UPDATE vaults
		 SET total_value = $2, total_shares = $3, status = $4, high_water_mark = $5,
		     fees_collected = $6, last_fee_collection = $7, updated_at = $8
		 WHERE id = $1`,
		int64(v.ID), int64(v.TotalValue), int64(v.TotalShares), string(v.Status),
		int64(v.HighWaterMark), int64(v.FeesCollected), v.LastFeeCollection, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update vault %d: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vault %d not found", v.ID)
	}

	for _, p := range c.Positions {
		if p.Shares == 0 {
			_, err = tx.Exec(ctx,
				`DELETE FROM positions WHERE vault_id = $1 AND investor = $2`,
				int64(v.ID), p.Investor)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO positions (vault_id, investor, shares) VALUES ($1, $2, $3)
				 ON CONFLICT (vault_id, investor) DO UPDATE SET shares = EXCLUDED.shares`,
				int64(v.ID), p.Investor, int64(p.Shares))
		}
		if err != nil {
			return fmt.Errorf("write position %s: %w", p.Investor, err)
		}
	}

	if c.Sample != nil {
		if err := insertSample(ctx, tx, v.ID, *c.Sample); err != nil {
			return err
		}
	}
	if err := insertEvent(ctx, tx, &c.Event); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendSample(ctx context.Context, vaultID uint64, smp model.NavSample) error {
	return insertSample(ctx, s.pool, vaultID, smp)
}

func (s *PostgresStore) LoadVaults(ctx context.Context, sampleLimit int) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, manager, name, description, total_value, total_shares,
		        management_fee_bps, performance_fee_bps, min_deposit, status,
		        high_water_mark, fees_collected, last_fee_collection, created_at, updated_at
		 FROM vaults ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load vaults: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	index := make(map[uint64]int)
	for rows.Next() {
		var (
			v                              model.Vault
			id                             int64
			tv, ts, minDep, hwm, collected int64
			mgmt, perf                     int32
			status                         string
		)
		if err := rows.Scan(&id, &v.Manager, &v.Name, &v.Description, &tv, &ts,
			&mgmt, &perf, &minDep, &status,
			&hwm, &collected, &v.LastFeeCollection, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.ID = uint64(id)
		v.TotalValue, v.TotalShares = money.Money(tv), money.Money(ts)
		v.ManagementFee, v.PerformanceFee = money.Rate(mgmt), money.Rate(perf)
		v.MinDeposit, v.Status = money.Money(minDep), model.Status(status)
		v.HighWaterMark, v.FeesCollected = money.Money(hwm), money.Money(collected)

		index[v.ID] = len(snaps)
		snaps = append(snaps, Snapshot{Vault: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadPositions(ctx, snaps, index); err != nil {
		return nil, err
	}
	if err := s.loadSamples(ctx, snaps, index, sampleLimit); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *PostgresStore) loadPositions(ctx context.Context, snaps []Snapshot, index map[uint64]int) error {
	rows, err := s.pool.Query(ctx,
		`SELECT vault_id, investor, shares FROM positions ORDER BY vault_id, investor`)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, shares int64
			investor   string
		)
		if err := rows.Scan(&id, &investor, &shares); err != nil {
			return err
		}
		i, ok := index[uint64(id)]
		if !ok {
			continue
		}
		snaps[i].Positions = append(snaps[i].Positions, model.InvestorPosition{
			VaultID:  uint64(id),
			Investor: investor,
			Shares:   money.Money(shares),
		})
	}
	return rows.Err()
}

func (s *PostgresStore) loadSamples(ctx context.Context, snaps []Snapshot, index map[uint64]int, limit int) error {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.pool.Query(ctx,
		`SELECT vault_id, at, nav_per_share FROM (
			SELECT vault_id, at, nav_per_share,
			       row_number() OVER (PARTITION BY vault_id ORDER BY at DESC) AS rn
			FROM nav_samples
		 ) recent
		 WHERE rn <= $1
		 ORDER BY vault_id, at`, limit)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, nps int64
			smp     model.NavSample
		)
		if err := rows.Scan(&id, &smp.At, &nps); err != nil {
			return err
		}
		smp.NAVPerShare = money.Money(nps)
		if i, ok := index[uint64(id)]; ok {
			snaps[i].Samples = append(snaps[i].Samples, smp)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) GetEvents(ctx context.Context, vaultID uint64, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, vault_id, kind, caller, amount, shares, management_fee, performance_fee,
		        total_value, total_shares, status, timestamp
		 FROM (
			SELECT * FROM vault_events WHERE vault_id = $1 ORDER BY seq DESC LIMIT $2
		 ) recent
		 ORDER BY seq`, int64(vaultID), limit)
	if err != nil {
		return nil, fmt.Errorf("get events %d: %w", vaultID, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			vid                                int64
			amount, shares, mgmt, perf, tv, ts int64
			kind, status                       string
			ev                                 model.Event
		)
		if err := rows.Scan(&ev.ID, &vid, &kind, &ev.Caller, &amount, &shares, &mgmt, &perf,
			&tv, &ts, &status, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.VaultID = uint64(vid)
		ev.Kind, ev.Status = model.EventKind(kind), model.Status(status)
		ev.Amount, ev.Shares = money.Money(amount), money.Money(shares)
		ev.ManagementFee, ev.PerformanceFee = money.Money(mgmt), money.Money(perf)
		ev.TotalValue, ev.TotalShares = money.Money(tv), money.Money(ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ execer = (*pgxpool.Pool)(nil)
	_ execer = (pgx.Tx)(nil)
)

func insertEvent(ctx context.Context, db execer, ev *model.Event) error {
	_, err := db.Exec(ctx,
		`INSERT INTO vault_events (id, vault_id, kind, caller, amount, shares,
		                           management_fee, performance_fee, total_value, total_shares,
		                           status, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.ID, int64(ev.VaultID), string(ev.Kind), ev.Caller,
		int64(ev.Amount), int64(ev.Shares), int64(ev.ManagementFee), int64(ev.PerformanceFee),
		int64(ev.TotalValue), int64(ev.TotalShares), string(ev.Status), ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func insertSample(ctx context.Context, db execer, vaultID uint64, smp model.NavSample) error {
	_, err := db.Exec(ctx,
		`INSERT INTO nav_samples (vault_id, at, nav_per_share) VALUES ($1, $2, $3)`,
		int64(vaultID), smp.At, int64(smp.NAVPerShare))
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}
