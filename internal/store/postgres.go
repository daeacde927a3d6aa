package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bento-indexer/internal/types"
)

// Postgres is the pgx/pgxpool-backed Store implementation.
type Postgres struct {
	db *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a pool against dbURL, applying the same environment-driven
// pool tuning and per-connection timeouts the rest of the fleet uses:
// DB_MAX_OPEN_CONNS / DB_MAX_IDLE_CONNS size the pool, DB_STATEMENT_TIMEOUT /
// DB_IDLE_TX_TIMEOUT bound any single query or idle-in-transaction session.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinConns = int32(n)
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = envDefault("DB_STATEMENT_TIMEOUT", "300000")
	cfg.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = envDefault("DB_IDLE_TX_TIMEOUT", "120000")

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Postgres{db: pool}, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Close implements Store.
func (p *Postgres) Close() { p.db.Close() }

// Migrate implements Store. It reads the whole schema file and executes it
// as one script; every DDL statement in it must be idempotent
// (IF NOT EXISTS), matching how this fleet's other services migrate.
func (p *Postgres) Migrate(ctx context.Context, schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if _, err := p.db.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// InsertBlocks implements Store. Idempotent on blocks.hash.
func (p *Postgres) InsertBlocks(ctx context.Context, blocks []types.BlockModel) error {
	if len(blocks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range blocks {
		batch.Queue(`
			INSERT INTO blocks
				(hash, timestamp, chain_from, chain_to, height, tx_number, deps, nonce, version, dep_state_hash, txs_hash, target, main_chain)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (hash) DO NOTHING`,
			b.Hash, b.Timestamp, b.ChainFrom, b.ChainTo, b.Height, b.TxNumber, b.Deps, b.Nonce, b.Version, b.DepStateHash, b.TxsHash, b.Target, b.MainChain)
	}
	return p.runBatch(ctx, batch, len(blocks))
}

// InsertTransactions implements Store. Idempotent on transactions.tx_hash.
func (p *Postgres) InsertTransactions(ctx context.Context, txs []types.TxModel) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(`
			INSERT INTO transactions (tx_hash, block_hash, timestamp, gas_amount, gas_price, inputs, outputs)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (tx_hash) DO NOTHING`,
			t.TxHash, t.BlockHash, t.Timestamp, t.GasAmount, t.GasPrice, t.Inputs, t.Outputs)
	}
	return p.runBatch(ctx, batch, len(txs))
}

// InsertEvents implements Store. Idempotent on (tx_id, contract_address,
// event_index).
func (p *Postgres) InsertEvents(ctx context.Context, events []types.EventModel) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		fields, err := marshalFields(e.Fields)
		if err != nil {
			return fmt.Errorf("marshal event fields for tx %s: %w", e.TxID, err)
		}
		batch.Queue(`
			INSERT INTO events (id, tx_id, block_hash, contract_address, event_index, timestamp, fields)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (tx_id, contract_address, event_index) DO NOTHING`,
			e.ID, e.TxID, e.BlockHash, e.ContractAddress, e.EventIndex, e.Timestamp, fields)
	}
	return p.runBatch(ctx, batch, len(events))
}

// runBatch executes a pgx.Batch imposing the 5s-acquire/30s-execute timeouts
// the events table (the highest-volume table) needs.
func (p *Postgres) runBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, 5*time.Second)
	conn, err := p.db.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	execCtx, cancelExec := context.WithTimeout(ctx, 30*time.Second)
	defer cancelExec()

	br := conn.SendBatch(execCtx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert item %d/%d: %w", i+1, n, err)
		}
	}
	return nil
}

// MaxBlockTimestamp implements Store.
func (p *Postgres) MaxBlockTimestamp(ctx context.Context) (int64, bool, error) {
	var ts *int64
	err := p.db.QueryRow(ctx, `SELECT MAX(timestamp) FROM blocks`).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("max block timestamp: %w", err)
	}
	if ts == nil {
		return 0, false, nil
	}
	return *ts, true, nil
}

// BlocksAtHeight implements Store.
func (p *Postgres) BlocksAtHeight(ctx context.Context, height int64) ([]types.BlockModel, error) {
	return p.queryBlocks(ctx, `SELECT hash, timestamp, chain_from, chain_to, height, tx_number, deps, nonce, version, dep_state_hash, txs_hash, target, main_chain
		FROM blocks WHERE height = $1`, height)
}

// BlockByHeight implements Store.
func (p *Postgres) BlockByHeight(ctx context.Context, height int64) ([]types.BlockModel, error) {
	return p.BlocksAtHeight(ctx, height)
}

// LatestBlock implements Store. fromGroup/toGroup are accepted for interface
// symmetry with the node's sharded model; blocks are stored shard-agnostically
// so every shard pair observes the same global tip.
func (p *Postgres) LatestBlock(ctx context.Context, _, _ int32) (types.BlockModel, bool, error) {
	rows, err := p.queryBlocks(ctx, `SELECT hash, timestamp, chain_from, chain_to, height, tx_number, deps, nonce, version, dep_state_hash, txs_hash, target, main_chain
		FROM blocks ORDER BY height DESC LIMIT 1`)
	if err != nil {
		return types.BlockModel{}, false, err
	}
	if len(rows) == 0 {
		return types.BlockModel{}, false, nil
	}
	return rows[0], true, nil
}

// ListBlocks implements Store.
func (p *Postgres) ListBlocks(ctx context.Context, limit, offset int, desc bool) ([]types.BlockModel, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	q := fmt.Sprintf(`SELECT hash, timestamp, chain_from, chain_to, height, tx_number, deps, nonce, version, dep_state_hash, txs_hash, target, main_chain
		FROM blocks ORDER BY height %s LIMIT $1 OFFSET $2`, order)
	return p.queryBlocks(ctx, q, limit, offset)
}

// BlockByHash implements Store.
func (p *Postgres) BlockByHash(ctx context.Context, hash string) (types.BlockModel, bool, error) {
	rows, err := p.queryBlocks(ctx, `SELECT hash, timestamp, chain_from, chain_to, height, tx_number, deps, nonce, version, dep_state_hash, txs_hash, target, main_chain
		FROM blocks WHERE hash = $1`, hash)
	if err != nil {
		return types.BlockModel{}, false, err
	}
	if len(rows) == 0 {
		return types.BlockModel{}, false, nil
	}
	return rows[0], true, nil
}

func (p *Postgres) queryBlocks(ctx context.Context, query string, args ...interface{}) ([]types.BlockModel, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var out []types.BlockModel
	for rows.Next() {
		var b types.BlockModel
		if err := rows.Scan(&b.Hash, &b.Timestamp, &b.ChainFrom, &b.ChainTo, &b.Height, &b.TxNumber, &b.Deps, &b.Nonce, &b.Version, &b.DepStateHash, &b.TxsHash, &b.Target, &b.MainChain); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TransactionsByBlockHash implements Store.
func (p *Postgres) TransactionsByBlockHash(ctx context.Context, blockHash string, limit, offset int) ([]types.TxModel, error) {
	rows, err := p.db.Query(ctx, `SELECT tx_hash, block_hash, timestamp, gas_amount, gas_price, inputs, outputs
		FROM transactions WHERE block_hash = $1 ORDER BY tx_hash LIMIT $2 OFFSET $3`, blockHash, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions by block: %w", err)
	}
	defer rows.Close()
	return scanTxs(rows)
}

// TransactionByHash implements Store.
func (p *Postgres) TransactionByHash(ctx context.Context, hash string) (types.TxModel, bool, error) {
	rows, err := p.db.Query(ctx, `SELECT tx_hash, block_hash, timestamp, gas_amount, gas_price, inputs, outputs
		FROM transactions WHERE tx_hash = $1`, hash)
	if err != nil {
		return types.TxModel{}, false, fmt.Errorf("query transaction by hash: %w", err)
	}
	defer rows.Close()
	txs, err := scanTxs(rows)
	if err != nil {
		return types.TxModel{}, false, err
	}
	if len(txs) == 0 {
		return types.TxModel{}, false, nil
	}
	return txs[0], true, nil
}

func scanTxs(rows pgx.Rows) ([]types.TxModel, error) {
	var out []types.TxModel
	for rows.Next() {
		var t types.TxModel
		if err := rows.Scan(&t.TxHash, &t.BlockHash, &t.Timestamp, &t.GasAmount, &t.GasPrice, &t.Inputs, &t.Outputs); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// EventsByTxID implements Store.
func (p *Postgres) EventsByTxID(ctx context.Context, txID string, limit, offset int) ([]types.EventModel, error) {
	return p.queryEvents(ctx, `SELECT id, tx_id, block_hash, contract_address, event_index, timestamp, fields
		FROM events WHERE tx_id = $1 ORDER BY event_index LIMIT $2 OFFSET $3`, txID, limit, offset)
}

// EventsByContract implements Store.
func (p *Postgres) EventsByContract(ctx context.Context, contractAddress string, limit, offset int) ([]types.EventModel, error) {
	return p.queryEvents(ctx, `SELECT id, tx_id, block_hash, contract_address, event_index, timestamp, fields
		FROM events WHERE contract_address = $1 ORDER BY timestamp LIMIT $2 OFFSET $3`, contractAddress, limit, offset)
}

func (p *Postgres) queryEvents(ctx context.Context, query string, args ...interface{}) ([]types.EventModel, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []types.EventModel
	for rows.Next() {
		var e types.EventModel
		var rawFields []byte
		if err := rows.Scan(&e.ID, &e.TxID, &e.BlockHash, &e.ContractAddress, &e.EventIndex, &e.Timestamp, &rawFields); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		fields, err := unmarshalFields(rawFields)
		if err != nil {
			return nil, fmt.Errorf("unmarshal event fields for tx %s: %w", e.TxID, err)
		}
		e.Fields = fields
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetProcessorStatus implements Store.
func (p *Postgres) SetProcessorStatus(ctx context.Context, processorName, network, kind string, lastTimestamp int64) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO processor_status (processor, network, kind, last_timestamp, updated_at)
		VALUES ($1,$2,$3,$4, now())
		ON CONFLICT (processor, network, kind)
		DO UPDATE SET last_timestamp = EXCLUDED.last_timestamp, updated_at = now()`,
		processorName, network, kind, lastTimestamp)
	if err != nil {
		return fmt.Errorf("set processor status: %w", err)
	}
	return nil
}

// GetProcessorStatus implements Store.
func (p *Postgres) GetProcessorStatus(ctx context.Context, processorName, network, kind string) (int64, bool, error) {
	var ts int64
	err := p.db.QueryRow(ctx, `SELECT last_timestamp FROM processor_status WHERE processor = $1 AND network = $2 AND kind = $3`,
		processorName, network, kind).Scan(&ts)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get processor status: %w", err)
	}
	return ts, true, nil
}
