package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

// Ensure IntentRepo implements IntentJournal
var _ repositories.IntentJournal = (*IntentRepo)(nil)

const intentSchema = `
CREATE TABLE IF NOT EXISTS intents (
	id                   TEXT PRIMARY KEY,
	identity             TEXT NOT NULL,
	token                TEXT NOT NULL,
	decimals             INTEGER NOT NULL,
	requested            NUMERIC(78, 0) NOT NULL,
	sources              JSONB NOT NULL,
	destination_chain_id BIGINT NOT NULL,
	destination_amount   NUMERIC(78, 0) NOT NULL,
	bridge_fee           NUMERIC(78, 0) NOT NULL,
	gas_fee              NUMERIC(78, 0) NOT NULL,
	total_fee            NUMERIC(78, 0) NOT NULL,
	estimated_time       INTEGER NOT NULL,
	status               TEXT NOT NULL,
	tx_hash              TEXT NOT NULL DEFAULT '',
	error                TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intents_identity_updated ON intents (identity, updated_at DESC);
`

// intentRow is the database representation of a terminal intent
type intentRow struct {
	ID                 string    `db:"id"`
	Identity           string    `db:"identity"`
	Token              string    `db:"token"`
	Decimals           int       `db:"decimals"`
	Requested          string    `db:"requested"`
	Sources            []byte    `db:"sources"`
	DestinationChainID int64     `db:"destination_chain_id"`
	DestinationAmount  string    `db:"destination_amount"`
	BridgeFee          string    `db:"bridge_fee"`
	GasFee             string    `db:"gas_fee"`
	TotalFee           string    `db:"total_fee"`
	EstimatedTime      int       `db:"estimated_time"`
	Status             string    `db:"status"`
	TxHash             string    `db:"tx_hash"`
	Error              string    `db:"error"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

type sourceRow struct {
	ChainID int64  `json:"chain_id"`
	Amount  string `json:"amount"`
}

// IntentRepo implements IntentJournal using PostgreSQL
type IntentRepo struct {
	db *sqlx.DB
}

// NewIntentRepo creates a new intent repository
func NewIntentRepo(db *sqlx.DB) *IntentRepo {
	return &IntentRepo{db: db}
}

// EnsureSchema creates the intents table if it does not exist
func (r *IntentRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, intentSchema); err != nil {
		return fmt.Errorf("failed to create intents schema: %w", err)
	}
	return nil
}

// Append records a terminal intent; duplicates are ignored
func (r *IntentRepo) Append(ctx context.Context, intent *entities.Intent) error {
	row, err := toIntentRow(intent)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO intents (
			id, identity, token, decimals, requested, sources,
			destination_chain_id, destination_amount, bridge_fee, gas_fee, total_fee,
			estimated_time, status, tx_hash, error, created_at, updated_at
		) VALUES (
			:id, :identity, :token, :decimals, :requested, :sources,
			:destination_chain_id, :destination_amount, :bridge_fee, :gas_fee, :total_fee,
			:estimated_time, :status, :tx_hash, :error, :created_at, :updated_at
		)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert intent: %w", err)
	}
	return nil
}

// ListByIdentity returns journaled intents for identity, most recent first
func (r *IntentRepo) ListByIdentity(ctx context.Context, identity string, limit, offset int) ([]*entities.Intent, error) {
	query := `
		SELECT id, identity, token, decimals, requested::TEXT AS requested, sources,
			destination_chain_id, destination_amount::TEXT AS destination_amount,
			bridge_fee::TEXT AS bridge_fee, gas_fee::TEXT AS gas_fee, total_fee::TEXT AS total_fee,
			estimated_time, status, tx_hash, error, created_at, updated_at
		FROM intents
		WHERE identity = $1
		ORDER BY updated_at DESC, id
		LIMIT $2 OFFSET $3
	`

	var rows []intentRow
	if err := r.db.SelectContext(ctx, &rows, query, identity, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}

	intents := make([]*entities.Intent, 0, len(rows))
	for _, row := range rows {
		intent, err := fromIntentRow(row)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// CountByIdentity returns the number of journaled intents for identity
func (r *IntentRepo) CountByIdentity(ctx context.Context, identity string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM intents WHERE identity = $1`
	if err := r.db.GetContext(ctx, &count, query, identity); err != nil {
		return 0, fmt.Errorf("failed to count intents: %w", err)
	}
	return count, nil
}

func toIntentRow(intent *entities.Intent) (intentRow, error) {
	sources := make([]sourceRow, len(intent.Sources))
	for i, s := range intent.Sources {
		sources[i] = sourceRow{ChainID: s.ChainID, Amount: s.Amount.String()}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return intentRow{}, fmt.Errorf("failed to encode intent sources: %w", err)
	}

	return intentRow{
		ID:                 intent.ID,
		Identity:           intent.Identity,
		Token:              intent.Token,
		Decimals:           intent.Decimals,
		Requested:          numeric(intent.Requested),
		Sources:            encoded,
		DestinationChainID: intent.Destination.ChainID,
		DestinationAmount:  numeric(intent.Destination.Amount),
		BridgeFee:          numeric(intent.Fees.BridgeFee),
		GasFee:             numeric(intent.Fees.GasFee),
		TotalFee:           numeric(intent.Fees.TotalFee),
		EstimatedTime:      intent.EstimatedTime,
		Status:             string(intent.Status),
		TxHash:             intent.TxHash,
		Error:              intent.Error,
		CreatedAt:          intent.CreatedAt,
		UpdatedAt:          intent.UpdatedAt,
	}, nil
}

func fromIntentRow(row intentRow) (*entities.Intent, error) {
	var sources []sourceRow
	if err := json.Unmarshal(row.Sources, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode intent sources: %w", err)
	}

	intent := &entities.Intent{
		ID:        row.ID,
		Identity:  row.Identity,
		Token:     row.Token,
		Decimals:  row.Decimals,
		Requested: parseNumeric(row.Requested),
		Sources:   make([]entities.IntentSource, len(sources)),
		Destination: entities.IntentDestination{
			ChainID:   row.DestinationChainID,
			ChainName: entities.ChainName(row.DestinationChainID),
			Amount:    parseNumeric(row.DestinationAmount),
		},
		Fees: entities.IntentFees{
			BridgeFee: parseNumeric(row.BridgeFee),
			GasFee:    parseNumeric(row.GasFee),
			TotalFee:  parseNumeric(row.TotalFee),
		},
		EstimatedTime: row.EstimatedTime,
		Status:        entities.IntentStatus(row.Status),
		TxHash:        row.TxHash,
		Error:         row.Error,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	for i, s := range sources {
		intent.Sources[i] = entities.IntentSource{
			ChainID:   s.ChainID,
			ChainName: entities.ChainName(s.ChainID),
			Amount:    parseNumeric(s.Amount),
		}
	}
	if !entities.IsValidIntentStatus(intent.Status) {
		return nil, fmt.Errorf("intent %s has unknown status %q", row.ID, row.Status)
	}
	return intent, nil
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
