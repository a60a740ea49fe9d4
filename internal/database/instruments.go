package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rickgao/betfair-instruments/internal/model"
)

// DefaultSaveBatchSize is the number of upserts queued per pgx batch.
const DefaultSaveBatchSize = 500

// DB is the subset of *pgxpool.Pool used by InstrumentStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const createInstrumentsTable = `
	CREATE TABLE IF NOT EXISTS instruments (
		id                 TEXT PRIMARY KEY,
		venue              TEXT NOT NULL,
		event_type_id      TEXT NOT NULL,
		event_type_name    TEXT NOT NULL,
		competition_id     TEXT NOT NULL,
		competition_name   TEXT NOT NULL,
		event_id           TEXT NOT NULL,
		event_name         TEXT NOT NULL,
		event_country_code TEXT NOT NULL,
		event_open_date    TIMESTAMPTZ NOT NULL,
		betting_type       TEXT NOT NULL,
		market_id          TEXT NOT NULL,
		market_name        TEXT NOT NULL,
		market_start_time  TIMESTAMPTZ NOT NULL,
		market_type        TEXT NOT NULL,
		selection_id       TEXT NOT NULL,
		selection_name     TEXT NOT NULL,
		selection_handicap TEXT NOT NULL,
		currency           TEXT NOT NULL,
		ts_event           BIGINT NOT NULL,
		ts_init            BIGINT NOT NULL,
		info               JSONB,
		load_id            UUID NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

const createInstrumentsMarketIndex = `
	CREATE INDEX IF NOT EXISTS instruments_market_id_idx ON instruments (market_id)`

const upsertInstrument = `
	INSERT INTO instruments (
		id, venue, event_type_id, event_type_name, competition_id, competition_name,
		event_id, event_name, event_country_code, event_open_date, betting_type,
		market_id, market_name, market_start_time, market_type,
		selection_id, selection_name, selection_handicap, currency,
		ts_event, ts_init, info, load_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT (id) DO UPDATE SET
		venue = EXCLUDED.venue,
		event_type_id = EXCLUDED.event_type_id,
		event_type_name = EXCLUDED.event_type_name,
		competition_id = EXCLUDED.competition_id,
		competition_name = EXCLUDED.competition_name,
		event_id = EXCLUDED.event_id,
		event_name = EXCLUDED.event_name,
		event_country_code = EXCLUDED.event_country_code,
		event_open_date = EXCLUDED.event_open_date,
		betting_type = EXCLUDED.betting_type,
		market_name = EXCLUDED.market_name,
		market_start_time = EXCLUDED.market_start_time,
		market_type = EXCLUDED.market_type,
		selection_name = EXCLUDED.selection_name,
		currency = EXCLUDED.currency,
		ts_event = EXCLUDED.ts_event,
		ts_init = EXCLUDED.ts_init,
		info = EXCLUDED.info,
		load_id = EXCLUDED.load_id,
		updated_at = now()`

const selectInstruments = `
	SELECT id, venue, event_type_id, event_type_name, competition_id, competition_name,
		event_id, event_name, event_country_code, event_open_date, betting_type,
		market_id, market_name, market_start_time, market_type,
		selection_id, selection_name, selection_handicap, currency,
		ts_event, ts_init, info, load_id::text
	FROM instruments
	ORDER BY id`

// instrumentRow is the database representation of an instrument.
type instrumentRow struct {
	ID                string
	Venue             string
	EventTypeID       string
	EventTypeName     string
	CompetitionID     string
	CompetitionName   string
	EventID           string
	EventName         string
	EventCountryCode  string
	EventOpenDate     time.Time
	BettingType       string
	MarketID          string
	MarketName        string
	MarketStartTime   time.Time
	MarketType        string
	SelectionID       string
	SelectionName     string
	SelectionHandicap string
	Currency          string
	TsEvent           int64
	TsInit            int64
	Info              []byte
	LoadID            string
}

func (r *instrumentRow) values() []any {
	return []any{
		r.ID, r.Venue, r.EventTypeID, r.EventTypeName, r.CompetitionID, r.CompetitionName,
		r.EventID, r.EventName, r.EventCountryCode, r.EventOpenDate, r.BettingType,
		r.MarketID, r.MarketName, r.MarketStartTime, r.MarketType,
		r.SelectionID, r.SelectionName, r.SelectionHandicap, r.Currency,
		r.TsEvent, r.TsInit, r.Info, r.LoadID,
	}
}

func (r *instrumentRow) pointers() []any {
	return []any{
		&r.ID, &r.Venue, &r.EventTypeID, &r.EventTypeName, &r.CompetitionID, &r.CompetitionName,
		&r.EventID, &r.EventName, &r.EventCountryCode, &r.EventOpenDate, &r.BettingType,
		&r.MarketID, &r.MarketName, &r.MarketStartTime, &r.MarketType,
		&r.SelectionID, &r.SelectionName, &r.SelectionHandicap, &r.Currency,
		&r.TsEvent, &r.TsInit, &r.Info, &r.LoadID,
	}
}

// instrumentToRow converts an instrument to its row form.
func instrumentToRow(inst *model.Instrument) (instrumentRow, error) {
	var info []byte
	if inst.Info != nil {
		b, err := json.Marshal(inst.Info)
		if err != nil {
			return instrumentRow{}, fmt.Errorf("marshal info for %s: %w", inst.ID(), err)
		}
		info = b
	}

	return instrumentRow{
		ID:                inst.ID(),
		Venue:             inst.VenueName,
		EventTypeID:       inst.EventTypeID,
		EventTypeName:     inst.EventTypeName,
		CompetitionID:     inst.CompetitionID,
		CompetitionName:   inst.CompetitionName,
		EventID:           inst.EventID,
		EventName:         inst.EventName,
		EventCountryCode:  inst.EventCountryCode,
		EventOpenDate:     inst.EventOpenDate.UTC(),
		BettingType:       inst.BettingType,
		MarketID:          inst.MarketID,
		MarketName:        inst.MarketName,
		MarketStartTime:   inst.MarketStartTime.UTC(),
		MarketType:        inst.MarketType,
		SelectionID:       inst.SelectionID,
		SelectionName:     inst.SelectionName,
		SelectionHandicap: inst.SelectionHandicap,
		Currency:          inst.Currency,
		TsEvent:           inst.TsEvent,
		TsInit:            inst.TsInit,
		Info:              info,
		LoadID:            inst.LoadID.String(),
	}, nil
}

// rowToInstrument converts a row back to an instrument.
func rowToInstrument(r *instrumentRow) (model.Instrument, error) {
	inst := model.Instrument{
		VenueName:         r.Venue,
		EventTypeID:       r.EventTypeID,
		EventTypeName:     r.EventTypeName,
		CompetitionID:     r.CompetitionID,
		CompetitionName:   r.CompetitionName,
		EventID:           r.EventID,
		EventName:         r.EventName,
		EventCountryCode:  r.EventCountryCode,
		EventOpenDate:     r.EventOpenDate.UTC(),
		BettingType:       r.BettingType,
		MarketID:          r.MarketID,
		MarketName:        r.MarketName,
		MarketStartTime:   r.MarketStartTime.UTC(),
		MarketType:        r.MarketType,
		SelectionID:       r.SelectionID,
		SelectionName:     r.SelectionName,
		SelectionHandicap: r.SelectionHandicap,
		Currency:          r.Currency,
		TsEvent:           r.TsEvent,
		TsInit:            r.TsInit,
	}

	if len(r.Info) > 0 {
		if err := json.Unmarshal(r.Info, &inst.Info); err != nil {
			return model.Instrument{}, fmt.Errorf("unmarshal info for %s: %w", r.ID, err)
		}
	}

	if r.LoadID != "" {
		id, err := uuid.Parse(r.LoadID)
		if err != nil {
			return model.Instrument{}, fmt.Errorf("parse load id for %s: %w", r.ID, err)
		}
		inst.LoadID = id
	}

	if inst.ID() != r.ID {
		return model.Instrument{}, fmt.Errorf("row id %q does not match instrument %q", r.ID, inst.ID())
	}

	return inst, nil
}

// InstrumentStore reads and writes the instruments table.
type InstrumentStore struct {
	db        DB
	logger    *slog.Logger
	batchSize int
}

// NewInstrumentStore creates a store on the given pool.
func NewInstrumentStore(db DB, logger *slog.Logger) *InstrumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstrumentStore{
		db:        db,
		logger:    logger,
		batchSize: DefaultSaveBatchSize,
	}
}

// EnsureSchema creates the instruments table and its index if missing.
func (s *InstrumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createInstrumentsTable); err != nil {
		return fmt.Errorf("create instruments table: %w", err)
	}
	if _, err := s.db.Exec(ctx, createInstrumentsMarketIndex); err != nil {
		return fmt.Errorf("create instruments index: %w", err)
	}
	return nil
}

// Save upserts instruments by ID and returns the number of rows written.
func (s *InstrumentStore) Save(ctx context.Context, instruments []model.Instrument) (int, error) {
	start := time.Now()
	written := 0

	for lo := 0; lo < len(instruments); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(instruments))

		n, err := s.saveBatch(ctx, instruments[lo:hi])
		written += n
		if err != nil {
			return written, err
		}
	}

	s.logger.Debug("saved instruments",
		"count", written,
		"duration", time.Since(start),
	)
	return written, nil
}

func (s *InstrumentStore) saveBatch(ctx context.Context, instruments []model.Instrument) (int, error) {
	batch := &pgx.Batch{}
	for i := range instruments {
		row, err := instrumentToRow(&instruments[i])
		if err != nil {
			return 0, err
		}
		batch.Queue(upsertInstrument, row.values()...)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range instruments {
		ct, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert instrument: %w", err)
		}
		written += int(ct.RowsAffected())
	}
	return written, nil
}

// Load reads every stored instrument, ordered by ID.
func (s *InstrumentStore) Load(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.Query(ctx, selectInstruments)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var r instrumentRow
		if err := rows.Scan(r.pointers()...); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		inst, err := rowToInstrument(&r)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}

	s.logger.Debug("loaded instruments", "count", len(out))
	return out, nil
}
