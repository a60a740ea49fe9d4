package instrument

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/model"
	"github.com/rickgao/betfair-instruments/internal/stream"
)

// MarketMetadata is an upstream market record: CatalogShape or DefinitionShape.
// The set is closed; a new shape must implement the unexported mapping to compile.
type MarketMetadata interface {
	instruments(currency string, ts int64) ([]model.Instrument, error)
}

// CatalogShape is a catalogue record from listMarketCatalogue.
type CatalogShape struct {
	Record api.MarketCatalogue
}

// DefinitionShape is a streaming market definition.
type DefinitionShape struct {
	Definition stream.MarketDefinition
}

var (
	_ MarketMetadata = CatalogShape{}
	_ MarketMetadata = DefinitionShape{}
)

// MakeInstruments expands md into one instrument per runner, stamped with ts (ns since
// epoch) and priced in currency. Either every runner maps or an error is returned.
func MakeInstruments(md MarketMetadata, currency string, ts int64) ([]model.Instrument, error) {
	if md == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedRecordShape)
	}
	return md.instruments(currency, ts)
}

func (c CatalogShape) instruments(currency string, ts int64) ([]model.Instrument, error) {
	r := c.Record

	base := model.Instrument{
		VenueName:       model.Venue,
		MarketID:        r.MarketID,
		MarketName:      r.MarketName,
		MarketStartTime: api.ParseTime(r.MarketStartTime),
		Currency:        currency,
		TsEvent:         ts,
		TsInit:          ts,
	}
	if r.EventType != nil {
		base.EventTypeID = string(r.EventType.ID)
		base.EventTypeName = r.EventType.Name
	}
	if r.Competition != nil {
		base.CompetitionID = string(r.Competition.ID)
		base.CompetitionName = r.Competition.Name
	}
	if r.Event != nil {
		base.EventID = string(r.Event.ID)
		base.EventName = r.Event.Name
		base.EventCountryCode = r.Event.CountryCode
		base.EventOpenDate = api.ParseTime(r.Event.OpenDate)
	}
	if r.Description != nil {
		base.BettingType = r.Description.BettingType
		base.MarketType = r.Description.MarketType
	}

	out := make([]model.Instrument, 0, len(r.Runners))
	for _, runner := range r.Runners {
		hc, err := ParseHandicap(runner.Handicap.String())
		if err != nil {
			return nil, fmt.Errorf("market %s runner %d: %w", r.MarketID, runner.SelectionID, err)
		}

		inst := base
		inst.SelectionID = runner.SelectionIDString()
		inst.SelectionName = runner.RunnerName
		inst.SelectionHandicap = hc
		out = append(out, inst)
	}

	// Runners are validated first so a bad handicap is reported as such.
	if err := attachInfo(out, r.Raw, r); err != nil {
		return nil, fmt.Errorf("market %s: %w", r.MarketID, err)
	}
	return out, nil
}

func (d DefinitionShape) instruments(currency string, ts int64) ([]model.Instrument, error) {
	def := d.Definition

	startTime := time.Unix(0, 0).UTC()
	if def.MarketTime != "" {
		startTime = api.ParseTime(def.MarketTime)
	}

	base := model.Instrument{
		VenueName:        model.Venue,
		EventTypeID:      def.EventTypeID,
		EventTypeName:    def.EventTypeName,
		CompetitionID:    def.CompetitionID,
		CompetitionName:  def.CompetitionName,
		EventID:          def.EventID,
		EventName:        def.EventName,
		EventCountryCode: def.CountryCode,
		EventOpenDate:    api.ParseTime(def.OpenDate),
		BettingType:      def.BettingType,
		MarketID:         def.MarketID,
		MarketName:       def.MarketName,
		MarketStartTime:  startTime,
		MarketType:       def.MarketType,
		Currency:         currency,
		TsEvent:          ts,
		TsInit:           ts,
	}

	out := make([]model.Instrument, 0, len(def.Runners))
	for _, runner := range def.Runners {
		hc, err := ParseHandicap(runner.Handicap.String())
		if err != nil {
			return nil, fmt.Errorf("market %s runner %d: %w", def.MarketID, runner.ID, err)
		}

		selectionID := runner.SelectionID
		if selectionID == 0 {
			selectionID = runner.ID
		}

		inst := base
		inst.SelectionID = strconv.FormatInt(selectionID, 10)
		inst.SelectionName = runner.Name
		inst.SelectionHandicap = hc
		out = append(out, inst)
	}

	if err := attachInfo(out, def.Raw, def); err != nil {
		return nil, fmt.Errorf("market %s: %w", def.MarketID, err)
	}
	return out, nil
}

// attachInfo sets the decoded upstream payload on every instrument of one market.
func attachInfo(out []model.Instrument, raw json.RawMessage, v any) error {
	info, err := decodeInfo(raw, v)
	if err != nil {
		return err
	}
	for i := range out {
		out[i].Info = info
	}
	return nil
}

// decodeInfo returns the upstream payload as a generic map. Records built in code have no
// raw bytes and are encoded from v instead.
func decodeInfo(raw json.RawMessage, v any) (map[string]any, error) {
	if len(raw) == 0 {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode info: %w", err)
		}
		raw = data
	}

	var info map[string]any
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return info, nil
}
