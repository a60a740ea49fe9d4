package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestInstrumentKey(t *testing.T) {
	inst := Instrument{
		VenueName:         Venue,
		MarketID:          "1.23",
		SelectionID:       "456",
		SelectionHandicap: "-0.5",
	}

	key := inst.Key()
	if key.MarketID != "1.23" {
		t.Errorf("MarketID = %q, want %q", key.MarketID, "1.23")
	}
	if key.SelectionID != "456" {
		t.Errorf("SelectionID = %q, want %q", key.SelectionID, "456")
	}
	if key.Handicap != "-0.5" {
		t.Errorf("Handicap = %q, want %q", key.Handicap, "-0.5")
	}
	if got := key.String(); got != "1.23-456--0.5" {
		t.Errorf("String() = %q, want %q", got, "1.23-456--0.5")
	}
}

func TestInstrumentID(t *testing.T) {
	tests := []struct {
		name string
		inst Instrument
		want string
	}{
		{
			name: "zero handicap",
			inst: Instrument{VenueName: Venue, MarketID: "1.180737206", SelectionID: "19248890", SelectionHandicap: "0.0"},
			want: "1.180737206-19248890-0.0.BETFAIR",
		},
		{
			name: "asian handicap",
			inst: Instrument{VenueName: Venue, MarketID: "1.23", SelectionID: "1", SelectionHandicap: "1.25"},
			want: "1.23-1-1.25.BETFAIR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstrumentFields(t *testing.T) {
	loadID := uuid.New()
	start := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	inst := Instrument{
		VenueName:       Venue,
		MarketID:        "1.23",
		MarketStartTime: start,
		TsEvent:         1705321845000000000,
		TsInit:          1705321845000000000,
		Info:            map[string]any{"marketId": "1.23"},
		LoadID:          loadID,
	}

	if !inst.MarketStartTime.Equal(start) {
		t.Errorf("MarketStartTime = %v, want %v", inst.MarketStartTime, start)
	}
	if inst.LoadID != loadID {
		t.Errorf("LoadID = %v, want %v", inst.LoadID, loadID)
	}
	if inst.Info["marketId"] != "1.23" {
		t.Errorf("Info[marketId] = %v, want %q", inst.Info["marketId"], "1.23")
	}
}
