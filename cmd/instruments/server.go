package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/betfair-instruments/internal/instrument"
	"github.com/rickgao/betfair-instruments/internal/model"
	"github.com/rickgao/betfair-instruments/internal/version"
)

// Pinger checks a dependency's connectivity. Implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// instrumentView is the JSON form of an instrument.
type instrumentView struct {
	ID                string         `json:"id"`
	Venue             string         `json:"venue"`
	EventTypeID       string         `json:"event_type_id"`
	EventTypeName     string         `json:"event_type_name"`
	CompetitionID     string         `json:"competition_id,omitempty"`
	CompetitionName   string         `json:"competition_name,omitempty"`
	EventID           string         `json:"event_id"`
	EventName         string         `json:"event_name"`
	EventCountryCode  string         `json:"event_country_code"`
	EventOpenDate     time.Time      `json:"event_open_date"`
	BettingType       string         `json:"betting_type"`
	MarketID          string         `json:"market_id"`
	MarketName        string         `json:"market_name"`
	MarketStartTime   time.Time      `json:"market_start_time"`
	MarketType        string         `json:"market_type"`
	SelectionID       string         `json:"selection_id"`
	SelectionName     string         `json:"selection_name"`
	SelectionHandicap string         `json:"selection_handicap"`
	Currency          string         `json:"currency"`
	TsEvent           int64          `json:"ts_event"`
	TsInit            int64          `json:"ts_init"`
	LoadID            string         `json:"load_id"`
	Info              map[string]any `json:"info,omitempty"`
}

func newInstrumentView(inst model.Instrument, withInfo bool) instrumentView {
	v := instrumentView{
		ID:                inst.ID(),
		Venue:             inst.VenueName,
		EventTypeID:       inst.EventTypeID,
		EventTypeName:     inst.EventTypeName,
		CompetitionID:     inst.CompetitionID,
		CompetitionName:   inst.CompetitionName,
		EventID:           inst.EventID,
		EventName:         inst.EventName,
		EventCountryCode:  inst.EventCountryCode,
		EventOpenDate:     inst.EventOpenDate,
		BettingType:       inst.BettingType,
		MarketID:          inst.MarketID,
		MarketName:        inst.MarketName,
		MarketStartTime:   inst.MarketStartTime,
		MarketType:        inst.MarketType,
		SelectionID:       inst.SelectionID,
		SelectionName:     inst.SelectionName,
		SelectionHandicap: inst.SelectionHandicap,
		Currency:          inst.Currency,
		TsEvent:           inst.TsEvent,
		TsInit:            inst.TsInit,
		LoadID:            inst.LoadID.String(),
	}
	if withInfo {
		v.Info = inst.Info
	}
	return v
}

// createHandler creates the HTTP handler for health checks and instrument queries.
// db may be nil when persistence is disabled. updates may be nil, which leaves /ws unrouted.
func createHandler(provider *instrument.Provider, db Pinger, updates *feed, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if updates != nil {
		mux.Handle("/ws", updates)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		stats := provider.Registry().Stats()
		health.Components["registry"] = map[string]any{
			"instruments": stats.Instruments,
			"memoized":    stats.Memoized,
			"missing":     stats.Missing,
			"scans":       stats.Scans,
		}
		if updates != nil {
			health.Components["feed"] = map[string]any{"subscribers": updates.subscribers()}
		}
		if stats.Instruments == 0 && health.Status == "healthy" {
			health.Status = "degraded"
		}

		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health, logger)
	})

	mux.HandleFunc("/instruments", func(w http.ResponseWriter, r *http.Request) {
		filter := make(map[string]string)
		withInfo := false
		for name, values := range r.URL.Query() {
			if name == "info" {
				withInfo = values[0] == "true"
				continue
			}
			filter[name] = values[0]
		}

		found, err := provider.Search(filter)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, instrument.ErrUnknownAttribute) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err, logger)
			return
		}

		views := make([]instrumentView, 0, len(found))
		for _, inst := range found {
			views = append(views, newInstrumentView(inst, withInfo))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":       len(views),
			"instruments": views,
		}, logger)
	})

	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		marketID := q.Get("market_id")
		selectionID := q.Get("selection_id")
		if marketID == "" || selectionID == "" {
			writeError(w, http.StatusBadRequest, errors.New("market_id and selection_id are required"), logger)
			return
		}

		inst, ok, err := provider.Resolve(marketID, selectionID, q.Get("handicap"))
		switch {
		case errors.Is(err, instrument.ErrInvalidHandicap):
			writeError(w, http.StatusBadRequest, err, logger)
			return
		case errors.Is(err, instrument.ErrAmbiguousResolution):
			writeError(w, http.StatusConflict, err, logger)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err, logger)
			return
		case !ok:
			writeError(w, http.StatusNotFound, errors.New("instrument not found"), logger)
			return
		}

		writeJSON(w, http.StatusOK, newInstrumentView(inst, true), logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error, logger *slog.Logger) {
	writeJSON(w, status, map[string]string{"error": err.Error()}, logger)
}
