// markets prints the navigation markets matching a filter, without loading catalogue data.
// With --book it prints each runner's traded volume, status and last traded price instead.
// Usage:
//
//	go run ./cmd/markets --config configs/instruments.local.yaml \
//	    --filter event_type_name="Horse Racing" --filter market_marketType=WIN,PLACE
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/auth"
	"github.com/rickgao/betfair-instruments/internal/config"
	"github.com/rickgao/betfair-instruments/internal/instrument"
)

// filterFlag collects repeated key=v1,v2 flags into a MarketFilter.
type filterFlag instrument.MarketFilter

func (f filterFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+strings.Join(v, ","))
	}
	return strings.Join(parts, " ")
}

func (f filterFlag) Set(s string) error {
	key, values, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("filter %q must be key=value[,value]", s)
	}
	for _, v := range strings.Split(values, ",") {
		if v = strings.TrimSpace(v); v != "" {
			f[key] = append(f[key], v)
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "configs/instruments.example.yaml", "path to config file")
	asJSON := flag.Bool("json", false, "print markets as JSON lines")
	book := flag.Bool("book", false, "print the market book of each market")
	filter := filterFlag{}
	flag.Var(filter, "filter", "market filter key=value[,value] (repeatable)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	creds, err := auth.LoadCredentials(cfg.API.AppKey, cfg.API.SessionToken, cfg.API.SessionTokenPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(cfg.API.RestURL, creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
	)
	provider := instrument.NewProvider(apiClient, instrument.DefaultConfig(), logger)

	mf := instrument.MarketFilter(filter)
	if len(mf) == 0 {
		mf = instrument.MarketFilter(cfg.Provider.Filters)
	}

	markets, err := provider.LoadMarkets(ctx, mf)
	if err != nil {
		logger.Error("failed to load markets", "error", err)
		os.Exit(1)
	}

	if *book {
		ids := make([]string, 0, len(markets))
		for _, m := range markets {
			ids = append(ids, m.MarketID)
		}
		rows, err := fetchBookRows(ctx, apiClient, ids)
		if err != nil {
			logger.Error("failed to load market books", "error", err)
			os.Exit(1)
		}
		if err := writeBookRows(os.Stdout, rows, *asJSON); err != nil {
			logger.Error("failed to write market books", "error", err)
			os.Exit(1)
		}
		logger.Info("market books loaded", "markets", len(ids), "runners", len(rows))
		return
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, m := range markets {
			if err := enc.Encode(m); err != nil {
				logger.Error("failed to encode market", "error", err)
				os.Exit(1)
			}
		}
	} else {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MARKET\tTYPE\tSTART\tEVENT\tMARKET NAME")
		for _, m := range markets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				m.MarketID, m.MarketType, m.MarketStartTime, m.EventName, m.MarketName)
		}
		tw.Flush()
	}

	logger.Info("markets loaded", "count", len(markets), "filter", mf)
}

// bookLister fetches market books. Implemented by *api.Client.
type bookLister interface {
	ListMarketBook(ctx context.Context, marketIDs []string) ([]api.MarketBook, error)
}

// fetchBookRows loads the books of marketIDs in request-sized chunks.
func fetchBookRows(ctx context.Context, client bookLister, marketIDs []string) ([]api.MarketBookRow, error) {
	var rows []api.MarketBookRow
	for start := 0; start < len(marketIDs); start += api.MaxBookMarkets {
		end := min(start+api.MaxBookMarkets, len(marketIDs))
		books, err := client.ListMarketBook(ctx, marketIDs[start:end])
		if err != nil {
			return rows, err
		}
		rows = append(rows, api.BookRows(books)...)
	}
	return rows, nil
}

// bookRowView is the JSON form of a market book row.
type bookRowView struct {
	MarketID           string           `json:"market_id"`
	SelectionID        int64            `json:"selection_id"`
	MarketMatched      decimal.Decimal  `json:"market_matched"`
	MarketStatus       string           `json:"market_status"`
	SelectionStatus    string           `json:"selection_status"`
	SelectionMatched   *decimal.Decimal `json:"selection_matched"`
	SelectionLastPrice *decimal.Decimal `json:"selection_last_price"`
}

func writeBookRows(w io.Writer, rows []api.MarketBookRow, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range rows {
			view := bookRowView{
				MarketID:        r.MarketID,
				SelectionID:     r.SelectionID,
				MarketMatched:   r.MarketMatched,
				MarketStatus:    r.MarketStatus,
				SelectionStatus: r.SelectionStatus,
			}
			if r.SelectionMatched.Valid {
				view.SelectionMatched = &r.SelectionMatched.Decimal
			}
			if r.SelectionLastPrice.Valid {
				view.SelectionLastPrice = &r.SelectionLastPrice.Decimal
			}
			if err := enc.Encode(view); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKET\tSELECTION\tMARKET MATCHED\tMARKET STATUS\tSELECTION STATUS\tSELECTION MATCHED\tLAST PRICE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.MarketID, r.SelectionID, r.MarketMatched, r.MarketStatus, r.SelectionStatus,
			nullString(r.SelectionMatched), nullString(r.SelectionLastPrice))
	}
	return tw.Flush()
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}
