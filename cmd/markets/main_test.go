package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/instrument"
)

func TestFilterFlag(t *testing.T) {
	filter := filterFlag{}
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(filter, "filter", "")

	err := fs.Parse([]string{
		"--filter", "event_type_name=Horse Racing",
		"--filter", "market_marketType=WIN, PLACE",
		"--filter", "market_marketType=EACH_WAY",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := filter[instrument.FilterEventTypeName]; len(got) != 1 || got[0] != "Horse Racing" {
		t.Errorf("event_type_name = %v, want [Horse Racing]", got)
	}
	want := []string{"WIN", "PLACE", "EACH_WAY"}
	got := filter[instrument.FilterMarketType]
	if len(got) != len(want) {
		t.Fatalf("market_marketType = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("market_marketType[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if err := instrument.MarketFilter(filter).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFilterFlag_Invalid(t *testing.T) {
	filter := filterFlag{}
	for _, in := range []string{"no-equals", "=value"} {
		if err := filter.Set(in); err == nil {
			t.Errorf("Set(%q) expected error", in)
		}
	}
}

type fakeBookLister struct {
	calls [][]string
	err   error
}

func (f *fakeBookLister) ListMarketBook(_ context.Context, marketIDs []string) ([]api.MarketBook, error) {
	f.calls = append(f.calls, marketIDs)
	if f.err != nil {
		return nil, f.err
	}
	books := make([]api.MarketBook, 0, len(marketIDs))
	for _, id := range marketIDs {
		books = append(books, api.MarketBook{
			MarketID:     id,
			Status:       "OPEN",
			TotalMatched: decimal.RequireFromString("100.5"),
			Runners: []api.RunnerBook{
				{SelectionID: 1, Status: "ACTIVE", LastPriceTraded: decimal.NewNullDecimal(decimal.RequireFromString("3.4"))},
			},
		})
	}
	return books, nil
}

func TestFetchBookRows(t *testing.T) {
	ids := make([]string, api.MaxBookMarkets+3)
	for i := range ids {
		ids[i] = fmt.Sprintf("1.%d", i)
	}

	lister := &fakeBookLister{}
	rows, err := fetchBookRows(context.Background(), lister, ids)
	if err != nil {
		t.Fatalf("fetchBookRows() error = %v", err)
	}
	if len(lister.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(lister.calls))
	}
	if len(lister.calls[0]) != api.MaxBookMarkets || len(lister.calls[1]) != 3 {
		t.Errorf("chunk sizes = %d, %d", len(lister.calls[0]), len(lister.calls[1]))
	}
	if len(rows) != len(ids) {
		t.Errorf("len(rows) = %d, want %d", len(rows), len(ids))
	}

	failing := &fakeBookLister{err: errors.New("TOO_MUCH_DATA")}
	if _, err := fetchBookRows(context.Background(), failing, ids); err == nil {
		t.Error("fetchBookRows() expected error")
	}
}

func TestWriteBookRows(t *testing.T) {
	rows := []api.MarketBookRow{{
		MarketID:           "1.23",
		SelectionID:        1001,
		MarketMatched:      decimal.RequireFromString("1520.35"),
		MarketStatus:       "OPEN",
		SelectionStatus:    "ACTIVE",
		SelectionLastPrice: decimal.NewNullDecimal(decimal.RequireFromString("2.5")),
	}}

	var table bytes.Buffer
	if err := writeBookRows(&table, rows, false); err != nil {
		t.Fatalf("writeBookRows() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), table.String())
	}
	fields := strings.Fields(lines[1])
	want := []string{"1.23", "1001", "1520.35", "OPEN", "ACTIVE", "-", "2.5"}
	if strings.Join(fields, " ") != strings.Join(want, " ") {
		t.Errorf("row = %v, want %v", fields, want)
	}

	var jsonOut bytes.Buffer
	if err := writeBookRows(&jsonOut, rows, true); err != nil {
		t.Fatalf("writeBookRows() error = %v", err)
	}
	out := jsonOut.String()
	if !strings.Contains(out, `"selection_matched":null`) || !strings.Contains(out, `"selection_last_price":"2.5"`) {
		t.Errorf("json = %s", out)
	}
}
