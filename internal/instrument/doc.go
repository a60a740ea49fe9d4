// Package instrument resolves exchange markets into betting instruments.
//
// The pipeline runs in four stages:
//
//  1. LoadMarkets fetches the navigation tree once and flattens it into the
//     markets matching a MarketFilter.
//  2. A Batcher deduplicates the market ids and requests catalogue records in
//     chunks of DefaultChunkSize ids, one remote call per chunk.
//  3. MakeInstruments expands each catalogue record or streaming market
//     definition into one instrument per runner.
//  4. A Registry stores the instruments and answers lookups by composite key
//     (market, selection, handicap) or by attribute filter.
//
// Provider ties the stages together behind LoadAll and owns the registry.
package instrument
