package instrument

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/betfair-instruments/internal/api"
)

// DefaultChunkSize is the number of market ids per catalogue request.
const DefaultChunkSize = 50

// CatalogueProjection is the fixed set of sections requested for every market.
var CatalogueProjection = []api.MarketProjection{
	api.ProjectionEventType,
	api.ProjectionEvent,
	api.ProjectionCompetition,
	api.ProjectionMarketDescription,
	api.ProjectionRunnerMetadata,
	api.ProjectionRunnerDescription,
	api.ProjectionMarketStartTime,
}

// BatcherConfig configures a Batcher.
type BatcherConfig struct {
	ChunkSize   int // Market ids per request (default 50)
	Concurrency int // Chunk requests in flight (default 1, sequential)
}

// Batcher requests catalogue records in fixed-size chunks.
type Batcher struct {
	client      CatalogueSource
	chunkSize   int
	concurrency int
	logger      *slog.Logger
}

// NewBatcher creates a new Batcher.
func NewBatcher(client CatalogueSource, cfg BatcherConfig, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Batcher{
		client:      client,
		chunkSize:   cfg.ChunkSize,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// MarketIDs returns the distinct market ids of markets in first-seen order.
func MarketIDs(markets []FlattenedMarket) []string {
	seen := make(map[string]struct{}, len(markets))
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		if _, ok := seen[m.MarketID]; ok {
			continue
		}
		seen[m.MarketID] = struct{}{}
		ids = append(ids, m.MarketID)
	}
	return ids
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Each requests every chunk of marketIDs and passes the records of each completed chunk to
// fn, in chunk order. On failure only the chunks before the first failed one are delivered.
// It returns the number of chunks delivered.
func (b *Batcher) Each(ctx context.Context, marketIDs []string, fn func(chunk int, records []api.MarketCatalogue) error) (int, error) {
	chunks := Chunk(marketIDs, b.chunkSize)
	if b.concurrency == 1 || len(chunks) <= 1 {
		return b.eachSequential(ctx, chunks, fn)
	}
	return b.eachConcurrent(ctx, chunks, fn)
}

func (b *Batcher) eachSequential(ctx context.Context, chunks [][]string, fn func(int, []api.MarketCatalogue) error) (int, error) {
	for i, ids := range chunks {
		records, err := b.fetch(ctx, i, ids)
		if err != nil {
			return i, err
		}
		if err := fn(i, records); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

func (b *Batcher) eachConcurrent(ctx context.Context, chunks [][]string, fn func(int, []api.MarketCatalogue) error) (int, error) {
	results := make([][]api.MarketCatalogue, len(chunks))
	done := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, ids := range chunks {
		g.Go(func() error {
			records, err := b.fetch(gctx, i, ids)
			if err != nil {
				return err
			}
			results[i] = records
			done[i] = true
			return nil
		})
	}
	fetchErr := g.Wait()

	// Deliver the contiguous prefix of completed chunks.
	for i := range chunks {
		if !done[i] {
			return i, fetchErr
		}
		if err := fn(i, results[i]); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

func (b *Batcher) fetch(ctx context.Context, index int, ids []string) ([]api.MarketCatalogue, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RemoteCallError{Op: "list market catalogue", Err: err}
	}

	records, err := b.client.ListMarketCatalogue(ctx, ids, CatalogueProjection, len(ids))
	if err != nil {
		return nil, &RemoteCallError{Op: "list market catalogue", Err: err}
	}

	b.logger.Debug("fetched catalogue chunk",
		"chunk", index,
		"markets", len(ids),
		"records", len(records),
	)
	return records, nil
}

// LoadMarketsMetadata requests catalogue records for markets and returns them in chunk order.
// Nothing is returned if any chunk fails.
func (b *Batcher) LoadMarketsMetadata(ctx context.Context, markets []FlattenedMarket) ([]api.MarketCatalogue, error) {
	var all []api.MarketCatalogue
	_, err := b.Each(ctx, MarketIDs(markets), func(_ int, records []api.MarketCatalogue) error {
		all = append(all, records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}
