// Package model defines the shared data types of the instrument service.
//
// Conventions:
//   - Instrument IDs: "<market_id>-<selection_id>-<handicap>.BETFAIR"
//   - Handicaps: canonical decimal strings with at least one fractional digit ("0.0", "-0.5")
//   - Ingestion timestamps: int64 nanoseconds since Unix epoch
//   - Load cycles: uuid.UUID
package model
