// Package poller implements the periodic instrument refresh.
//
// The Poller:
//   - Calls LoadAll on the provider once at start and then every interval
//   - Bounds each cycle with a timeout
//   - Skips a cycle when a load is already running
//   - Hands the stats of each successful load to an optional callback
package poller
