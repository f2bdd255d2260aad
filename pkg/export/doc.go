// Package export turns the aggregate store into today's wait-time estimates
// and handles backup and restore of the stores.
//
// # Estimates
//
// Export picks, for every location, the buckets matching today's weekday
// and today's session. Rare sessions (finals, short breaks) often have no
// history yet, so a location without rows for the current session falls
// back to its regular-session rows. Swipe density is each block's average
// relative to the busiest block of that selection, so the busiest block
// always has density 1.
//
// The published collection lives in a Snapshot and is replaced whole.
//
// # Backup Formats
//
// JSON Format:
//   - Holds events, buckets and the log cursor
//   - Can be re-imported with POST /v1/import
//
// CSV Format:
//   - One table per file: buckets, events or daily averages
//   - Export-only
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - table: "buckets", "events" or "daily" (csv only)
//
// Example:
//
//	curl "http://localhost:8080/v1/export?format=csv&table=daily" -o daily.csv
//
// Import endpoint: POST /v1/import
package export
