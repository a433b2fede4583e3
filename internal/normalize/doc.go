// Package normalize turns raw supplier spreadsheets into canonical,
// validated tables.
//
// A run takes a [sheet.Grid] and a [profile.Profile] and moves through four
// stages: the header is resolved into a [Plan], each data row is coerced and
// validated, and the accepted rows are collected into a [Table] alongside a
// [Report] of everything that was dropped, rejected or repaired.
//
// # Header Resolution
//
// Every column position resolves to exactly one of mapped, ignored or
// unresolved. Headers are trimmed and NFC-normalized, then checked against
// the profile's ignore list (by header text and by the positional
// "Unnamed: <i>" name) before the column mapping, so an ignored header is
// never mapped. Placeholder headers of profiles with auto_detect_headers
// go through the configured [Detector] chain. Unresolved columns are
// dropped and reported once.
//
// When several columns map to the same field, the rightmost column wins,
// even when its cell is empty. Only the winning column is coerced.
//
// # Preprocessing
//
// A profile's preprocess section is applied through a [Preprocessor]: raw
// text is cleaned before coercion (whitespace collapsed, characters and
// prefixes stripped per field), row filters run on the coerced record
// before validation, and accepted rows are stamped with the supplier name.
// A filtered row is skipped, not rejected, and carries a filtered
// diagnostic.
//
// # Coercion
//
// [Coerce] converts raw cells to int, float or string values. Absent cells
// (empty, blank, or an NA token) stay absent for every type. A value that
// does not parse becomes absent and the row carries a coercion-failure
// diagnostic; coercion never rejects a row by itself.
//
// # Validation and Classification
//
// A row is rejected when a required field is absent or a range-checked
// value lies outside the profile's inclusive bounds. Rows with only
// coercion failures are accepted with warnings. Rows whose cells are all
// absent are skipped before validation when skip_empty_rows is set and
// carry a skipped-empty diagnostic.
//
// # Concurrency
//
// An [Engine] is safe for concurrent use. Within a [Run], each batch of
// rows is split across a bounded errgroup; rows share only read-only state
// (grid, plan, profile) and write to their own result slot. The optional
// drop of all-absent output columns runs after every row is classified.
// Callers that need cancellation drive a run with [Run.Next] and stop
// between batches:
//
//	run := engine.Start(ctx, grid, p)
//	for run.Next() {
//	    if ctx.Err() != nil {
//	        break
//	    }
//	}
//	table, report := run.Finish()
//
// # Error Handling
//
// Only registry errors (unknown or malformed profile) and context
// cancellation are returned as errors. Per-cell and per-row problems are
// [Diagnostic] entries in the report. [MapError] converts returned errors
// to user-facing messages with support codes:
//
//   - PRF001-PRF002: Profile errors (not found, invalid)
//   - FILE001-FILE006: File errors (size, CSV, format, missing, empty, grid)
//   - UPL001-UPL003: Upload errors (busy, cancelled, timeout)
//   - HIS001-HIS002: Run history errors
package normalize
