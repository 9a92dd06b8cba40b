// Package core provides the business logic for joining two uploaded
// spreadsheets.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Pipeline
//
// One submission runs through four stages:
//
//  1. Read: [ReadTable] parses each upload into a [Table]. Workbooks are read
//     with excelize (first sheet, first non-blank row is the header); CSV
//     files are streamed through BOM skipping and UTF-8 sanitization.
//  2. Validate: [ValidateKeyColumn] checks both tables for the key column.
//  3. Join: [LeftJoin] keeps every row of the ID file in order and attaches
//     matching data rows. Unmatched rows get missing values; duplicate keys
//     in the data file repeat the ID row.
//  4. Present and export: [Present] builds the status line and preview,
//     [Export] serializes the full result as a workbook or CSV.
//
// [Service.Run] drives the stages, bounds concurrency with a [RunLimiter],
// and records a [RunRecord] to a [HistoryStore].
//
// # Outcomes
//
// Expected failures are values, not errors: a [JoinResult] holds either the
// joined table or a [*JoinError] whose kind is one of [KindMissingFiles],
// [KindMissingKeyColumn] or [KindUnreadableFile]. Errors returned from
// [Service.Run] mean the pipeline never ran, for example when the server is
// busy or an upload is too large.
//
// # Keys
//
// Join keys compare by canonical string: whole numbers as exact integers,
// other numbers in shortest decimal form, text as-is, booleans as TRUE/FALSE
// and times as RFC 3339. So the number 1 in one file matches the text "1" in
// the other, and -0 matches 0. Missing keys never match.
//
// # Run History
//
// Run summaries go to PostgreSQL when configured, otherwise to a bounded
// in-memory ring. [Service.StartPruneScheduler] removes old records.
package core
