// Package core provides the merge-and-clean pipeline for contact spreadsheets.
//
// This package holds all domain logic independent of any UI, file format, or
// transport layer. It can be used by web handlers, the CLI, or tests without
// modification. Nothing in it blocks or keeps state between calls.
//
// # Pipeline
//
// The flow is:
//
//  1. A codec turns each uploaded file into a [RawTable] of [Cell] values
//  2. [Merge] concatenates the tables into one [MergedTable]
//  3. The caller picks a name column and a contact column
//  4. [Clean] projects every merged row to a [CleanedRow]
//  5. A codec writes the [CleanedTable] back out
//
// # Contact Normalization
//
// [NormalizeContact] keeps only the decimal digits of a cell and, when there
// are ten or more, returns the last ten:
//
//	NormalizeContact(Text("+91 98765 43210")) // "9876543210"
//	NormalizeContact(Text("12"))              // "12"
//	NormalizeContact(Missing())               // ""
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IN001-IN003: Input errors (no files, column not found, bad form)
//   - FILE001-FILE005: File errors (size, format, encoding)
//   - UPL001-UPL005: Upload and session errors
//   - RATE001: Request throttling
package core
