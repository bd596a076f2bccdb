// Package core provides the business logic for spreadsheet-to-CSV conversion.
//
// This package holds all domain logic independent of any UI or transport
// layer. The web server, the command-line tool and the database sinks use it
// without modification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Table: an ordered set of typed columns loaded from a source file.
//   - Plan: the caller-owned selection of columns and a [ColumnConfig] per column.
//   - Coercion: [Coerce] converts one column to its target type and reports
//     every correction as a [Finding].
//   - Service: the entry point that loads, infers, transforms and previews.
//
// # Source Formats
//
// Readers for input formats are registered at init time using [Register]. The
// sources subpackage registers Excel workbooks and delimited text:
//
//	core.Register(core.SourceFormat{
//	    Key:        "xlsx",
//	    Label:      "Excel workbook",
//	    Extensions: []string{".xlsx", ".xlsm"},
//	    Load:       LoadXLSX,
//	})
//
// [FormatFor] picks the format from the uploaded file's extension.
//
// # Conversion Flow
//
//  1. [Service.Inspect] loads the file and proposes a plan with [InferPlan]
//  2. The operator overrides types, max lengths and the column selection
//  3. [Service.Convert] validates the plan, then runs [Transform]
//  4. [Export] writes the result as delimited text in the chosen encoding
//
// Cell-level problems never fail a conversion. Out-of-range integers are
// clamped, unparseable values get a substitute, text is cleaned and
// truncated, and each kind of correction is summarized per column. Only an
// invalid plan, an unreadable file or cancellation return an error.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CFG001-CFG007: Plan and column configuration errors
//   - FILE001-FILE006: File errors (size, format, sheet, unreadable content)
//   - EXP001-EXP003: Export errors (separator, encoding)
//   - CONV001-CONV003: Conversion errors (busy, cancelled, timeout)
package core
