// Package sources registers the input file formats with the core registry.
// Import this package to make .xlsx, .xls and .csv files loadable.
package sources

import "github.com/JonMunkholm/sheetcsv/internal/core"

func init() {
	core.Register(core.SourceFormat{
		Key:        "xlsx",
		Label:      "Excel workbook",
		Extensions: []string{".xlsx", ".xlsm"},
		Load:       LoadXLSX,
	})
	core.Register(core.SourceFormat{
		Key:        "xls",
		Label:      "Excel 97-2003 workbook",
		Extensions: []string{".xls"},
		Load:       LoadXLS,
	})
	core.Register(core.SourceFormat{
		Key:        "csv",
		Label:      "Delimited text",
		Extensions: []string{".csv", ".txt", ".tsv"},
		Load:       LoadCSV,
	})
}
