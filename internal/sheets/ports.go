// Package sheets defines the spreadsheet export port. Adapters live in the
// google and memory subpackages.
package sheets

import "context"

// RowAppender appends rows below the existing content of a sheet.
type RowAppender interface {
	// AppendRows returns a reference to the written range.
	AppendRows(ctx context.Context, rows [][]any) (ref string, err error)
}
