// Package sheets defines the outbound port for the spreadsheet mirror.
package sheets

import "context"

// Mirror receives transaction rows for the external backup spreadsheet.
// Append records one change as it happens; Replace rewrites the whole
// sheet during periodic catch-up.
type Mirror interface {
	Append(ctx context.Context, row []any) error
	Replace(ctx context.Context, header []any, rows [][]any) error
}
