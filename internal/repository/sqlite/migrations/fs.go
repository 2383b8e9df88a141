package migrations

import "embed"

// FS holds the ordered revision history. Files are named NNNN_name.sql
// and applied in ascending numeric order.
//
//go:embed *.sql
var FS embed.FS
