// Package migrations embeds the goose migration set for the
// processed_images schema so cmd/app can run it against METADATA_URL at startup
// without shipping .sql files alongside the binary separately.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
