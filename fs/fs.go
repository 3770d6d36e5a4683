// Package appfs embeds the assets the binaries need at runtime:
// goose migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
