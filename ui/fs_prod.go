//go:build !debug

package ui

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// DistFS returns the embedded UI rooted at ui/ (production: baked into binary).
func DistFS() fs.FS {
	return distFS
}
