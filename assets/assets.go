// Package assets embeds the schema migrations, page templates and images shipped with the binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql templates/*.html img/*.png
var embedFS embed.FS

// DefaultIcon is the image served for servers without a favicon.
const DefaultIcon = "img/default.png"

// FS returns the embedded file system rooted at the assets directory.
func FS() fs.FS {
	return embedFS
}

// ReadFile returns the content of a specific file from the embedded assets by its name.
func ReadFile(name string) ([]byte, error) {
	return embedFS.ReadFile(name)
}
