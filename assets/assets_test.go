package assets

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFiles(t *testing.T) {
	migrations, err := fs.Glob(FS(), "migrations/*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, migrations)

	templates, err := fs.Glob(FS(), "templates/*.html")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"templates/index.html", "templates/status.html", "templates/embed.html"}, templates)
}

func TestDefaultIconIsPNG(t *testing.T) {
	data, err := ReadFile(DefaultIcon)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}
