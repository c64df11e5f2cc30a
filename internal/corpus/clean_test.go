package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nephrag/nephrag/internal/core/domain"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips page headers",
			input: "Dialysis basics. Page 12 Indications for urgent dialysis.",
			want:  "Dialysis basics.\nIndications for urgent dialysis.",
		},
		{
			name:  "collapses blank line runs",
			input: "First section.\n\n\n\n\nSecond section.",
			want:  "First section.\nSecond section.",
		},
		{
			name:  "trims line padding and drops empty lines",
			input: "  indented line  \n\n   \nnext line",
			want:  "indented line\nnext line",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "manuals"), 0o700))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "manuals", "smh.txt"),
		[]byte("Overview. Page 1 \n\n\n\nDetails follow."), 0o600))

	loader, err := NewLoader(dir)
	require.NoError(t, err)

	doc := &domain.Document{Slug: "smh-manual", StoragePath: "manuals/smh.txt"}
	text, err := loader.Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Overview.\nDetails follow.", text)
}

func TestLoader_LoadMissingFile(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	require.NoError(t, err)

	doc := &domain.Document{Slug: "ghost", StoragePath: "nope.txt"}
	_, err = loader.Load(context.Background(), doc)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLoader_RejectsEscapingPath(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	require.NoError(t, err)

	doc := &domain.Document{Slug: "evil", StoragePath: "../outside.txt"}
	_, err = loader.Resolve(doc)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestNewLoader_RequiresDir(t *testing.T) {
	_, err := NewLoader("")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
