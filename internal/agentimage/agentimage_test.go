package agentimage

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarDirectory_IncludesAllFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.11-slim\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "main.go"), []byte("package main\n"), 0o644))

	r, err := tarDirectory(dir)
	require.NoError(t, err)

	tr := tar.NewReader(r)
	names := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}

	assert.True(t, names["Dockerfile"])
	assert.True(t, names["sub/main.go"])
}

func TestDrainBuildOutput_SurfacesErrorDetail(t *testing.T) {
	body := `{"stream":"Step 1/3 : FROM python:3.11-slim\n"}
{"errorDetail":{"message":"pull access denied"},"error":"pull access denied"}
`
	err := drainBuildOutput(newFakeReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull access denied")
}

func TestDrainBuildOutput_NoErrorOnCleanBuild(t *testing.T) {
	body := `{"stream":"Step 1/3 : FROM python:3.11-slim\n"}
{"stream":"Successfully built abc123\n"}
`
	err := drainBuildOutput(newFakeReader(body))
	assert.NoError(t, err)
}

func newFakeReader(s string) io.Reader {
	return &stringReaderCloser{s: s}
}

type stringReaderCloser struct {
	s   string
	pos int
}

func (r *stringReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
