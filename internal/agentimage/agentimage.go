// Package agentimage implements the Sandbox Image Builder: building the
// worker image (a Dockerfile plus the compiled sandbox agent) once at
// startup and tagging it with a fixed name.
package agentimage

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// Tag is the fixed name every build is tagged with, regardless of how many
// times the builder runs. Re-running overwrites the tag rather than
// accumulating stale images.
const Tag = "runner-worker:latest"

// DockerfilePath is where the build recipe lives relative to the build
// context root, which is the whole module (the agent needs go.mod/go.sum
// and cmd/sandbox-agent alongside it to compile its own binary).
const DockerfilePath = "agent/Dockerfile"

// Build reads the module root at contextDir, streams it to the Docker
// daemon as a tar archive, and builds+tags it as Tag. Intermediate layers
// are removed (Remove: true) so repeated builds do not leak them.
func Build(ctx context.Context, cli *client.Client, contextDir string) error {
	buildCtx, err := tarDirectory(contextDir)
	if err != nil {
		return fmt.Errorf("tar build context: %w", err)
	}

	resp, err := cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{Tag},
		Dockerfile:  DockerfilePath,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(resp.Body); err != nil {
		return fmt.Errorf("image build failed: %w", err)
	}

	log.Info().Str("tag", Tag).Str("context", contextDir).Msg("sandbox worker image built")
	return nil
}

// drainBuildOutput reads the build's streamed JSON log, surfacing the first
// error object it finds (the Docker build API reports failures inline in
// an otherwise-200 stream, not as a request error).
func drainBuildOutput(r io.Reader) error {
	dec := newJSONMessageScanner(r)
	for dec.Scan() {
		if msg := dec.ErrorMessage(); msg != "" {
			io.Copy(io.Discard, r)
			return fmt.Errorf("%s", msg)
		}
	}
	return dec.Err()
}

func tarDirectory(root string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if base := filepath.Base(rel); d.IsDir() && (base == ".git" || base == "_examples") {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
