package core

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// tarFile wraps f into a tar stream meant to be extracted at "/". The
// stream carries f.Dir as a directory entry, since the engine only extracts
// into directories that already exist.
func tarFile(f File) (io.Reader, error) {
	if f.Name == "" || path.Base(f.Name) != f.Name {
		return nil, fmt.Errorf("invalid file name %q", f.Name)
	}
	if f.Dir == "" || !path.IsAbs(f.Dir) {
		return nil, fmt.Errorf("destination %q must be an absolute directory", f.Dir)
	}
	if f.Content == nil {
		return nil, errors.New("file " + f.Name + " has no content")
	}

	mode := f.Mode
	if mode == 0 {
		mode = 0o644
	}

	var (
		buf bytes.Buffer
		now = time.Now()
		dir = strings.TrimPrefix(path.Clean(f.Dir), "/")
	)
	tw := tar.NewWriter(&buf)
	if dir != "" {
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     dir + "/",
			Mode:     0o755,
			ModTime:  now,
			Uid:      1000,
		}); err != nil {
			return nil, fmt.Errorf("tar header for %s: %w", f.Dir, err)
		}
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     path.Join(dir, f.Name),
		Mode:     mode,
		Size:     int64(len(f.Content)),
		ModTime:  now,
		Uid:      1000,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("tar header for %s: %w", f.Name, err)
	}
	if _, err := tw.Write(f.Content); err != nil {
		return nil, fmt.Errorf("tar content for %s: %w", f.Name, err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar for %s: %w", f.Name, err)
	}
	return &buf, nil
}
