// Package scene owns one satellite acquisition: the raw archive, its
// derived calibration metadata, and the processing entry point.
package scene

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultResolution is the ground sample distance of Landsat bands in
// meters.
const DefaultResolution = 30.0

// ParseError wraps a failure to read or extract the scene's metadata
// document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading scene metadata from %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Asset is the original raw tar.gz archive of one acquisition. The scene
// identifier encodes sensor code, WRS tile and acquisition date:
// LT5 008067 2002 080 EDC00.
type Asset struct {
	Path    string
	SceneID string
	Sensor  string
	TileID  string
	Date    time.Time
}

// NewAsset inspects an archive filename and parses the scene identifier.
func NewAsset(path string) (Asset, error) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, ".tar.gz")
	if !ok {
		return Asset{}, fmt.Errorf("asset %q is not a .tar.gz archive", base)
	}
	if len(name) < 16 {
		return Asset{}, fmt.Errorf("asset name %q is too short for a scene identifier", name)
	}
	date, err := time.Parse("2006002", name[9:16])
	if err != nil {
		return Asset{}, fmt.Errorf("asset name %q has no valid year/day-of-year: %w", name, err)
	}
	return Asset{
		Path:    path,
		SceneID: name[:16],
		Sensor:  name[:3],
		TileID:  name[3:9],
		Date:    date,
	}, nil
}

// DataFiles lists the member filenames of the archive.
func (a Asset) DataFiles() ([]string, error) {
	var names []string
	err := a.walk(func(hdr *tar.Header, _ *tar.Reader) error {
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, filepath.Base(hdr.Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Extract writes the named members into destDir and returns the exact set
// of paths written, so cleanup can delete precisely what extraction
// produced.
func (a Asset) Extract(names []string, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}

	extracted := map[string]string{}
	err := a.walk(func(hdr *tar.Header, tr *tar.Reader) error {
		base := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !wanted[base] {
			return nil
		}
		dest := filepath.Join(destDir, base)
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("extracting %s: %w", base, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		extracted[base] = dest
		return nil
	})

	// report written paths in the caller's order, band order matters
	var written, missing []string
	for _, n := range names {
		if dest, ok := extracted[n]; ok {
			written = append(written, dest)
		} else {
			missing = append(missing, n)
		}
	}
	if err != nil {
		return written, err
	}
	if len(missing) > 0 {
		return written, fmt.Errorf("archive %s is missing members %v", a.Path, missing)
	}
	return written, nil
}

func (a Asset) walk(visit func(*tar.Header, *tar.Reader) error) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", a.Path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", a.Path, err)
		}
		if err := visit(hdr, tr); err != nil {
			return err
		}
	}
}
