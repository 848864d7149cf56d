package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

var (
	// ErrAssetNotFound is returned when a source has no entry for a path.
	ErrAssetNotFound = errors.New("audio asset not found")
	// ErrUnsupportedFormat is returned for extensions no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Source measures the playback duration of a narration asset.
type Source interface {
	Measure(ctx context.Context, path string) (time.Duration, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, path string) (time.Duration, error)

// Measure calls f.
func (f SourceFunc) Measure(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// Manifest is a Source backed by declared durations.
type Manifest map[string]time.Duration

// Measure returns the declared duration of path.
func (m Manifest) Measure(_ context.Context, path string) (time.Duration, error) {
	d, ok := m[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	return d, nil
}

// FileSource measures assets stored under Root by decoding them.
type FileSource struct {
	Root string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Root: dir}
}

// Measure decodes the asset header to compute its duration.
func (s *FileSource) Measure(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
		}
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(full)) {
	case ".mp3":
		return measureMP3(f)
	case ".ogg", ".oga":
		return measureOgg(f)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(full))
	}
}

// Measurable reports whether FileSource can decode the duration of path.
func Measurable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".ogg", ".oga":
		return true
	}
	return false
}

func (s *FileSource) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(s.Root, clean)
	rel, err := filepath.Rel(s.Root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	return full, nil
}

func measureMP3(r io.Reader) (time.Duration, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("failed to decode mp3: %w", err)
	}
	if dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("failed to decode mp3: invalid sample rate")
	}
	// Decoded stream is 16-bit stereo: 4 bytes per sample frame.
	samples := dec.Length() / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}

func measureOgg(r io.ReadSeeker) (time.Duration, error) {
	samples, format, err := oggvorbis.GetLength(r)
	if err != nil {
		return 0, fmt.Errorf("failed to decode ogg: %w", err)
	}
	if format == nil || format.SampleRate <= 0 {
		return 0, fmt.Errorf("failed to decode ogg: invalid sample rate")
	}
	return time.Duration(samples) * time.Second / time.Duration(format.SampleRate), nil
}

// FirstOf returns a Source that tries each source in order and returns the
// first successful measurement.
func FirstOf(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, path string) (time.Duration, error) {
		var errs []error
		for _, src := range sources {
			if src == nil {
				continue
			}
			d, err := src.Measure(ctx, path)
			if err == nil {
				return d, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return 0, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
		}
		return 0, errors.Join(errs...)
	})
}

// AssetURL prefixes a narration path with the public asset root.
func AssetURL(publicRoot, path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if publicRoot == "" {
		publicRoot = "/"
	}
	joined, err := url.JoinPath(publicRoot, path)
	if err != nil {
		return strings.TrimRight(publicRoot, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return joined
}
