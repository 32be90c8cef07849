package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers WebP with image.Decode, which imaging uses

	"github.com/retouch/retouch/internal/typeid"
)

var (
	ErrNotFound    = errors.New("asset not found")
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image has too many pixels")
)

// DefaultMaxPixels bounds decoded uploads (about 160MB as NRGBA).
const DefaultMaxPixels = 40_000_000

// Info describes a stored image.
type Info struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
}

// Store keeps images on disk as PNG files named by their typeid. Files are
// written once and never modified.
type Store struct {
	dir       string
	maxPixels int
}

// NewStore opens dir for assets. maxPixels caps width*height of anything
// decoded through the store; zero means DefaultMaxPixels.
func NewStore(dir string, maxPixels int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Store{dir: dir, maxPixels: maxPixels}, nil
}

func (s *Store) Dir() string { return s.dir }

// Decode reads PNG, JPEG or WebP data and applies EXIF orientation so native
// coordinates match what the browser displays. The header is checked against
// the pixel cap before any pixels are allocated.
func (s *Store) Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupported
	}
	if cfg.Width*cfg.Height > s.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrTooLarge, cfg.Width, cfg.Height, s.maxPixels)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupported
	}
	return img, nil
}

// Save stores img under a fresh id with the given prefix.
func (s *Store) Save(prefix string, img image.Image, name string) (*Info, error) {
	id := typeid.New(prefix)
	path := s.path(id)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create asset file: %w", err)
	}
	if err := imaging.Encode(out, img, imaging.PNG); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close asset file: %w", err)
	}

	b := img.Bounds()
	return &Info{
		ID:     id,
		URL:    URL(id),
		Width:  b.Dx(),
		Height: b.Dy(),
		Type:   "png",
		Name:   name,
	}, nil
}

// Open returns the stored file for id.
func (s *Store) Open(id string) (*os.File, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Load decodes the stored image for id.
func (s *Store) Load(id string) (image.Image, error) {
	f, err := s.Open(id)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", id, err)
	}
	return img, nil
}

// Stat returns the size of the stored image without decoding pixels.
func (s *Store) Stat(id string) (*Info, error) {
	f, err := s.Open(id)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset config %s: %w", id, err)
	}
	return &Info{ID: id, URL: URL(id), Width: cfg.Width, Height: cfg.Height, Type: "png"}, nil
}

// Delete removes an asset file from disk.
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".png")
}

// URL is the public path an asset is served from.
func URL(id string) string {
	return fmt.Sprintf("/assets/%s.png", id)
}

func validID(id string) bool {
	return typeid.Validate(id, typeid.PrefixImage) == nil || typeid.Validate(id, typeid.PrefixResult) == nil
}
