package download

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/retouch/retouch/internal/asset"
)

var ErrUnknownFormat = errors.New("unknown format")

type Format struct {
	Ext         string
	ContentType string
}

var formats = map[string]Format{
	"png":  {Ext: "png", ContentType: "image/png"},
	"jpeg": {Ext: "jpg", ContentType: "image/jpeg"},
	"jpg":  {Ext: "jpg", ContentType: "image/jpeg"},
	"webp": {Ext: "webp", ContentType: "image/webp"},
}

// Options controls how a stored image is converted for download.
type Options struct {
	Format  string
	Quality int // 1-100; 100 makes WebP lossless
	MaxDim  int // longest side, 0 keeps the native size
}

// Encode writes img in the requested format and returns the format used.
func Encode(w io.Writer, img image.Image, opts Options) (Format, error) {
	name := strings.ToLower(opts.Format)
	if name == "" {
		name = "png"
	}
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	if opts.MaxDim > 0 {
		b := img.Bounds()
		if b.Dx() > opts.MaxDim || b.Dy() > opts.MaxDim {
			img = imaging.Fit(img, opts.MaxDim, opts.MaxDim, imaging.Lanczos)
		}
	}

	var err error
	switch f.Ext {
	case "png":
		err = imaging.Encode(w, img, imaging.PNG)
	case "jpg":
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "webp":
		err = webp.Encode(w, img, &webp.Options{Lossless: quality == 100, Quality: float32(quality)})
	}
	if err != nil {
		return Format{}, fmt.Errorf("encode %s: %w", f.Ext, err)
	}
	return f, nil
}

type Handler struct {
	assets *asset.Store
}

func NewHandler(assets *asset.Store) *Handler {
	return &Handler{assets: assets}
}

// Download handles GET /download/{assetId}?format=png|jpeg|webp&quality=&maxDim=&name=.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["assetId"]
	q := r.URL.Query()

	quality, _ := strconv.Atoi(q.Get("quality"))
	maxDim, _ := strconv.Atoi(q.Get("maxDim"))
	opts := Options{Format: q.Get("format"), Quality: quality, MaxDim: maxDim}

	img, err := h.assets.Load(id)
	if err != nil {
		if errors.Is(err, asset.ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("load asset for download", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	f, err := Encode(&buf, img, opts)
	if err != nil {
		if errors.Is(err, ErrUnknownFormat) {
			http.Error(w, "invalid format: must be png, jpeg, or webp", http.StatusBadRequest)
			return
		}
		slog.Error("encode download", "error", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}

	name := sanitizeName(q.Get("name"))
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, f.Ext))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("write download", "error", err)
	}
	slog.Info("download served", "id", id, "format", f.Ext, "bytes", buf.Len())
}

// sanitizeName keeps a filename to [A-Za-z0-9_-] and drops any extension.
func sanitizeName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		return "retouched"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
