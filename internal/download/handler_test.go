package download

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chai2010/webp"
	"github.com/gorilla/mux"

	"github.com/retouch/retouch/internal/asset"
	"github.com/retouch/retouch/internal/typeid"
)

func sample() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 60))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, 255
	}
	return img
}

func TestEncode_Formats(t *testing.T) {
	var buf bytes.Buffer
	f, err := Encode(&buf, sample(), Options{Format: "JPEG", Quality: 80})
	if err != nil || f.ContentType != "image/jpeg" {
		t.Fatalf("Encode jpeg = %+v, %v", f, err)
	}
	if _, err := jpeg.Decode(&buf); err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}

	buf.Reset()
	if _, err := Encode(&buf, sample(), Options{Format: "webp", Quality: 100}); err != nil {
		t.Fatalf("Encode webp: %v", err)
	}
	img, err := webp.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a WebP: %v", err)
	}
	if got := color.NRGBAModel.Convert(img.At(5, 5)).(color.NRGBA); got.R != 200 {
		t.Fatalf("lossless webp changed pixels: %+v", got)
	}

	buf.Reset()
	if _, err := Encode(&buf, sample(), Options{Format: "gif"}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("want ErrUnknownFormat, got %v", err)
	}
}

func TestEncode_MaxDim(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Encode(&buf, sample(), Options{MaxDim: 30}); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := image.DecodeConfig(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 30 || cfg.Height != 15 {
		t.Fatalf("resized to %dx%d", cfg.Width, cfg.Height)
	}
}

func TestHandler_Download(t *testing.T) {
	store, err := asset.NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	info, err := store.Save(typeid.PrefixResult, sample(), "")
	if err != nil {
		t.Fatal(err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/download/{assetId}", NewHandler(store).Download)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+info.ID+"?format=webp&name=my+photo.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="my-photo.webp"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rec.Header().Get("Content-Type") != "image/webp" {
		t.Fatalf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+info.ID+"?format=bmp", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+typeid.NewResultID(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing asset status %d", rec.Code)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"":            "retouched",
		"holiday.png": "holiday",
		"../../etc":   "------etc",
		"a b/c":       "a-b-c",
		".hidden":     "retouched",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
