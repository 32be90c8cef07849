package repair

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/retouch/retouch/internal/asset"
	"github.com/retouch/retouch/internal/document"
	"github.com/retouch/retouch/internal/editor"
	"github.com/retouch/retouch/internal/genai"
	"github.com/retouch/retouch/internal/store"
	"github.com/retouch/retouch/internal/typeid"
)

type stubGenerator struct {
	mu       sync.Mutex
	requests []genai.Request
	result   *genai.Result
	err      error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Repair(ctx context.Context, req genai.Request) (*genai.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.result, g.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []store.Status
}

func (p *recordingPublisher) Publish(sessionID, msgType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := payload.(*store.Job); ok {
		p.statuses = append(p.statuses, job.Status)
	}
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	svc    *Service
	gen    *stubGenerator
	pub    *recordingPublisher
	assets *asset.Store
	jobs   *store.MemoryStore
	image  *asset.Info
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	assets, err := asset.NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	info, err := assets.Save(typeid.PrefixImage, solid(800, 600, color.NRGBA{100, 100, 100, 255}), "src.png")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		gen:    &stubGenerator{},
		pub:    &recordingPublisher{},
		assets: assets,
		jobs:   store.NewMemoryStore(),
		image:  info,
	}
	f.svc = NewService(f.jobs, assets, f.gen, f.pub, opts)
	t.Cleanup(f.svc.Close)
	return f
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, Options{MaxSendDim: 400})
	f.gen.result = &genai.Result{
		Image: pngBytes(t, solid(400, 300, color.NRGBA{0, 200, 0, 255})),
		MIME:  "image/png",
		Text:  "Removed the object.",
	}

	ctx := context.Background()
	job, err := f.svc.Submit(ctx, "sess_1", Request{
		ImageID: f.image.ID,
		Regions: []editor.Region{{X: 200, Y: 100, Width: 100, Height: 100}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != store.StatusQueued {
		t.Fatalf("returned job should be queued, got %s", job.Status)
	}
	f.svc.Wait()

	done, err := f.svc.Get(ctx, "sess_1", job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.Status != store.StatusSucceeded || done.ModelText != "Removed the object." {
		t.Fatalf("unexpected job %+v", done)
	}

	// The image was sent at half size, so the coordinates were halved too.
	req := f.gen.requests[0]
	if !strings.Contains(req.Prompt, "Region 1: x=100, y=50, width=50, height=50") {
		t.Fatalf("prompt does not carry scaled regions:\n%s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "400x300") {
		t.Fatalf("prompt does not name the sent size:\n%s", req.Prompt)
	}

	// The result is stored back at native size.
	st, err := f.assets.Stat(done.ResultID)
	if err != nil {
		t.Fatalf("result asset: %v", err)
	}
	if st.Width != 800 || st.Height != 600 {
		t.Fatalf("result stored at %dx%d", st.Width, st.Height)
	}

	want := []store.Status{store.StatusQueued, store.StatusRunning, store.StatusSucceeded}
	if len(f.pub.statuses) != len(want) {
		t.Fatalf("published %v, want %v", f.pub.statuses, want)
	}
	for i := range want {
		if f.pub.statuses[i] != want[i] {
			t.Fatalf("published %v, want %v", f.pub.statuses, want)
		}
	}
}

func TestSubmit_FailureCategories(t *testing.T) {
	cases := []struct {
		name   string
		result *genai.Result
		err    error
		kind   genai.Category
		text   string
	}{
		{"rate limited", nil, genai.ErrRateLimited, genai.CategoryRateLimited, ""},
		{"auth", nil, genai.ErrAuth, genai.CategoryAuth, ""},
		{"policy", nil, genai.ErrPolicy, genai.CategoryPolicy, ""},
		{"text only", &genai.Result{Text: "I cannot do that."}, nil, genai.CategoryNoImage, "I cannot do that."},
		{"generic", nil, errors.New("boom"), genai.CategoryFailed, ""},
		{"undecodable image", &genai.Result{Image: []byte("nope")}, nil, genai.CategoryFailed, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.gen.result, f.gen.err = tc.result, tc.err

			job, err := f.svc.Submit(context.Background(), "sess", Request{
				ImageID: f.image.ID,
				Regions: []editor.Region{{X: 10, Y: 10, Width: 50, Height: 50}},
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			f.svc.Wait()

			done, _ := f.svc.Get(context.Background(), "sess", job.ID)
			if done.Status != store.StatusFailed || done.ErrorKind != string(tc.kind) {
				t.Fatalf("status %s kind %q, want failed %q", done.Status, done.ErrorKind, tc.kind)
			}
			if done.Error == "" || done.ModelText != tc.text {
				t.Fatalf("unexpected error fields %+v", done)
			}
		})
	}
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown image", Request{ImageID: typeid.NewImageID(), Regions: []editor.Region{{X: 1, Y: 1, Width: 10, Height: 10}}}, ErrImageNotFound},
		{"nothing to do", Request{ImageID: f.image.ID}, ErrNoRegions},
		{"blank instruction", Request{ImageID: f.image.ID, Instruction: " \n\t "}, ErrNoRegions},
		{"empty region", Request{ImageID: f.image.ID, Regions: []editor.Region{{X: 1, Y: 1}}}, document.ErrInvalidRegion},
		{"outside image", Request{ImageID: f.image.ID, Regions: []editor.Region{{X: 900, Y: 1, Width: 10, Height: 10}}}, document.ErrInvalidRegion},
		{"too small after clamp", Request{ImageID: f.image.ID, Regions: []editor.Region{{X: 797, Y: 1, Width: 50, Height: 50}}}, document.ErrInvalidRegion},
	}
	for _, tc := range cases {
		if _, err := f.svc.Submit(ctx, "sess", tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	if len(f.gen.requests) != 0 {
		t.Fatalf("invalid requests reached the model")
	}
}

func TestSubmit_InstructionOnly(t *testing.T) {
	f := newFixture(t, Options{})
	f.gen.result = &genai.Result{Image: pngBytes(t, solid(800, 600, color.NRGBA{A: 255}))}
	if _, err := f.svc.Submit(context.Background(), "sess", Request{ImageID: f.image.ID, Instruction: "brighten"}); err != nil {
		t.Fatalf("instruction-only repair rejected: %v", err)
	}
}

func TestSubmit_ClampsOverhangingRegion(t *testing.T) {
	f := newFixture(t, Options{})
	f.gen.result = &genai.Result{Text: "x"}
	job, err := f.svc.Submit(context.Background(), "sess", Request{
		ImageID: f.image.ID,
		Regions: []editor.Region{{X: 700, Y: 500, Width: 300, Height: 300}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := job.Regions[0]; got != (editor.Region{X: 700, Y: 500, Width: 100, Height: 100}) {
		t.Fatalf("region not clamped: %+v", got)
	}
}

func TestGet_OtherSessionIsNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	f.gen.result = &genai.Result{Text: "x"}
	job, _ := f.svc.Submit(context.Background(), "sess_owner", Request{
		ImageID: f.image.ID,
		Regions: []editor.Region{{X: 10, Y: 10, Width: 50, Height: 50}},
	})
	f.svc.Wait()

	if _, err := f.svc.Get(context.Background(), "sess_other", job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	list, _ := f.svc.List(context.Background(), "sess_other", 10)
	if len(list) != 0 {
		t.Fatalf("other session sees %d jobs", len(list))
	}
}

func TestPreview_DrawsRegions(t *testing.T) {
	f := newFixture(t, Options{})
	img, err := f.svc.Preview(f.image.ID, []editor.Region{{X: 100, Y: 100, Width: 200, Height: 200}})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	gray := color.NRGBA{100, 100, 100, 255}
	nrgba := imaging.Clone(img)
	if nrgba.NRGBAAt(700, 500) != gray {
		t.Fatalf("pixel outside the region changed")
	}
	if nrgba.NRGBAAt(299, 200) == gray {
		t.Fatalf("region border missing in preview")
	}

	if _, err := f.svc.Preview(typeid.NewImageID(), nil); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("want ErrImageNotFound, got %v", err)
	}
}
