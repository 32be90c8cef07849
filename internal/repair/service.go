package repair

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/retouch/retouch/internal/asset"
	"github.com/retouch/retouch/internal/document"
	"github.com/retouch/retouch/internal/editor"
	"github.com/retouch/retouch/internal/events"
	"github.com/retouch/retouch/internal/genai"
	"github.com/retouch/retouch/internal/prompt"
	"github.com/retouch/retouch/internal/store"
	"github.com/retouch/retouch/internal/typeid"
)

var (
	ErrNotFound      = errors.New("repair job not found")
	ErrImageNotFound = errors.New("image not found")
	ErrNoRegions     = errors.New("at least one region or an instruction is required")
)

const maxRegions = 32

// Publisher delivers job updates to the session's open connections.
type Publisher interface {
	Publish(sessionID, msgType string, payload any)
}

type Options struct {
	MaxSendDim    int
	MinRegionSize float64
	Timeout       time.Duration
	// MaxConcurrent bounds the number of model calls in flight.
	MaxConcurrent int
}

type Service struct {
	jobs   store.JobStore
	assets *asset.Store
	gen    genai.Generator
	events Publisher
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}
}

func NewService(jobs store.JobStore, assets *asset.Store, gen genai.Generator, pub Publisher, opts Options) *Service {
	if opts.MinRegionSize <= 0 {
		opts.MinRegionSize = editor.DefaultMinRegionSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		jobs:   jobs,
		assets: assets,
		gen:    gen,
		events: pub,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, opts.MaxConcurrent),
	}
}

type Request struct {
	ImageID     string          `json:"imageId"`
	Regions     []editor.Region `json:"regions"`
	Instruction string          `json:"instruction"`
}

// Submit validates the request, records a queued job and starts the model call
// in the background. The returned job reflects the queued state.
func (s *Service) Submit(ctx context.Context, sessionID string, req Request) (*store.Job, error) {
	info, err := s.assets.Stat(req.ImageID)
	if err != nil {
		if errors.Is(err, asset.ErrNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("stat image: %w", err)
	}

	regions, err := s.sanitize(req.Regions, info)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 && strings.TrimSpace(req.Instruction) == "" {
		return nil, ErrNoRegions
	}

	now := time.Now().UTC()
	job := &store.Job{
		ID:          typeid.NewJobID(),
		SessionID:   sessionID,
		ImageID:     req.ImageID,
		Regions:     regions,
		Instruction: req.Instruction,
		Model:       s.gen.Name(),
		Status:      store.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.publish(job)

	running := *job
	running.Regions = slices.Clone(regions)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(&running)
	}()

	slog.Info("repair queued", "job", job.ID, "session", sessionID, "regions", len(regions))
	return job, nil
}

// sanitize clamps regions to the image and rejects any that end up at or below
// the minimum size, mirroring the editor's commit rule.
func (s *Service) sanitize(regions []editor.Region, info *asset.Info) ([]editor.Region, error) {
	if len(regions) > maxRegions {
		return nil, fmt.Errorf("%w: at most %d regions", document.ErrInvalidRegion, maxRegions)
	}
	native := editor.Size{Width: float64(info.Width), Height: float64(info.Height)}
	img := &document.ImageInfo{AssetID: info.ID, Width: info.Width, Height: info.Height}

	out := make([]editor.Region, 0, len(regions))
	for i, r := range regions {
		if err := document.CheckRegion(r, img); err != nil {
			return nil, fmt.Errorf("region %d: %w", i+1, err)
		}
		c := r.ClampTo(native)
		if c.Width <= s.opts.MinRegionSize || c.Height <= s.opts.MinRegionSize {
			return nil, fmt.Errorf("region %d: %w: smaller than %v pixels", i+1, document.ErrInvalidRegion, s.opts.MinRegionSize)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) run(job *store.Job) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-s.ctx.Done():
		s.fail(job, s.ctx.Err(), "")
		return
	}

	job.Status = store.StatusRunning
	s.save(job)

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, err := s.call(ctx, job)
	if err != nil {
		s.fail(job, err, "")
		return
	}
	if !res.HasImage() {
		s.fail(job, genai.ErrNoImage, res.Text)
		return
	}

	info, err := s.storeResult(job, res.Image)
	if err != nil {
		s.fail(job, err, res.Text)
		return
	}

	job.Status = store.StatusSucceeded
	job.ResultID = info.ID
	job.ResultURL = info.URL
	job.ModelText = res.Text
	s.save(job)
	slog.Info("repair succeeded", "job", job.ID, "result", info.ID, "duration", time.Since(start))
}

func (s *Service) call(ctx context.Context, job *store.Job) (*genai.Result, error) {
	src, err := s.assets.Load(job.ImageID)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	prepared, err := genai.PrepareImage(src, s.opts.MaxSendDim)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	// The model sees the downscaled image, so the coordinates must match it.
	regions := genai.ScaleRegions(job.Regions, prepared.Scale)
	job.Prompt = prompt.Build(job.Instruction, prepared.Size, regions)

	return s.gen.Repair(ctx, genai.Request{
		Image:  prepared.Data,
		MIME:   prepared.MIME,
		Prompt: job.Prompt,
	})
}

// storeResult saves the model output at the source image's native size so the
// result lines up pixel for pixel with the original.
func (s *Service) storeResult(job *store.Job, data []byte) (*asset.Info, error) {
	img, err := s.assets.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	src, err := s.assets.Stat(job.ImageID)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if b := img.Bounds(); b.Dx() != src.Width || b.Dy() != src.Height {
		img = imaging.Resize(img, src.Width, src.Height, imaging.Lanczos)
	}
	return s.assets.Save(typeid.PrefixResult, img, "")
}

func (s *Service) fail(job *store.Job, err error, modelText string) {
	category := genai.Classify(err)
	job.Status = store.StatusFailed
	job.ErrorKind = string(category)
	job.Error = category.Message()
	job.ModelText = modelText
	s.save(job)
	slog.Warn("repair failed", "job", job.ID, "kind", category, "error", err)
}

func (s *Service) save(job *store.Job) {
	job.UpdatedAt = time.Now().UTC()
	// The request context is gone by now; use a short independent one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.Update(ctx, job); err != nil {
		slog.Error("update job", "error", err, "job", job.ID)
	}
	s.publish(job)
}

func (s *Service) publish(job *store.Job) {
	if s.events != nil {
		s.events.Publish(job.SessionID, events.TypeJobUpdate, job)
	}
}

// Get returns a job owned by the session.
func (s *Service) Get(ctx context.Context, sessionID, jobID string) (*store.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, sessionID string, limit int) ([]store.Job, error) {
	jobs, err := s.jobs.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return jobs, nil
}

// Preview renders the regions onto the image the same way the browser overlay
// does.
func (s *Service) Preview(imageID string, regions []editor.Region) (image.Image, error) {
	img, err := s.assets.Load(imageID)
	if err != nil {
		if errors.Is(err, asset.ErrNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	b := img.Bounds()
	native := editor.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	cmds := editor.CompileOverlay(native, regions, nil, editor.DefaultStyle())
	return editor.Composite(img, cmds), nil
}

// Close cancels running model calls and waits for their jobs to be recorded.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every submitted job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
