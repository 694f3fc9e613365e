package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thriftkids/marketplace/internal/events"
	"github.com/thriftkids/marketplace/internal/listing"
	"github.com/thriftkids/marketplace/internal/listing/repository"
	"github.com/thriftkids/marketplace/internal/storage"
	"github.com/thriftkids/marketplace/pkg/logger"
	"github.com/thriftkids/marketplace/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrValidation marks a request missing its title or image.
	ErrValidation = errors.New("title and image required")
	// ErrUpload marks a failed image upload. No listing is created.
	ErrUpload = errors.New("image upload failed")

	errRecordsUnavailable = errors.New("record store not configured")
	errEventsUnavailable  = errors.New("event sink not configured")
)

// Description sources, as reported in metrics.
const (
	SourceManual    = "manual"
	SourceGenerated = "generated"
	SourceTemplate  = "template"
)

// ObjectStore persists an image and returns a reference to it.
type ObjectStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error)
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// EventSink appends analytics events.
type EventSink interface {
	Log(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// Image is the uploaded file of a create request.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateInput is a create-listing request. Only Title and Image are required.
type CreateInput struct {
	Title       string
	Size        string
	AgeGroup    string
	Condition   string
	Notes       string
	Description string
	Image       *Image
}

// Options wires the collaborators. A nil Objects, Records, Model or Events
// means that backend is not configured and the workflow degrades around it.
type Options struct {
	Objects ObjectStore
	// Local receives images when Objects is nil. Defaults to the OS temp dir.
	Local   ObjectStore
	Records repository.Repository
	// Model must only be set when a credential is configured.
	Model        Generator
	Events       EventSink
	UseAgent     bool
	ModelTimeout time.Duration
	Now          func() time.Time
}

// Service implements the create and list listing workflows.
type Service struct {
	objects      ObjectStore
	local        ObjectStore
	records      repository.Repository
	model        Generator
	events       EventSink
	useAgent     bool
	modelTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
	tracer       trace.Tracer
}

func New(opts Options) *Service {
	s := &Service{
		objects:      opts.Objects,
		local:        opts.Local,
		records:      opts.Records,
		model:        opts.Model,
		events:       opts.Events,
		useAgent:     opts.UseAgent,
		modelTimeout: opts.ModelTimeout,
		now:          opts.Now,
		log:          logger.Named("workflow"),
		tracer:       otel.Tracer("thriftkids/listing"),
	}
	if s.local == nil {
		s.local = storage.NewLocalStore("")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.modelTimeout <= 0 {
		s.modelTimeout = 30 * time.Second
	}
	return s
}

// GenerationEnabled reports whether blank descriptions are sent to the model.
func (s *Service) GenerationEnabled() bool {
	return s.useAgent && s.model != nil
}

// Create validates the request, stores the image, picks a description and
// persists the listing. Only ErrValidation and ErrUpload are returned; every
// later failure degrades and the listing is still returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "Workflow CreateListing")
	defer span.End()

	if in.Title == "" || in.Image == nil || in.Image.Body == nil {
		span.SetStatus(codes.Error, ErrValidation.Error())
		return nil, ErrValidation
	}
	generationEnabled := s.GenerationEnabled()

	imageURL, err := s.storeImage(ctx, in.Image)
	if err != nil {
		s.log.Errorf("image upload error: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload")
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	description, source := s.describe(ctx, in, generationEnabled)
	metrics.DescriptionSource.WithLabelValues(source).Inc()
	span.SetAttributes(attribute.String("listing.description_source", source))

	l := &listing.Listing{
		Title:       in.Title,
		Size:        in.Size,
		AgeGroup:    in.AgeGroup,
		Condition:   in.Condition,
		Notes:       in.Notes,
		Description: description,
		ImageURL:    imageURL,
	}

	if err := s.persist(ctx, l); err != nil {
		// the caller still gets a listing even though nothing stored it
		s.log.Warnf("failed to persist listing (returning unsaved object): %v", err)
		metrics.Degradations.WithLabelValues("persistence").Inc()
		metrics.ListingsCreated.WithLabelValues("false").Inc()
		l.ID = uuid.NewString()
		l.CreatedAt = listing.FormatTimestamp(s.now())
	} else {
		metrics.ListingsCreated.WithLabelValues("true").Inc()
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))

	if err := s.emit(ctx, events.CreateListing, map[string]interface{}{"id": l.ID, "title": l.Title}); err != nil {
		s.log.Debugf("create_listing event dropped: %v", err)
	}
	return l, nil
}

// List returns listings newest first. It never fails: an unavailable or
// failing record store yields an empty slice.
func (s *Service) List(ctx context.Context) []*listing.Listing {
	ctx, span := s.tracer.Start(ctx, "Workflow ListListings")
	defer span.End()

	out, err := s.query(ctx)
	if err != nil {
		s.log.Warnf("list listings error (falling back to empty): %v", err)
		metrics.Degradations.WithLabelValues("list").Inc()
		span.RecordError(err)
		return []*listing.Listing{}
	}
	span.SetAttributes(attribute.Int("listing.count", len(out)))
	if err := s.emit(ctx, events.ListListings, map[string]interface{}{"count": len(out)}); err != nil {
		s.log.Debugf("list_listings event dropped: %v", err)
	}
	return out
}

func (s *Service) storeImage(ctx context.Context, img *Image) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Workflow StoreImage")
	defer span.End()
	if s.objects != nil {
		return s.objects.Upload(ctx, img.Body, img.Size, img.Filename, img.ContentType)
	}
	span.SetAttributes(attribute.Bool("storage.local_fallback", true))
	return s.local.Upload(ctx, img.Body, img.Size, img.Filename, img.ContentType)
}

// describe picks the description: manual text, then generated text when
// enabled, then the template. Generation failures fall through to the template.
func (s *Service) describe(ctx context.Context, in CreateInput, generationEnabled bool) (string, string) {
	if manual := strings.TrimSpace(in.Description); manual != "" {
		return manual, SourceManual
	}
	fallback := listing.FallbackDescription(in.Title, in.Size, in.Notes)
	if !generationEnabled {
		return fallback, SourceTemplate
	}
	prompt := listing.DescriptionPrompt(in.Title, in.Size, in.AgeGroup, in.Condition, in.Notes)
	text, err := s.generate(ctx, prompt)
	if err != nil {
		s.log.Warnf("AI call failed: %v", err)
		metrics.Degradations.WithLabelValues("generation").Inc()
		return fallback, SourceTemplate
	}
	return text, SourceGenerated
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Workflow GenerateDescription")
	defer span.End()
	text, err := s.model.Generate(ctx, prompt, s.modelTimeout)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return text, nil
}

func (s *Service) persist(ctx context.Context, l *listing.Listing) error {
	ctx, span := s.tracer.Start(ctx, "Workflow PersistListing")
	defer span.End()
	if s.records == nil {
		return errRecordsUnavailable
	}
	if err := s.records.Insert(ctx, l); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Service) query(ctx context.Context) ([]*listing.Listing, error) {
	if s.records == nil {
		return nil, errRecordsUnavailable
	}
	out, err := s.records.ListNewestFirst(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*listing.Listing{}
	}
	return out, nil
}

// emit appends an event; the error is returned so callers decide, visibly,
// to drop it.
func (s *Service) emit(ctx context.Context, eventType string, payload map[string]interface{}) error {
	if s.events == nil {
		metrics.Events.WithLabelValues(eventType, "skipped").Inc()
		return errEventsUnavailable
	}
	if err := s.events.Log(ctx, eventType, payload); err != nil {
		metrics.Events.WithLabelValues(eventType, "error").Inc()
		metrics.Degradations.WithLabelValues("events").Inc()
		return err
	}
	metrics.Events.WithLabelValues(eventType, "ok").Inc()
	return nil
}

// ErrModelNotConfigured is returned by ProbeModel when no credential is set.
var ErrModelNotConfigured = errors.New("VERTEX_API_KEY not configured")

// ProbePrompt is the fixed prompt used to check the model is reachable.
const ProbePrompt = "Write a friendly one-sentence listing description for a blue baby romper, size 6-12 months."

// ProbeModel sends ProbePrompt to the model, ignoring the feature flag.
func (s *Service) ProbeModel(ctx context.Context) (string, error) {
	if s.model == nil {
		return "", ErrModelNotConfigured
	}
	return s.model.Generate(ctx, ProbePrompt, s.modelTimeout)
}
