package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thriftkids/marketplace/internal/events"
	"github.com/thriftkids/marketplace/internal/listing"
	"github.com/thriftkids/marketplace/internal/listing/repository"
	"github.com/thriftkids/marketplace/internal/storage"
	"github.com/thriftkids/marketplace/pkg/metrics"
)

type fakeObjects struct {
	ref   string
	err   error
	calls int
	names []string
	body  []byte
}

func (f *fakeObjects) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error) {
	f.calls++
	f.names = append(f.names, filename)
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.body = b
	return f.ref, nil
}

type fakeModel struct {
	text    string
	err     error
	calls   int
	prompt  string
	timeout time.Duration
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	f.calls++
	f.prompt = prompt
	f.timeout = timeout
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeRecords struct {
	repository.Repository
	insertErr error
	listErr   error
	inserts   int
	lists     int
}

func (f *fakeRecords) Insert(ctx context.Context, l *listing.Listing) error {
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Repository.Insert(ctx, l)
}

func (f *fakeRecords) ListNewestFirst(ctx context.Context) ([]*listing.Listing, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListNewestFirst(ctx)
}

type loggedEvent struct {
	eventType string
	payload   map[string]interface{}
}

type fakeEvents struct {
	err    error
	logged []loggedEvent
}

func (f *fakeEvents) Log(ctx context.Context, eventType string, payload map[string]interface{}) error {
	f.logged = append(f.logged, loggedEvent{eventType: eventType, payload: payload})
	return f.err
}

type fixture struct {
	objects *fakeObjects
	model   *fakeModel
	records *fakeRecords
	events  *fakeEvents
}

func newFixture() *fixture {
	return &fixture{
		objects: &fakeObjects{ref: "https://cdn.example.com/images/abc_romper.jpg"},
		model:   &fakeModel{text: "A soft blue romper for little explorers."},
		records: &fakeRecords{Repository: repository.NewMemoryRepo()},
		events:  &fakeEvents{},
	}
}

func (f *fixture) service(useAgent bool) *Service {
	return New(Options{
		Objects:      f.objects,
		Records:      f.records,
		Model:        f.model,
		Events:       f.events,
		UseAgent:     useAgent,
		ModelTimeout: 5 * time.Second,
	})
}

func image() *Image {
	return &Image{Filename: "romper.jpg", ContentType: "image/jpeg", Size: 5, Body: strings.NewReader("bytes")}
}

func TestCreateRejectsMissingTitleOrImage(t *testing.T) {
	cases := map[string]CreateInput{
		"missing title":      {Image: image()},
		"missing image":      {Title: "Blue Romper"},
		"image without body": {Title: "Blue Romper", Image: &Image{Filename: "x.jpg"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			svc := f.service(true)

			l, err := svc.Create(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
			require.Nil(t, l)
			assert.Zero(t, f.objects.calls)
			assert.Zero(t, f.model.calls)
			assert.Zero(t, f.records.inserts)
			assert.Empty(t, f.events.logged)
		})
	}
}

func TestCreateUsesManualDescriptionVerbatim(t *testing.T) {
	for _, useAgent := range []bool{true, false} {
		f := newFixture()
		svc := f.service(useAgent)

		l, err := svc.Create(context.Background(), CreateInput{
			Title:       "Blue Romper",
			Size:        "6-12m",
			Description: "Hand-written by the seller.",
			Image:       image(),
		})
		require.NoError(t, err)
		require.Equal(t, "Hand-written by the seller.", l.Description)
		require.Zero(t, f.model.calls, "manual descriptions never reach the model")
	}
}

func TestCreateTrimsManualDescription(t *testing.T) {
	f := newFixture()
	l, err := f.service(false).Create(context.Background(), CreateInput{Title: "Hat", Description: "  Warm hat \n", Image: image()})
	require.NoError(t, err)
	require.Equal(t, "Warm hat", l.Description)
}

func TestCreateBlankDescriptionGenerationDisabledUsesTemplate(t *testing.T) {
	f := newFixture()
	svc := f.service(false)

	l, err := svc.Create(context.Background(), CreateInput{
		Title:       "Blue Romper",
		Size:        "6-12m",
		Description: "   \t ",
		Image:       image(),
	})
	require.NoError(t, err)
	require.Equal(t, "Blue Romper — Size 6-12m. ", l.Description)
	require.Zero(t, f.model.calls)
}

func TestCreateWithoutCredentialUsesTemplate(t *testing.T) {
	f := newFixture()
	svc := New(Options{Objects: f.objects, Records: f.records, UseAgent: true})
	require.False(t, svc.GenerationEnabled())

	l, err := svc.Create(context.Background(), CreateInput{Title: "Coat", Size: "2T", Notes: "wool", Image: image()})
	require.NoError(t, err)
	require.Equal(t, "Coat — Size 2T. wool", l.Description)
}

func TestCreateGeneratesDescription(t *testing.T) {
	f := newFixture()
	svc := f.service(true)
	require.True(t, svc.GenerationEnabled())
	before := testutil.ToFloat64(metrics.DescriptionSource.WithLabelValues(SourceGenerated))

	l, err := svc.Create(context.Background(), CreateInput{
		Title:     "Blue Romper",
		Size:      "6-12m",
		AgeGroup:  "Infant",
		Condition: "Like new",
		Notes:     "no stains",
		Image:     image(),
	})
	require.NoError(t, err)
	require.Equal(t, "A soft blue romper for little explorers.", l.Description)
	require.Equal(t, 1, f.model.calls)
	require.Equal(t, 5*time.Second, f.model.timeout)
	require.Equal(t, listing.DescriptionPrompt("Blue Romper", "6-12m", "Infant", "Like new", "no stains"), f.model.prompt)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.DescriptionSource.WithLabelValues(SourceGenerated)))
}

func TestCreateGenerationFailureFallsBackToTemplate(t *testing.T) {
	f := newFixture()
	f.model.err = errors.New("deadline exceeded")
	svc := f.service(true)
	before := testutil.ToFloat64(metrics.Degradations.WithLabelValues("generation"))

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Size: "6-12m", Image: image()})
	require.NoError(t, err)
	require.Equal(t, "Blue Romper — Size 6-12m. ", l.Description)
	require.NotEmpty(t, l.ID)
	require.Equal(t, 1, f.records.inserts)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.Degradations.WithLabelValues("generation")))
}

func TestCreateUploadFailureCreatesNothing(t *testing.T) {
	f := newFixture()
	f.objects.err = errors.New("network unreachable")
	svc := f.service(true)

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.ErrorIs(t, err, ErrUpload)
	require.Nil(t, l)
	require.Zero(t, f.model.calls)
	require.Zero(t, f.records.inserts)
	require.Empty(t, f.events.logged)
}

func TestCreateStoresImageAndPersists(t *testing.T) {
	f := newFixture()
	svc := f.service(false)

	l, err := svc.Create(context.Background(), CreateInput{
		Title:     "Blue Romper",
		Size:      "6-12m",
		AgeGroup:  "Infant",
		Condition: "Good",
		Notes:     "n",
		Image:     image(),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"romper.jpg"}, f.objects.names)
	require.Equal(t, "bytes", string(f.objects.body))
	require.Equal(t, f.objects.ref, l.ImageURL)
	require.NotEmpty(t, l.ID)
	require.NotEmpty(t, l.CreatedAt)

	stored, err := f.records.Repository.ListNewestFirst(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, *l, *stored[0])
}

func TestCreateWithoutObjectStoreWritesLocally(t *testing.T) {
	dir := t.TempDir()
	f := newFixture()
	svc := New(Options{Local: storage.NewLocalStore(dir), Records: f.records})

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(l.ImageURL, "file://"+dir), l.ImageURL)
	require.True(t, strings.HasSuffix(l.ImageURL, "_romper.jpg"))
}

func TestCreateWithoutRecordStoreSynthesizesListing(t *testing.T) {
	f := newFixture()
	now := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)
	svc := New(Options{Objects: f.objects, Events: f.events, Now: func() time.Time { return now }})

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.NoError(t, err)
	require.NotEmpty(t, l.ID)
	require.Equal(t, "2024-07-04T08:00:00Z", l.CreatedAt)

	require.Empty(t, svc.List(context.Background()))
}

func TestCreateInsertFailureSynthesizesListing(t *testing.T) {
	f := newFixture()
	f.records.insertErr = errors.New("write concern timeout")
	svc := f.service(false)
	before := testutil.ToFloat64(metrics.ListingsCreated.WithLabelValues("false"))

	first, err := svc.Create(context.Background(), CreateInput{Title: "A", Image: image()})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateInput{Title: "B", Image: image()})
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.NotEmpty(t, first.CreatedAt)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.ListingsCreated.WithLabelValues("false")))
}

func TestCreateEmitsEvent(t *testing.T) {
	f := newFixture()
	svc := f.service(false)

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.NoError(t, err)
	require.Len(t, f.events.logged, 1)
	require.Equal(t, events.CreateListing, f.events.logged[0].eventType)
	require.Equal(t, map[string]interface{}{"id": l.ID, "title": "Blue Romper"}, f.events.logged[0].payload)
}

func TestCreateIgnoresEventFailure(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("redis down")
	svc := f.service(false)

	l, err := svc.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.NoError(t, err)
	require.NotNil(t, l)

	svcNoEvents := New(Options{Objects: f.objects, Records: f.records})
	_, err = svcNoEvents.Create(context.Background(), CreateInput{Title: "Blue Romper", Image: image()})
	require.NoError(t, err)
}

func TestListNewestFirstAndIdempotent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo := repository.NewMemoryRepoWithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	})
	f := newFixture()
	svc := New(Options{Objects: f.objects, Records: repo, Events: f.events})
	ctx := context.Background()
	for _, title := range []string{"t1", "t2", "t3"} {
		_, err := svc.Create(ctx, CreateInput{Title: title, Image: image()})
		require.NoError(t, err)
	}

	first := svc.List(ctx)
	require.Len(t, first, 3)
	require.Equal(t, "t3", first[0].Title)
	require.Equal(t, "t2", first[1].Title)
	require.Equal(t, "t1", first[2].Title)

	second := svc.List(ctx)
	require.Equal(t, first, second)

	last := f.events.logged[len(f.events.logged)-1]
	require.Equal(t, events.ListListings, last.eventType)
	require.Equal(t, map[string]interface{}{"count": 3}, last.payload)
}

func TestListStoreFailureReturnsEmpty(t *testing.T) {
	f := newFixture()
	f.records.listErr = errors.New("connection refused")
	svc := f.service(false)

	out := svc.List(context.Background())
	require.NotNil(t, out)
	require.Empty(t, out)
	require.Empty(t, f.events.logged)
}

func TestProbeModel(t *testing.T) {
	svc := New(Options{})
	_, err := svc.ProbeModel(context.Background())
	require.ErrorIs(t, err, ErrModelNotConfigured)

	f := newFixture()
	// the feature flag does not gate the probe
	out, err := f.service(false).ProbeModel(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.model.text, out)
	require.Equal(t, ProbePrompt, f.model.prompt)
}
