package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/filter"
	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/profile"
	"github.com/kpetrov/jobscout/internal/source"
	"github.com/kpetrov/jobscout/internal/store"
)

type fakeSource struct {
	name     string
	postings []*jobs.Posting
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, _ source.Query) ([]*jobs.Posting, error) {
	return f.postings, f.err
}

type fakeStorage struct {
	existing map[string]bool
	inserted []*jobs.Posting
	runs     []store.Run
}

func (f *fakeStorage) ExistingKeys(_ context.Context) (map[string]bool, error) {
	if f.existing == nil {
		return map[string]bool{}, nil
	}
	return f.existing, nil
}

func (f *fakeStorage) InsertBatch(_ context.Context, postings []*jobs.Posting) (int, error) {
	f.inserted = append(f.inserted, postings...)
	return len(postings), nil
}

func (f *fakeStorage) LogRun(_ context.Context, run store.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		Skills:    []string{"go", "python", "kubernetes"},
		Seniority: profile.DefaultSeniority(),
		Sponsorship: map[string]int{
			"stripe": 120,
		},
	}
}

func goodPosting(n int) *jobs.Posting {
	return &jobs.Posting{
		Source:      "Fake",
		SourceID:    fmt.Sprintf("fake_%d", n),
		Title:       fmt.Sprintf("Software Engineer, New Grad %d", n),
		Company:     "Stripe",
		Location:    "San Francisco, CA",
		Description: "Work with Go, Python and Kubernetes.",
		URL:         fmt.Sprintf("https://example.com/%d", n),
		PostedAt:    time.Now().UTC(),
	}
}

func newTestPipeline(sources []source.Source, storage Storage) *Pipeline {
	chain := filter.NewChain(zap.NewNop())
	return New(sources, chain, testProfile(), storage, nil, nil, zap.NewNop())
}

func TestRunContainsSourceFailure(t *testing.T) {
	ok := &fakeSource{name: "OK", postings: []*jobs.Posting{goodPosting(1)}}
	bad := &fakeSource{name: "Broken", err: fmt.Errorf("broken: %w", source.ErrTransport)}
	storage := &fakeStorage{}

	report, err := newTestPipeline([]source.Source{ok, bad}, storage).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 1 {
		t.Fatalf("Fetched = %d, want 1", report.Fetched)
	}
	if report.Sources["Broken"].Err == "" {
		t.Fatal("failing source missing from report")
	}
	if report.Sources["OK"].Fetched != 1 {
		t.Fatalf("OK source report = %+v", report.Sources["OK"])
	}
	if len(storage.inserted) != 1 {
		t.Fatalf("inserted %d postings, want 1", len(storage.inserted))
	}
}

func TestRunDropsZeroScores(t *testing.T) {
	dealbreaker := goodPosting(2)
	dealbreaker.Description = "Requires US citizenship. Work with Go."

	src := &fakeSource{name: "Fake", postings: []*jobs.Posting{goodPosting(1), dealbreaker}}
	storage := &fakeStorage{}

	report, err := newTestPipeline([]source.Source{src}, storage).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 2 || report.Scored != 1 {
		t.Fatalf("fetched/scored = %d/%d, want 2/1", report.Fetched, report.Scored)
	}
	for _, p := range storage.inserted {
		if p.Score <= 0 {
			t.Fatalf("zero-score posting persisted: %+v", p)
		}
	}
}

func TestRunDedupsWithinRun(t *testing.T) {
	// Same offer from two sources; the higher-scored copy lives on. The
	// second copy names sponsorship in the body, which scores higher.
	a := goodPosting(1)
	b := goodPosting(1)
	b.Source = "Other"
	b.Description = "Work with Go, Python and Kubernetes. Visa sponsorship available."

	src := &fakeSource{name: "Fake", postings: []*jobs.Posting{a, b}}
	storage := &fakeStorage{}

	_, err := newTestPipeline([]source.Source{src}, storage).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(storage.inserted) != 1 {
		t.Fatalf("inserted %d postings, want 1", len(storage.inserted))
	}
	if storage.inserted[0].Source != "Other" {
		t.Fatalf("kept copy from %q, want the higher-scored one", storage.inserted[0].Source)
	}
}

func TestRunSkipsKnownKeys(t *testing.T) {
	known := goodPosting(1)
	storage := &fakeStorage{existing: map[string]bool{known.IdentityKey(): true}}
	src := &fakeSource{name: "Fake", postings: []*jobs.Posting{goodPosting(1), goodPosting(2)}}

	report, err := newTestPipeline([]source.Source{src}, storage).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(storage.inserted) != 1 {
		t.Fatalf("inserted %d postings, want 1", len(storage.inserted))
	}
	if report.Stored != 1 {
		t.Fatalf("Stored = %d, want 1", report.Stored)
	}
}

func TestRunLogsHistory(t *testing.T) {
	src := &fakeSource{name: "Fake", postings: []*jobs.Posting{goodPosting(1)}}
	storage := &fakeStorage{}

	if _, err := newTestPipeline([]source.Source{src}, storage).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(storage.runs) != 1 {
		t.Fatalf("logged %d runs, want 1", len(storage.runs))
	}
	if storage.runs[0].Stored != 1 {
		t.Fatalf("run record = %+v", storage.runs[0])
	}
}

func TestRunSurvivesEmptySources(t *testing.T) {
	storage := &fakeStorage{}
	report, err := newTestPipeline(nil, storage).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 0 || report.Stored != 0 {
		t.Fatalf("report = %+v", report)
	}
	if errors.Is(err, source.ErrTransport) {
		t.Fatal("unexpected transport error")
	}
}
