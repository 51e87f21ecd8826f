package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/pipeline"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		StartedAt:  time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 28, 8, 3, 0, 0, time.UTC),
		Fetched:    120,
		Filtered:   60,
		Scored:     25,
		Stored:     3,
		Sources: map[string]pipeline.SourceReport{
			"Greenhouse": {Fetched: 80},
			"Remotive":   {Fetched: 40},
			"Adzuna":     {Err: "Adzuna: authentication failed: status 401"},
		},
		TopNew: []*jobs.Posting{
			{
				Title: "Software Engineer, New Grad", Company: "Stripe",
				Location: "San Francisco, CA", Score: 84,
				URL: "https://stripe.com/jobs/1",
				Breakdown: jobs.Breakdown{
					Base: 10, Skills: 20, Seniority: 25, Sponsorship: 16,
					CompanyTier: 13, MatchedSkills: []string{"go", "python"},
				},
			},
			{
				Title: "Backend Engineer", Company: "Ramp",
				Location: "New York, NY", Score: 61,
				URL: "https://ramp.com/jobs/2",
			},
		},
	}
}

func TestBuildDigest(t *testing.T) {
	digest := BuildDigest(sampleReport())

	for _, want := range []string{
		"fetched 120, kept 60 after filters, 25 scored, 3 new",
		"[84] Software Engineer, New Grad at Stripe",
		"skills 20, seniority 25, sponsorship 16, tier 13",
		"(go, python)",
		"Adzuna",
		"failed: Adzuna: authentication failed",
		"https://ramp.com/jobs/2",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}

	// Stripe scored higher, so it must come first.
	if strings.Index(digest, "Stripe") > strings.Index(digest, "Ramp") {
		t.Fatal("top postings out of order")
	}
}

func TestBuildDigestEmptyRun(t *testing.T) {
	report := sampleReport()
	report.Stored = 0
	if got := BuildDigest(report); got != "" {
		t.Fatalf("digest for empty run = %q, want empty", got)
	}
	if got := BuildDigest(nil); got != "" {
		t.Fatalf("digest for nil report = %q, want empty", got)
	}
}

func TestBuildPending(t *testing.T) {
	pending := []*jobs.Posting{
		{
			Title: "Software Engineer, New Grad", Company: "Stripe",
			Location: "San Francisco, CA", Score: 84,
			URL:       "https://stripe.com/jobs/1",
			Breakdown: jobs.Breakdown{Base: 10, Skills: 20, Seniority: 25, Sponsorship: 16, CompanyTier: 13},
		},
		{
			Title: "Backend Engineer", Company: "Ramp",
			Location: "New York, NY", Score: 61,
			URL: "https://ramp.com/jobs/2",
		},
	}

	got := BuildPending(pending)
	for _, want := range []string{
		"2 new postings awaiting review:",
		"1. [84] Software Engineer, New Grad at Stripe",
		"2. [61] Backend Engineer at Ramp",
		"https://ramp.com/jobs/2",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("pending digest missing %q:\n%s", want, got)
		}
	}
}

func TestBuildPendingEmpty(t *testing.T) {
	if got := BuildPending(nil); got != "" {
		t.Fatalf("pending digest for no postings = %q, want empty", got)
	}
}

func TestBuildDigestCapsTopList(t *testing.T) {
	report := sampleReport()
	report.TopNew = nil
	for i := 0; i < 10; i++ {
		report.TopNew = append(report.TopNew, &jobs.Posting{
			Title: "Software Engineer", Company: "Acme", Score: 50 - i,
		})
	}
	digest := BuildDigest(report)
	if strings.Contains(digest, "6. ") {
		t.Fatal("digest lists more than five postings")
	}
}
