package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/kpetrov/jobscout/internal/jobs"
)

// Categories kept when a source provides one. Postings without a category
// fall back to title keyword matching.
var allowedCategories = []string{
	"software engineering", "software", "data science",
	"machine learning", "ai", "artificial intelligence",
}

var technicalTitleKeywords = []string{
	"software", "engineer", "developer", "swe", "sde",
	"backend", "frontend", "full stack", "fullstack", "full-stack",
	"devops", "sre", "cloud", "infrastructure", "platform",
	"machine learning", "data scientist", "data engineer",
	"research scientist", "applied scientist", "nlp", "computer vision",
	"security engineer", "systems engineer",
}

// Location markers of non-US jurisdictions. Matched against the lower-cased
// normalized location string.
var nonUSMarkers = []string{
	", canada", ", on,", ", bc,", ", ab,", ", qc,",
	"toronto", "vancouver", "montreal", "ottawa", "calgary",
	"ontario", "british columbia", "alberta", "quebec",
	", uk", "united kingdom", "england", ", gb",
	", germany", ", france", ", india", ", japan",
	", australia", ", singapore", ", ireland",
	", israel", ", netherlands", ", brazil",
}

var seniorityMarkers = []string{
	"senior", "sr.", "sr ", "staff", "principal", "lead",
	"director", "vp ", "head of", "chief", "manager",
	"executive", "distinguished",
}

type categoryFilter struct{}

// NewCategory keeps only software/data/ML postings, by category when the
// source provides one, by title keywords otherwise.
func NewCategory() Filter { return categoryFilter{} }

func (categoryFilter) Name() string { return "category" }

func (categoryFilter) Reject(p *jobs.Posting) string {
	if cat := strings.ToLower(strings.TrimSpace(p.Category)); cat != "" {
		for _, allowed := range allowedCategories {
			if strings.Contains(cat, allowed) {
				return ""
			}
		}
		return fmt.Sprintf("category %q not in allow-list", p.Category)
	}

	title := strings.ToLower(p.Title)
	for _, kw := range technicalTitleKeywords {
		if strings.Contains(title, kw) {
			return ""
		}
	}
	return "no technical title keyword"
}

type locationFilter struct{}

// NewLocation rejects postings located outside the US.
func NewLocation() Filter { return locationFilter{} }

func (locationFilter) Name() string { return "location" }

func (locationFilter) Reject(p *jobs.Posting) string {
	loc := strings.ToLower(p.Location)
	for _, marker := range nonUSMarkers {
		if strings.Contains(loc, marker) {
			return "non-US location: " + p.Location
		}
	}
	return ""
}

type seniorityFilter struct{}

// NewSeniority rejects senior/staff/lead/director titles. This runs before
// storage: such postings are dropped, not stored with a low score.
func NewSeniority() Filter { return seniorityFilter{} }

func (seniorityFilter) Name() string { return "seniority" }

func (seniorityFilter) Reject(p *jobs.Posting) string {
	title := strings.ToLower(p.Title)
	for _, marker := range seniorityMarkers {
		if strings.Contains(title, marker) {
			return "senior-level title marker: " + marker
		}
	}
	return ""
}

type freshnessFilter struct {
	windows map[string]time.Duration
	now     func() time.Time
}

// NewFreshness rejects postings older than their source's freshness window.
// Sources without a configured window pass unchecked, as do postings with
// no usable timestamp.
func NewFreshness(windows map[string]time.Duration) Filter {
	return &freshnessFilter{windows: windows, now: time.Now}
}

func (*freshnessFilter) Name() string { return "freshness" }

func (f *freshnessFilter) Reject(p *jobs.Posting) string {
	window, ok := f.windows[p.Source]
	if !ok || window <= 0 || p.PostedAt.IsZero() {
		return ""
	}
	if age := f.now().Sub(p.PostedAt); age > window {
		return fmt.Sprintf("posted %s ago, window %s", age.Round(time.Hour), window)
	}
	return ""
}
