package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
)

const simplifyWindow = 7 * 24 * time.Hour

// Simplify reads one of the community-curated listing feeds published as a
// static JSON file on GitHub. The feed is append-only and months deep, so
// only entries posted within the last seven days are taken; closed or
// hidden entries are dropped.
type Simplify struct {
	client  *resty.Client
	logger  *zap.Logger
	name    string
	tag     string
	feedURL string
	now     func() time.Time
}

func NewSimplifyNewGrad(logger *zap.Logger) *Simplify {
	return &Simplify{
		client:  newClient(30 * time.Second),
		logger:  logger.Named("simplify"),
		name:    "Simplify New Grad",
		tag:     "new_grad",
		feedURL: "https://raw.githubusercontent.com/SimplifyJobs/New-Grad-Positions/dev/.github/scripts/listings.json",
		now:     time.Now,
	}
}

func NewSimplifyInternships(logger *zap.Logger) *Simplify {
	return &Simplify{
		client:  newClient(30 * time.Second),
		logger:  logger.Named("simplify"),
		name:    "Simplify Internships",
		tag:     "intern",
		feedURL: "https://raw.githubusercontent.com/SimplifyJobs/Summer2026-Internships/dev/.github/scripts/listings.json",
		now:     time.Now,
	}
}

func (s *Simplify) Name() string { return s.name }

func (s *Simplify) Fetch(ctx context.Context, _ Query) ([]*jobs.Posting, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.feedURL)
	if err := classify(s.Name(), resp, err); err != nil {
		return nil, err
	}

	feed := gjson.ParseBytes(resp.Body())
	if !feed.IsArray() {
		return nil, fmt.Errorf("%s: %w: feed is not an array", s.Name(), ErrParse)
	}

	cutoff := s.now().Add(-simplifyWindow)
	var out []*jobs.Posting
	seen := make(map[string]bool)

	feed.ForEach(func(_, item gjson.Result) bool {
		p := s.parseListing(item, cutoff)
		if p == nil || seen[p.SourceID] {
			return true
		}
		seen[p.SourceID] = true
		out = append(out, p)
		return true
	})

	s.logger.Info("fetched", zap.String("feed", s.tag), zap.Int("postings", len(out)))
	return out, nil
}

func (s *Simplify) parseListing(item gjson.Result, cutoff time.Time) *jobs.Posting {
	if item.Get("active").Exists() && !item.Get("active").Bool() {
		return nil
	}
	if item.Get("is_visible").Exists() && !item.Get("is_visible").Bool() {
		return nil
	}

	// date_posted is epoch seconds. An entry with no verifiable date is
	// dropped rather than assumed fresh.
	postedEpoch := item.Get("date_posted").Int()
	if postedEpoch <= 0 {
		return nil
	}
	posted := time.Unix(postedEpoch, 0).UTC()
	if posted.Before(cutoff) {
		return nil
	}

	company := item.Get("company_name").String()
	title := item.Get("title").String()
	if company == "" || title == "" {
		return nil
	}

	var locations []string
	item.Get("locations").ForEach(func(_, loc gjson.Result) bool {
		if len(locations) < 3 {
			locations = append(locations, loc.String())
		}
		return true
	})

	url := item.Get("url").String()
	if url == "" {
		url = item.Get("company_url").String()
	}

	id := item.Get("id").String()
	if id == "" {
		id = fmt.Sprintf("%s_%s", trunc(company, 15), trunc(title, 20))
	}

	desc := fmt.Sprintf("%s at %s.", title, company)
	if sponsorship := item.Get("sponsorship").String(); sponsorship != "" {
		desc += " Sponsorship: " + sponsorship + "."
	}

	return &jobs.Posting{
		Source:      s.Name(),
		SourceID:    trunc(strings.ToLower(strings.ReplaceAll(fmt.Sprintf("simplify_%s_%s", s.tag, id), " ", "_")), 80),
		Title:       title,
		Company:     company,
		Category:    item.Get("category").String(),
		Location:    strings.Join(locations, ", "),
		Description: desc,
		URL:         url,
		PostedAt:    posted,
	}
}

func trunc(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
