package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
)

// leverSlugs holds known Lever board slugs where the obvious company-name
// slug does not match. Saves a 404 round-trip per company per run.
var leverSlugs = map[string]string{
	"scale ai": "scaleai",
	"aurora":   "auroratech",
}

type leverJob struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	Desc       string `json:"description"`
	CreatedAt  int64  `json:"createdAt"`
	Categories struct {
		Location string `json:"location"`
	} `json:"categories"`
}

// Lever scrapes the public postings API for a configured company roster.
// Each company gets at most two slug guesses; slugs that 404 or time out
// are cached as bad for the rest of the process.
type Lever struct {
	client    *resty.Client
	logger    *zap.Logger
	baseURL   string
	companies []string

	mu       sync.Mutex
	badSlugs map[string]bool
}

func NewLever(logger *zap.Logger, companies []string) *Lever {
	return &Lever{
		client:    newClient(defaultTimeout),
		logger:    logger.Named("lever"),
		baseURL:   "https://api.lever.co/v0/postings",
		companies: companies,
		badSlugs:  make(map[string]bool),
	}
}

func (l *Lever) Name() string { return "Lever" }

func (l *Lever) Fetch(ctx context.Context, _ Query) ([]*jobs.Posting, error) {
	var out []*jobs.Posting
	for _, company := range l.companies {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s: %w: %v", l.Name(), ErrTransport, ctx.Err())
		}
		postings := l.fetchCompany(ctx, company)
		out = append(out, postings...)
	}
	l.logger.Info("fetched", zap.Int("postings", len(out)), zap.Int("companies", len(l.companies)))
	return out, nil
}

// fetchCompany tries each candidate slug until one answers. All failures
// are skips; a company with no working slug simply yields nothing.
func (l *Lever) fetchCompany(ctx context.Context, company string) []*jobs.Posting {
	for _, slug := range candidateSlugs(company) {
		if l.isBad(slug) {
			continue
		}
		boardCtx, cancel := context.WithTimeout(ctx, boardTimeout)
		resp, err := l.client.R().
			SetContext(boardCtx).
			SetResult(&[]leverJob{}).
			Get(fmt.Sprintf("%s/%s?mode=json", l.baseURL, slug))
		cancel()

		if err != nil {
			l.markBad(slug)
			continue
		}
		if resp.StatusCode() == 404 {
			l.markBad(slug)
			continue
		}
		if resp.StatusCode() != 200 {
			continue
		}
		raw, ok := resp.Result().(*[]leverJob)
		if !ok || raw == nil || len(*raw) == 0 {
			continue
		}

		postings := make([]*jobs.Posting, 0, len(*raw))
		for _, j := range *raw {
			if j.Text == "" {
				continue
			}
			postings = append(postings, &jobs.Posting{
				Source:      l.Name(),
				SourceID:    fmt.Sprintf("lv_%s_%s", slug, j.ID),
				Title:       j.Text,
				Company:     company,
				Location:    j.Categories.Location,
				Description: normalize.StripHTML(j.Desc),
				URL:         j.HostedURL,
				PostedAt:    epochMillis(j.CreatedAt),
			})
		}
		return postings
	}
	return nil
}

// candidateSlugs derives up to two board slug guesses from a company name:
// the known alias or the compacted name, then a hyphenated variant.
func candidateSlugs(company string) []string {
	name := strings.ToLower(strings.TrimSpace(company))

	var slugs []string
	for key, slug := range leverSlugs {
		if strings.Contains(name, key) {
			slugs = append(slugs, slug)
			break
		}
	}

	clean := normalize.Company(company)
	if compact := normalize.Slug(clean); len(compact) > 2 && !contains(slugs, compact) {
		slugs = append(slugs, compact)
	}
	if hyphened := hyphenSlug(clean); hyphened != "" && !contains(slugs, hyphened) {
		slugs = append(slugs, hyphened)
	}

	if len(slugs) > 2 {
		slugs = slugs[:2]
	}
	return slugs
}

var nonSlugChar = regexp.MustCompile(`[^a-z0-9\s]`)

// hyphenSlug keeps word boundaries as hyphens, the other slug format Lever
// boards use: "jpmorgan chase" becomes "jpmorgan-chase".
func hyphenSlug(clean string) string {
	stripped := nonSlugChar.ReplaceAllString(clean, "")
	return strings.Join(strings.Fields(stripped), "-")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (l *Lever) isBad(slug string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.badSlugs[slug]
}

func (l *Lever) markBad(slug string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.badSlugs[slug] = true
}
