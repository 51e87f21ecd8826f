package source

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
)

var remotiveCategories = []string{"software-dev", "data", "devops"}

type remotivePage struct {
	Jobs []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	CompanyName      string `json:"company_name"`
	URL              string `json:"url"`
	Description      string `json:"description"`
	PublicationDate  string `json:"publication_date"`
	RequiredLocation string `json:"candidate_required_location"`
}

// Remotive fetches remote tech postings from the free Remotive API, one
// request per category.
type Remotive struct {
	client  *resty.Client
	logger  *zap.Logger
	baseURL string
}

func NewRemotive(logger *zap.Logger) *Remotive {
	return &Remotive{
		client:  newClient(defaultTimeout),
		logger:  logger.Named("remotive"),
		baseURL: "https://remotive.com/api/remote-jobs",
	}
}

func (r *Remotive) Name() string { return "Remotive" }

func (r *Remotive) Fetch(ctx context.Context, _ Query) ([]*jobs.Posting, error) {
	var out []*jobs.Posting
	seen := make(map[int64]bool)
	failures := 0

	for _, category := range remotiveCategories {
		resp, err := r.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"category": category,
				"limit":    "100",
			}).
			SetResult(&remotivePage{}).
			Get(r.baseURL)
		if err := classify(r.Name(), resp, err); err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			failures++
			r.logger.Warn("category failed", zap.String("category", category), zap.Error(err))
			continue
		}

		page, ok := resp.Result().(*remotivePage)
		if !ok || page == nil {
			failures++
			continue
		}
		for _, j := range page.Jobs {
			if j.Title == "" || seen[j.ID] {
				continue
			}
			seen[j.ID] = true
			location := j.RequiredLocation
			if location == "" {
				location = "Remote"
			}
			out = append(out, &jobs.Posting{
				Source:      r.Name(),
				SourceID:    fmt.Sprintf("remotive_%d", j.ID),
				Title:       j.Title,
				Company:     j.CompanyName,
				Location:    location,
				Description: normalize.StripHTML(j.Description),
				URL:         j.URL,
				PostedAt:    parseTime(j.PublicationDate),
			})
		}
	}

	if failures == len(remotiveCategories) {
		return nil, fmt.Errorf("%s: %w: all categories failed", r.Name(), ErrTransport)
	}
	r.logger.Info("fetched", zap.Int("postings", len(out)))
	return out, nil
}
