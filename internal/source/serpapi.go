package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
	"github.com/kpetrov/jobscout/internal/utils"
)

var serpQueries = []string{
	`"Software Engineer" new grad`,
	`"Software Engineer Intern"`,
	`"Software Developer" entry level`,
	`"Backend Engineer" junior`,
	`"Machine Learning Engineer" new grad`,
	`"Data Engineer" entry level`,
	`"Full Stack Engineer" junior`,
	`"Cloud Engineer" entry level`,
}

type serpPage struct {
	JobsResults []serpJob `json:"jobs_results"`
}

type serpJob struct {
	JobID              string `json:"job_id"`
	Title              string `json:"title"`
	CompanyName        string `json:"company_name"`
	Location           string `json:"location"`
	Via                string `json:"via"`
	Description        string `json:"description"`
	ShareLink          string `json:"share_link"`
	DetectedExtensions struct {
		PostedAt string `json:"posted_at"`
	} `json:"detected_extensions"`
	ApplyOptions []struct {
		Link string `json:"link"`
	} `json:"apply_options"`
}

// SerpAPI queries Google Jobs through serpapi.com, which aggregates
// LinkedIn, Indeed, Glassdoor and company career pages. The channel suffix
// in the via field is collapsed so all channels dedup as one source.
type SerpAPI struct {
	client     *resty.Client
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	queryDelay time.Duration
}

func NewSerpAPI(logger *zap.Logger, apiKey string) *SerpAPI {
	return &SerpAPI{
		client:     newClient(defaultTimeout),
		logger:     logger.Named("serpapi"),
		baseURL:    "https://serpapi.com/search.json",
		apiKey:     apiKey,
		queryDelay: time.Second,
	}
}

func (s *SerpAPI) Name() string { return "Google Jobs" }

func (s *SerpAPI) Fetch(ctx context.Context, q Query) ([]*jobs.Posting, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%s: %w: missing api key", s.Name(), ErrAuth)
	}

	var out []*jobs.Posting
	seen := make(map[string]bool)
	failures := 0

	queries := searchQueries(serpQueries, q.Keywords)
	for i, query := range queries {
		if i > 0 {
			if err := utils.WaitFor(ctx, s.queryDelay); err != nil {
				return out, fmt.Errorf("%s: %w: %v", s.Name(), ErrTransport, err)
			}
		}
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"engine":   "google_jobs",
				"q":        query,
				"hl":       "en",
				"gl":       "us",
				"location": "United States",
				"api_key":  s.apiKey,
			}).
			SetResult(&serpPage{}).
			Get(s.baseURL)
		if err := classify(s.Name(), resp, err); err != nil {
			if errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
				return nil, err
			}
			failures++
			s.logger.Warn("query failed", zap.String("query", query), zap.Error(err))
			continue
		}

		page, ok := resp.Result().(*serpPage)
		if !ok || page == nil {
			failures++
			continue
		}
		for _, j := range page.JobsResults {
			id := j.JobID
			if len(id) > 40 {
				id = id[:40]
			}
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, &jobs.Posting{
				Source:      normalize.SourceLabel(s.channelLabel(j.Via)),
				SourceID:    "serp_" + id,
				Title:       j.Title,
				Company:     j.CompanyName,
				Location:    j.Location,
				Description: j.Description,
				URL:         applyURL(j),
				PostedAt:    parseTime(j.DetectedExtensions.PostedAt),
			})
		}
	}

	if failures == len(queries) {
		return nil, fmt.Errorf("%s: %w: all queries failed", s.Name(), ErrTransport)
	}
	s.logger.Info("fetched", zap.Int("postings", len(out)))
	return out, nil
}

// channelLabel renders the aggregation channel the way the board reports
// it, "Google Jobs (LinkedIn)" style, so SourceLabel collapses every
// channel onto the one canonical source.
func (s *SerpAPI) channelLabel(via string) string {
	via = strings.TrimSpace(strings.TrimPrefix(via, "via "))
	if via == "" {
		return s.Name()
	}
	return fmt.Sprintf("%s (%s)", s.Name(), via)
}

func applyURL(j serpJob) string {
	if len(j.ApplyOptions) > 0 && j.ApplyOptions[0].Link != "" {
		return j.ApplyOptions[0].Link
	}
	return j.ShareLink
}
