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
	"github.com/kpetrov/jobscout/internal/utils"
)

var adzunaQueries = []string{
	"software engineer new grad",
	"software engineer intern",
	"software developer entry level",
	"backend engineer junior",
	"machine learning engineer",
	"data engineer entry level",
	"full stack developer junior",
}

type adzunaPage struct {
	Results []adzunaJob `json:"results"`
}

type adzunaJob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url"`
	Created     string `json:"created"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string   `json:"display_name"`
		Area        []string `json:"area"`
	} `json:"location"`
}

// Adzuna searches the aggregator API with a fixed query set, constrained
// to postings at most seven days old. Requires an app id and key pair.
type Adzuna struct {
	client     *resty.Client
	logger     *zap.Logger
	baseURL    string
	appID      string
	appKey     string
	country    string
	queryDelay time.Duration
}

func NewAdzuna(logger *zap.Logger, appID, appKey string) *Adzuna {
	return &Adzuna{
		client:     newClient(defaultTimeout),
		logger:     logger.Named("adzuna"),
		baseURL:    "https://api.adzuna.com/v1/api/jobs",
		appID:      appID,
		appKey:     appKey,
		country:    "us",
		queryDelay: 500 * time.Millisecond,
	}
}

func (a *Adzuna) Name() string { return "Adzuna" }

func (a *Adzuna) Fetch(ctx context.Context, q Query) ([]*jobs.Posting, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, fmt.Errorf("%s: %w: missing app id or key", a.Name(), ErrAuth)
	}

	var out []*jobs.Posting
	seen := make(map[string]bool)
	failures := 0

	queries := searchQueries(adzunaQueries, q.Keywords)
	for i, query := range queries {
		if i > 0 {
			if err := utils.WaitFor(ctx, a.queryDelay); err != nil {
				return out, fmt.Errorf("%s: %w: %v", a.Name(), ErrTransport, err)
			}
		}
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"app_id":           a.appID,
				"app_key":          a.appKey,
				"results_per_page": "50",
				"what":             query,
				"max_days_old":     "7",
				"content-type":     "application/json",
			}).
			SetResult(&adzunaPage{}).
			Get(fmt.Sprintf("%s/%s/search/1", a.baseURL, a.country))
		if err := classify(a.Name(), resp, err); err != nil {
			// A bad credential fails every query; stop immediately.
			if errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
				return nil, err
			}
			failures++
			a.logger.Warn("query failed", zap.String("query", query), zap.Error(err))
			continue
		}

		page, ok := resp.Result().(*adzunaPage)
		if !ok || page == nil {
			failures++
			continue
		}
		for _, j := range page.Results {
			if j.ID == "" || seen[j.ID] {
				continue
			}
			seen[j.ID] = true
			out = append(out, &jobs.Posting{
				Source:      a.Name(),
				SourceID:    "adzuna_" + j.ID,
				Title:       stripEmphasis(j.Title),
				Company:     j.Company.DisplayName,
				Location:    adzunaLocation(j),
				Description: j.Description,
				URL:         j.RedirectURL,
				PostedAt:    parseTime(j.Created),
			})
		}
	}

	if failures == len(queries) {
		return nil, fmt.Errorf("%s: %w: all queries failed", a.Name(), ErrTransport)
	}
	a.logger.Info("fetched", zap.Int("postings", len(out)))
	return out, nil
}

func adzunaLocation(j adzunaJob) string {
	if j.Location.DisplayName != "" {
		return j.Location.DisplayName
	}
	area := j.Location.Area
	if len(area) >= 2 {
		return strings.Join(area[len(area)-2:], ", ")
	}
	return strings.Join(area, ", ")
}

// Adzuna wraps matched query words in <strong> tags in titles.
func stripEmphasis(title string) string {
	title = strings.ReplaceAll(title, "<strong>", "")
	return strings.ReplaceAll(title, "</strong>", "")
}
