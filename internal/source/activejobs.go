package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/budget"
	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
	"github.com/kpetrov/jobscout/internal/utils"
)

var activeJobsQueries = []string{
	`"Software Engineer"`,
	`"Software Engineering Intern"`,
	`"Software Developer"`,
	`"Backend Engineer"`,
	`"Machine Learning Intern"`,
	`"Data Engineering Intern"`,
	`"AI Intern"`,
	`"Cloud Engineer Intern"`,
}

// ActiveJobs queries the Active Jobs DB aggregator on RapidAPI. The free
// plan is metered per key, so every request is charged against the run's
// credential and a 429 trips the credential for the period.
type ActiveJobs struct {
	client  *resty.Client
	logger  *zap.Logger
	baseURL string
	budget  *budget.Manager
	// queryDelay spaces metered requests out.
	queryDelay time.Duration
}

func NewActiveJobs(logger *zap.Logger, mgr *budget.Manager) *ActiveJobs {
	return &ActiveJobs{
		client:     newClient(30 * time.Second), // provider is slow on cold queries
		logger:     logger.Named("activejobs"),
		baseURL:    "https://active-jobs-db.p.rapidapi.com",
		budget:     mgr,
		queryDelay: 2 * time.Second,
	}
}

func (a *ActiveJobs) Name() string { return "ActiveJobsDB" }

func (a *ActiveJobs) Fetch(ctx context.Context, q Query) ([]*jobs.Posting, error) {
	cred := q.Credential
	if cred == nil || cred.Key == "" {
		return nil, fmt.Errorf("%s: %w: no credential assigned", a.Name(), ErrAuth)
	}

	var out []*jobs.Posting
	seen := make(map[string]bool)
	consecutiveEmpty := 0

	for i, query := range searchQueries(activeJobsQueries, q.Keywords) {
		if i > 0 {
			if err := utils.WaitFor(ctx, a.queryDelay); err != nil {
				return out, fmt.Errorf("%s: %w: %v", a.Name(), ErrTransport, err)
			}
		}
		if cred.Remaining() == 0 {
			a.logger.Warn("credential out of quota mid-run", zap.String("credential", cred.Name))
			break
		}

		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("x-rapidapi-host", "active-jobs-db.p.rapidapi.com").
			SetHeader("x-rapidapi-key", cred.Key).
			SetQueryParams(map[string]string{
				"limit":            "100",
				"offset":           "0",
				"title_filter":     query,
				"location_filter":  `"United States"`,
				"description_type": "text",
			}).
			Get(a.baseURL + "/active-ats-24h")
		if a.budget != nil {
			a.budget.Spend(cred, 1)
		}
		if err := classify(a.Name(), resp, err); err != nil {
			if resp != nil && resp.StatusCode() == 429 && a.budget != nil {
				a.budget.MarkExhausted(cred)
			}
			return out, err
		}

		items := parseActiveJobsBody(resp.Body())
		found := 0
		for _, item := range items {
			p := a.parseJob(item)
			if p == nil || seen[p.SourceID] {
				continue
			}
			seen[p.SourceID] = true
			out = append(out, p)
			found++
		}

		// Two empty pages in a row means the remaining queries will not
		// produce anything worth a metered request.
		if found == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= 2 {
				break
			}
		} else {
			consecutiveEmpty = 0
		}
	}

	a.logger.Info("fetched", zap.Int("postings", len(out)), zap.String("credential", cred.Name))
	return out, nil
}

// parseActiveJobsBody accepts the two payload shapes the provider emits: a
// bare array, or an object wrapping the array under "jobs" or "data".
func parseActiveJobsBody(body []byte) []gjson.Result {
	parsed := gjson.ParseBytes(body)
	if parsed.IsArray() {
		return parsed.Array()
	}
	if inner := parsed.Get("jobs"); inner.IsArray() {
		return inner.Array()
	}
	if inner := parsed.Get("data"); inner.IsArray() {
		return inner.Array()
	}
	return nil
}

// parseJob maps one provider record onto a posting. Records with no usable
// id or title are dropped, not errors.
func (a *ActiveJobs) parseJob(item gjson.Result) *jobs.Posting {
	id := item.Get("id").String()
	if id == "" {
		id = item.Get("job_id").String()
	}
	title := item.Get("title").String()
	if id == "" || title == "" {
		return nil
	}

	company := item.Get("organization").String()
	if company == "" {
		company = item.Get("company_name").String()
	}
	if company == "" {
		company = item.Get("company").String()
	}

	location := normalize.Location(item.Get("locations_raw").Raw)
	if location == "" {
		location = item.Get("location").String()
	}

	url := item.Get("url").String()
	if url == "" {
		url = item.Get("apply_url").String()
	}

	posted := item.Get("date_posted").String()
	if posted == "" {
		posted = item.Get("posted_at").String()
	}

	return &jobs.Posting{
		Source:      a.Name(),
		SourceID:    "activejobs_" + id,
		Title:       title,
		Company:     company,
		Location:    location,
		Description: item.Get("description").String(),
		URL:         url,
		PostedAt:    parseTime(posted),
	}
}
