package source

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
)

// museSearches is the category/page grid queried per run. The API is free
// and unauthenticated; several narrow pages beat one broad one.
var museSearches = []struct {
	Category string
	Page     int
}{
	{"Software Engineering", 0},
	{"Software Engineering", 1},
	{"Software Engineering", 2},
	{"Data Science", 0},
	{"Data and Analytics", 0},
	{"Engineering", 0},
	{"Engineering", 1},
	{"IT", 0},
}

type museJob struct {
	ID       int64  `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Contents string `mapstructure:"contents"`
	Company  struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"company"`
	Locations []struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"locations"`
	Refs struct {
		LandingPage string `mapstructure:"landing_page"`
	} `mapstructure:"refs"`
	PublicationDate string `mapstructure:"publication_date"`
}

// TheMuse queries the public Muse jobs API over a fixed category grid and
// dedups across pages by provider job id.
type TheMuse struct {
	client  *resty.Client
	logger  *zap.Logger
	baseURL string
}

func NewTheMuse(logger *zap.Logger) *TheMuse {
	return &TheMuse{
		client:  newClient(defaultTimeout),
		logger:  logger.Named("themuse"),
		baseURL: "https://www.themuse.com/api/public/jobs",
	}
}

func (m *TheMuse) Name() string { return "TheMuse" }

func (m *TheMuse) Fetch(ctx context.Context, _ Query) ([]*jobs.Posting, error) {
	var out []*jobs.Posting
	seen := make(map[int64]bool)
	failures := 0

	for _, search := range museSearches {
		resp, err := m.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"category": search.Category,
				"page":     fmt.Sprint(search.Page),
			}).
			SetResult(map[string]any{}).
			Get(m.baseURL)
		if err := classify(m.Name(), resp, err); err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			failures++
			m.logger.Warn("search failed", zap.String("category", search.Category), zap.Error(err))
			continue
		}

		body, ok := resp.Result().(*map[string]any)
		if !ok || body == nil {
			failures++
			continue
		}
		results, _ := (*body)["results"].([]any)
		for _, raw := range results {
			var j museJob
			if err := mapstructure.WeakDecode(raw, &j); err != nil || j.Name == "" {
				continue
			}
			if seen[j.ID] {
				continue
			}
			seen[j.ID] = true

			location := ""
			if len(j.Locations) > 0 {
				location = j.Locations[0].Name
			}
			out = append(out, &jobs.Posting{
				Source:      m.Name(),
				SourceID:    fmt.Sprintf("muse_%d", j.ID),
				Title:       j.Name,
				Company:     j.Company.Name,
				Location:    location,
				Description: normalize.StripHTML(j.Contents),
				URL:         j.Refs.LandingPage,
				PostedAt:    parseTime(j.PublicationDate),
			})
		}
	}

	if failures == len(museSearches) {
		return nil, fmt.Errorf("%s: %w: all searches failed", m.Name(), ErrTransport)
	}
	m.logger.Info("fetched", zap.Int("postings", len(out)))
	return out, nil
}
