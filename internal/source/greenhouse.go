package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/normalize"
)

// greenhouseBoards maps board tokens to display company names. Token is the
// URL slug under boards-api.greenhouse.io/v1/boards/{token}/jobs. The board
// API is unauthenticated and unmetered.
var greenhouseBoards = map[string]string{
	"stripe": "Stripe", "databricks": "Databricks", "figma": "Figma",
	"notion": "Notion", "openai": "OpenAI", "anthropic": "Anthropic",
	"coinbase": "Coinbase", "datadog": "Datadog", "cloudflare": "Cloudflare",
	"roblox": "Roblox", "instacart": "Instacart", "doordash": "DoorDash",
	"discord": "Discord", "gitlab": "GitLab", "github": "GitHub",
	"plaid": "Plaid", "airtable": "Airtable", "grammarly": "Grammarly",
	"retool": "Retool", "ramp": "Ramp", "brex": "Brex", "gusto": "Gusto",
	"flexport": "Flexport", "benchling": "Benchling", "samsara": "Samsara",
	"intercom": "Intercom", "webflow": "Webflow", "vanta": "Vanta",
	"lattice": "Lattice", "faire": "Faire", "anduril": "Anduril",
	"scaleai": "Scale AI", "rippling": "Rippling", "airbnb": "Airbnb",
	"lyft": "Lyft", "pinterest": "Pinterest", "reddit": "Reddit",
	"robinhood": "Robinhood", "chime": "Chime", "sofi": "SoFi",
	"affirm": "Affirm", "mercury": "Mercury", "deel": "Deel",
	"zapier": "Zapier", "canva": "Canva", "miro": "Miro",
	"calendly": "Calendly", "linear": "Linear", "vercel": "Vercel",
	"supabase": "Supabase", "neon": "Neon", "cockroachlabs": "Cockroach Labs",
	"snowflakecomputing": "Snowflake", "hashicorp": "HashiCorp",
	"confluent": "Confluent", "elastic": "Elastic", "mongodb": "MongoDB",
	"redis": "Redis", "fivetran": "Fivetran", "airbyte": "Airbyte",
	"amplitude": "Amplitude", "mixpanel": "Mixpanel", "posthog": "PostHog",
	"launchdarkly": "LaunchDarkly", "docker": "Docker", "circleci": "CircleCI",
	"snyk": "Snyk", "wiz": "Wiz", "tailscale": "Tailscale",
	"teleport": "Teleport", "postman": "Postman", "pulumi": "Pulumi",
	"cohere": "Cohere", "huggingface": "Hugging Face", "anyscale": "Anyscale",
	"modal": "Modal", "replicate": "Replicate", "baseten": "Baseten",
	"coreweave": "CoreWeave", "together": "Together AI",
	"perplexity": "Perplexity AI", "weights-and-biases": "Weights & Biases",
	"crowdstrike": "CrowdStrike", "zscaler": "Zscaler",
	"sentinelone": "SentinelOne", "newrelic": "New Relic",
	"grafanalabs": "Grafana Labs", "honeycomb": "Honeycomb",
	"1password": "1Password", "okta": "Okta", "square": "Square",
	"carta": "Carta", "wealthfront": "Wealthfront", "navan": "Navan",
	"duolingo": "Duolingo", "coursera": "Coursera", "tempus": "Tempus",
	"zocdoc": "Zocdoc", "shopify": "Shopify", "etsy": "Etsy",
	"wayfair": "Wayfair", "zillow": "Zillow", "redfin": "Redfin",
	"opendoor": "Opendoor", "spacex": "SpaceX", "palantir": "Palantir",
	"kraken": "Kraken", "gemini": "Gemini", "chainalysis": "Chainalysis",
	"alchemy": "Alchemy", "epicgames": "Epic Games", "riotgames": "Riot Games",
	"unity": "Unity", "spotify": "Spotify", "hubspot": "HubSpot",
	"braze": "Braze", "twilio": "Twilio", "digitalocean": "DigitalOcean",
	"fastly": "Fastly", "netlify": "Netlify", "clickhouse": "ClickHouse",
	"starburst": "Starburst", "ironclad": "Ironclad", "procore": "Procore",
	"hopper": "Hopper", "turo": "Turo", "toast": "Toast", "yelp": "Yelp",
	"lemonade": "Lemonade", "klaviyo": "Klaviyo", "gong": "Gong",
	"asana": "Asana", "monday": "monday.com", "smartsheet": "Smartsheet",
	"workos": "WorkOS", "clerk": "Clerk", "hasura": "Hasura",
	"temporal": "Temporal", "framer": "Framer", "nvidia": "NVIDIA",
	"groq": "Groq", "figureai": "Figure AI", "zendesk": "Zendesk",
	"pagerduty": "PagerDuty", "twitch": "Twitch", "zoom": "Zoom",
	"dropbox": "Dropbox", "box": "Box", "tiktok": "TikTok",
	"nubank": "Nubank", "oracle": "Oracle", "nutanix": "Nutanix",
	"rubrik": "Rubrik", "fortinet": "Fortinet",
	"paloaltonetworks": "Palo Alto Networks", "cyberark": "CyberArk",
	"rapid7": "Rapid7", "tenable": "Tenable", "qualys": "Qualys",
	"proofpoint": "Proofpoint", "pinecone": "Pinecone",
	"weaviate": "Weaviate", "qdrant": "Qdrant", "deepgram": "Deepgram",
	"assemblyai": "AssemblyAI", "elevenlabs": "ElevenLabs",
}

type ghBoard struct {
	Jobs []ghJob `json:"jobs"`
}

type ghJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
}

// Greenhouse scrapes the public board API for a fixed company roster.
// One board failing is a skip; the source as a whole fails only when every
// board does.
type Greenhouse struct {
	client  *resty.Client
	logger  *zap.Logger
	baseURL string
	boards  map[string]string

	mu        sync.Mutex
	badBoards map[string]bool
}

func NewGreenhouse(logger *zap.Logger) *Greenhouse {
	return &Greenhouse{
		client:    newClient(defaultTimeout),
		logger:    logger.Named("greenhouse"),
		baseURL:   "https://boards-api.greenhouse.io/v1/boards",
		boards:    greenhouseBoards,
		badBoards: make(map[string]bool),
	}
}

func (g *Greenhouse) Name() string { return "Greenhouse" }

func (g *Greenhouse) Fetch(ctx context.Context, _ Query) ([]*jobs.Posting, error) {
	var out []*jobs.Posting
	failures := 0
	for token, company := range g.boards {
		if g.isBad(token) {
			continue
		}
		postings, err := g.fetchBoard(ctx, token, company)
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("%s: %w: %v", g.Name(), ErrTransport, ctx.Err())
			}
			failures++
			g.logger.Debug("board skipped", zap.String("board", token), zap.Error(err))
			continue
		}
		out = append(out, postings...)
	}
	if len(out) == 0 && failures == len(g.boards) {
		return nil, fmt.Errorf("%s: %w: all boards failed", g.Name(), ErrTransport)
	}
	g.logger.Info("fetched", zap.Int("postings", len(out)), zap.Int("boards_failed", failures))
	return out, nil
}

func (g *Greenhouse) fetchBoard(ctx context.Context, token, company string) ([]*jobs.Posting, error) {
	boardCtx, cancel := context.WithTimeout(ctx, boardTimeout)
	defer cancel()

	resp, err := g.client.R().
		SetContext(boardCtx).
		SetResult(&ghBoard{}).
		Get(fmt.Sprintf("%s/%s/jobs?content=true", g.baseURL, token))
	if resp != nil && resp.StatusCode() == 404 {
		g.markBad(token)
		return nil, nil
	}
	if err := classify(g.Name(), resp, err); err != nil {
		return nil, err
	}
	board, ok := resp.Result().(*ghBoard)
	if !ok || board == nil {
		return nil, fmt.Errorf("%s: %w", g.Name(), ErrParse)
	}

	postings := make([]*jobs.Posting, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		if j.Title == "" {
			continue
		}
		postings = append(postings, &jobs.Posting{
			Source:      g.Name(),
			SourceID:    fmt.Sprintf("gh_%s_%d", token, j.ID),
			Title:       j.Title,
			Company:     company,
			Location:    j.Location.Name,
			Description: normalize.StripHTML(j.Content),
			URL:         j.AbsoluteURL,
			PostedAt:    parseTime(j.UpdatedAt),
		})
	}
	return postings, nil
}

func (g *Greenhouse) isBad(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.badBoards[token]
}

func (g *Greenhouse) markBad(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.badBoards[token] = true
}
