// Package source defines the adapter contract for external job boards and
// implements the nine configured sources. Adapters normalize provider
// records into the canonical posting shape, skip malformed records, and
// surface classified errors the orchestrator can contain per source.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kpetrov/jobscout/internal/budget"
	"github.com/kpetrov/jobscout/internal/jobs"
)

// Error taxonomy. Adapters wrap these sentinels so the orchestrator and the
// budget manager can react by class with errors.Is.
var (
	// ErrAuth means a bad or expired credential. The credential is not
	// retried for the rest of the run.
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimited means the per-period quota was hit. The budget
	// manager marks the credential exhausted; no retry storm.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransport covers network failures and timeouts on a single
	// request. The adapter skips the request and continues.
	ErrTransport = errors.New("transport failure")
	// ErrParse marks a malformed payload. A malformed single record is
	// skipped silently; a malformed top-level payload surfaces this.
	ErrParse = errors.New("malformed payload")
)

// Query is the per-run fetch context handed to every adapter.
type Query struct {
	// Keywords narrow the search on sources that support text queries.
	Keywords []string
	// Credential is the single key assigned to this run, or nil for
	// key-less sources. Adapters must treat it as immutable.
	Credential *budget.Credential
}

// Source fetches raw postings from one external board. Implementations
// return partial results on per-record failures and never panic; a total
// fetch failure returns (nil, err) and the orchestrator isolates it.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]*jobs.Posting, error)
}

const (
	userAgent      = "jobscout/1.0 (+https://github.com/kpetrov/jobscout)"
	defaultTimeout = 15 * time.Second
	// boardTimeout bounds a single company-board request. Exceeding it is
	// a skip, not a fatal error.
	boardTimeout = 6 * time.Second
)

func newClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
}

// searchQueries extends a source's built-in query grid with the run's
// extra keywords, skipping blanks and duplicates.
func searchQueries(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, kw := range extra {
		if kw != "" && !contains(out, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// classify maps a resty response/error pair onto the error taxonomy.
// A nil return means the response is usable.
func classify(name string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrTransport, err)
	}
	switch code := resp.StatusCode(); {
	case code == 401 || code == 403:
		return fmt.Errorf("%s: %w: status %d", name, ErrAuth, code)
	case code == 429:
		return fmt.Errorf("%s: %w", name, ErrRateLimited)
	case code != 200:
		return fmt.Errorf("%s: %w: status %d", name, ErrTransport, code)
	}
	return nil
}

// parseTime attempts the timestamp layouts seen across providers. The zero
// time is returned when nothing matches; the freshness filter treats that
// as "no usable timestamp".
func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// epochMillis converts a millisecond unix timestamp, tolerating zero.
func epochMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

