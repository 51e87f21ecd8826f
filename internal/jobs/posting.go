// Package jobs defines the canonical posting model shared by every source
// adapter, the scoring pipeline and the store.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Status is the application-tracking lifecycle of a posting. The pipeline
// only ever writes StatusNew; all other transitions come from the review
// command or the external dashboard.
type Status string

const (
	StatusNew          Status = "new"
	StatusInterested   Status = "interested"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusRejected     Status = "rejected"
	StatusArchived     Status = "archived"
)

// transitions lists the allowed moves per status. Archiving is allowed from
// anywhere; leaving archived requires an explicit unarchive back to new.
var transitions = map[Status][]Status{
	StatusNew:          {StatusInterested, StatusApplied, StatusRejected, StatusArchived},
	StatusInterested:   {StatusApplied, StatusRejected, StatusArchived},
	StatusApplied:      {StatusInterviewing, StatusRejected, StatusArchived},
	StatusInterviewing: {StatusOffer, StatusRejected, StatusArchived},
	StatusOffer:        {StatusRejected, StatusArchived},
	StatusRejected:     {StatusArchived},
	StatusArchived:     {StatusNew},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Breakdown explains how a posting's score was assembled.
type Breakdown struct {
	Base          int      `json:"base"`
	Skills        int      `json:"skills"`
	Seniority     int      `json:"seniority"`
	Sponsorship   int      `json:"sponsorship"`
	CompanyTier   int      `json:"company_tier"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	Dealbreaker   string   `json:"dealbreaker,omitempty"`
}

// Posting is one normalized job offer.
type Posting struct {
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PostedAt    time.Time `json:"posted_at"`

	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`

	Status    Status    `json:"status"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Notified  bool      `json:"notified"`
}

// IdentityKey derives the dedup key: lower-cased, whitespace-collapsed
// title and company joined with "|". Two case or spacing variants of the
// same offer map to the same key regardless of the source it came from.
func (p *Posting) IdentityKey() string {
	return IdentityKey(p.Title, p.Company)
}

// IdentityKey builds the dedup key for a title/company pair.
func IdentityKey(title, company string) string {
	title = collapse(strings.ToLower(title))
	company = collapse(strings.ToLower(company))
	company = strings.TrimPrefix(company, "the ")
	return title + "|" + company
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Postings is a mutable collection with the list helpers the pipeline and
// the review command share.
type Postings struct {
	Items []*Posting
}

func (ps *Postings) Len() int {
	return len(ps.Items)
}

func (ps *Postings) Append(items ...*Posting) {
	ps.Items = append(ps.Items, items...)
}

// SortByScore orders items best-first, breaking ties by recency.
func (ps *Postings) SortByScore() {
	sort.SliceStable(ps.Items, func(i, j int) bool {
		if ps.Items[i].Score != ps.Items[j].Score {
			return ps.Items[i].Score > ps.Items[j].Score
		}
		return ps.Items[i].PostedAt.After(ps.Items[j].PostedAt)
	})
}

// TopN returns up to n best-scored postings without mutating the receiver
// order beyond sorting.
func (ps *Postings) TopN(n int) []*Posting {
	ps.SortByScore()
	if n > len(ps.Items) {
		n = len(ps.Items)
	}
	return ps.Items[:n]
}

// FindByKey returns the posting with the given identity key, or nil.
func (ps *Postings) FindByKey(key string) *Posting {
	for _, p := range ps.Items {
		if p.IdentityKey() == key {
			return p
		}
	}
	return nil
}

// BySource counts postings per canonical source label.
func (ps *Postings) BySource() map[string]int {
	counts := make(map[string]int)
	for _, p := range ps.Items {
		counts[p.Source]++
	}
	return counts
}

// DumpToTmpFile writes the collection as indented JSON to a temp file and
// returns its path. Used by the review command for manual inspection.
func (ps *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ps); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Summary is a one-line description for prompts and logs.
func (p *Posting) Summary() string {
	return fmt.Sprintf("[%d] %s at %s (%s)", p.Score, p.Title, p.Company, p.Location)
}
