// Package notify renders run results into a plain-text digest suitable
// for a terminal, a cron mail or a chat webhook.
package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/pipeline"
)

// DigestSize is how many top postings a digest lists.
const DigestSize = 5

// BuildDigest renders a run report: counters, per-source outcomes and the
// highest-scored new postings with their score breakdowns. Returns "" when
// the run produced nothing new, so callers can skip delivery entirely.
func BuildDigest(report *pipeline.Report) string {
	if report == nil || report.Stored == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "jobscout run %s\n", report.FinishedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "fetched %d, kept %d after filters, %d scored, %d new\n\n",
		report.Fetched, report.Filtered, report.Scored, report.Stored)

	names := make([]string, 0, len(report.Sources))
	for name := range report.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sr := report.Sources[name]
		if sr.Err != "" {
			fmt.Fprintf(&b, "  %-22s failed: %s\n", name, sr.Err)
			continue
		}
		fmt.Fprintf(&b, "  %-22s %d postings\n", name, sr.Fetched)
	}

	top := report.TopNew
	if len(top) > DigestSize {
		top = top[:DigestSize]
	}
	if len(top) > 0 {
		b.WriteString("\ntop new postings:\n")
		for i, p := range top {
			fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, p.Summary(), describeBreakdown(p.Breakdown), p.URL)
		}
	}
	return b.String()
}

// BuildPending renders stored postings that have not been surfaced by any
// digest yet. Unlike BuildDigest it carries no run counters; the scheduled
// loop prints it between runs and then marks the postings notified.
func BuildPending(pending []*jobs.Posting) string {
	if len(pending) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d new postings awaiting review:\n", len(pending))
	for i, p := range pending {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, p.Summary(), describeBreakdown(p.Breakdown), p.URL)
	}
	return b.String()
}

func describeBreakdown(bd jobs.Breakdown) string {
	parts := []string{
		fmt.Sprintf("base %d", bd.Base),
		fmt.Sprintf("skills %d", bd.Skills),
		fmt.Sprintf("seniority %d", bd.Seniority),
		fmt.Sprintf("sponsorship %d", bd.Sponsorship),
		fmt.Sprintf("tier %d", bd.CompanyTier),
	}
	s := strings.Join(parts, ", ")
	if len(bd.MatchedSkills) > 0 {
		s += " (" + strings.Join(bd.MatchedSkills, ", ") + ")"
	}
	return s
}
