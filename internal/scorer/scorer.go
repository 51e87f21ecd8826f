// Package scorer computes the 0-100 fitness score of a posting against the
// resume profile. The function is deterministic: posting + profile in,
// score + breakdown out. A zero score means the posting is dropped by the
// pipeline and must never reach the store.
package scorer

import (
	"regexp"
	"strings"

	"github.com/kpetrov/jobscout/internal/jobs"
	"github.com/kpetrov/jobscout/internal/profile"
)

const (
	basePoints     = 10
	maxSkillPoints = 30
	sponsorBonus   = 5
	maxScore       = 100
)

// Citizenship/clearance requirement patterns. Any match without a positive
// sponsorship signal forces the score to zero.
var citizenshipPatterns = compileAll([]string{
	`u\.?s\.?\s*citizen(?:ship)?(?:\s+(?:is\s+)?required)?`,
	`must\s+be\s+(?:a\s+)?u\.?s\.?\s*citizen`,
	`(?:requires?|must\s+have)\s+(?:active\s+)?(?:security|secret|top\s*secret|ts[/ ]sci)\s*clearance`,
	`clearance\s+(?:is\s+)?required`,
	`(?:only|must)\s+(?:be\s+)?(?:authorized|eligible)\s+to\s+work.*?(?:without|no)\s+(?:need\s+for\s+)?sponsor`,
	`(?:unable|not\s+able|cannot|will\s+not|won't)\s+(?:to\s+)?(?:provide\s+)?(?:sponsor|visa)`,
	`no\s+(?:visa\s+)?sponsor(?:ship)?`,
	`(?:not|no)\s+(?:currently\s+)?sponsor(?:ing)?`,
	`(?:permanent\s+resident|green\s*card)\s+(?:is\s+)?required`,
	`must\s+(?:already\s+)?(?:be|have)\s+(?:legally\s+)?(?:authorized|eligible)\s+to\s+work`,
	`(?:only\s+)?(?:us|u\.s\.?)\s+(?:persons?|nationals?|residents?)\s+(?:may|can|should)\s+apply`,
})

// Positive sponsorship signals neutralize a citizenship match and add a
// small bonus.
var sponsorshipPatterns = compileAll([]string{
	`(?:visa|h-?1b)\s+sponsor(?:ship)?(?:\s+(?:available|offered|provided))?`,
	`(?:we|will|can|do)\s+sponsor`,
	`(?:open\s+to|offer|provide)\s+(?:visa\s+)?sponsor(?:ship)?`,
})

var technicalKeywords = []string{
	"software", "engineer", "developer", "programmer",
	"machine learning", "ml", "ai", "data scientist",
	"backend", "frontend", "full stack", "fullstack", "full-stack",
	"platform", "infrastructure", "devops", "sre", "site reliability",
	"data engineer", "research scientist", "applied scientist",
	"computer vision", "nlp", "systems engineer", "cloud engineer",
}

var nonTechnicalKeywords = []string{
	"sales", "account executive", "business development", "marketing",
	"recruiter", "human resources", "customer success", "customer support",
	"finance", "accounting", "legal", "compliance",
	"product manager", "project manager", "program manager",
	"mechanical engineer", "civil engineer", "electrical engineer",
}

var seniorKeywords = []string{
	"senior", "staff", "principal", "lead", "director", "vp ",
	"manager", "head of", "architect", "5+", "7+", "8+", "10+",
}

var juniorKeywords = []string{"new grad", "junior", "entry", "early career", "associate"}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Dealbreaker reports whether the description carries a citizenship or
// clearance requirement, and whether a positive sponsorship signal is also
// present. The matched clause is returned for diagnostics.
func Dealbreaker(description string) (clause string, positive bool) {
	lower := strings.ToLower(description)
	for _, re := range citizenshipPatterns {
		if m := re.FindString(lower); m != "" {
			clause = strings.TrimSpace(m)
			break
		}
	}
	for _, re := range sponsorshipPatterns {
		if re.MatchString(lower) {
			positive = true
			break
		}
	}
	return clause, positive
}

// Technical reports whether a title looks like a matching technical role.
// Non-technical titles fail, and senior titles without a junior marker fail.
func Technical(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range nonTechnicalKeywords {
		if strings.Contains(t, kw) {
			return false
		}
	}
	junior := false
	for _, kw := range juniorKeywords {
		if strings.Contains(t, kw) {
			junior = true
			break
		}
	}
	if !junior {
		for _, kw := range seniorKeywords {
			if strings.Contains(t, kw) {
				return false
			}
		}
	}
	for _, kw := range technicalKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// Score computes the posting's fitness against the profile. Components are
// additive and clamped to [0,100]; a dealbreaker without a sponsorship
// signal, or a non-technical title, forces zero.
func Score(p *jobs.Posting, prof *profile.Profile) (int, jobs.Breakdown) {
	var b jobs.Breakdown

	if !Technical(p.Title) {
		return 0, b
	}

	clause, positive := Dealbreaker(p.Description)
	if clause != "" && !positive {
		b.Dealbreaker = clause
		return 0, b
	}

	b.Base = basePoints
	b.MatchedSkills = prof.MatchSkills(p.Title + " " + p.Description)
	b.Skills = skillPoints(len(b.MatchedSkills))
	b.Seniority = seniorityPoints(p.Title, p.Description, prof.Seniority)
	b.Sponsorship = sponsorshipPoints(prof.SponsorshipCount(p.Company))
	if positive {
		b.Sponsorship += sponsorBonus
	}
	b.CompanyTier = tierPoints(prof.Tier(p.Company))

	total := b.Base + b.Skills + b.Seniority + b.Sponsorship + b.CompanyTier
	if total > maxScore {
		total = maxScore
	}
	return total, b
}

func skillPoints(n int) int {
	switch {
	case n >= 12:
		return maxSkillPoints
	case n >= 8:
		return 25
	case n >= 5:
		return 20
	case n >= 3:
		return 15
	case n >= 1:
		return n * 5
	default:
		return 0
	}
}

// seniorityPoints walks the ordered marker table; the first matching phrase
// wins. Body-only markers consult the description too. No marker scores 5.
func seniorityPoints(title, description string, markers []profile.SeniorityMarker) int {
	t := strings.ToLower(title)
	body := t + " " + strings.ToLower(description)
	for _, m := range markers {
		haystack := t
		if m.InBody {
			haystack = body
		}
		if strings.Contains(haystack, m.Phrase) {
			return m.Points
		}
	}
	return 5
}

func sponsorshipPoints(approved int) int {
	switch {
	case approved >= 100:
		return 20
	case approved >= 50:
		return 16
	case approved >= 20:
		return 12
	case approved >= 10:
		return 8
	case approved >= 1:
		return 4
	default:
		return 0
	}
}

func tierPoints(tier int) int {
	switch tier {
	case 1:
		return 15
	case 2:
		return 13
	case 3:
		return 11
	default:
		return 5
	}
}
