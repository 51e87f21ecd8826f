// Package profile loads the resume profile the scorer runs against: skill
// keywords, seniority markers, company tiers and the sponsorship-history
// table. Loaded once at startup and read-only afterwards.
package profile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/kpetrov/jobscout/internal/normalize"
)

// SeniorityMarker maps a title phrase to a fit weight. Markers are ordered;
// the first match wins, there is no summation across markers. InBody markers
// also match the description text.
type SeniorityMarker struct {
	Phrase string `mapstructure:"phrase"`
	Points int    `mapstructure:"points"`
	InBody bool   `mapstructure:"in-body"`
}

// Tiers holds the static company tier classification.
type Tiers struct {
	Top    []string `mapstructure:"top"`
	Second []string `mapstructure:"second"`
	Third  []string `mapstructure:"third"`
}

// Profile is the full resume profile.
type Profile struct {
	Skills    []string          `mapstructure:"skills"`
	Seniority []SeniorityMarker `mapstructure:"seniority"`
	Tiers     Tiers             `mapstructure:"tiers"`

	// Sponsorship maps a normalized company name to its approved H-1B
	// petition count, loaded from the companies CSV.
	Sponsorship map[string]int `mapstructure:"-"`
}

// DefaultSeniority is used when the profile file does not override the
// marker table.
func DefaultSeniority() []SeniorityMarker {
	return []SeniorityMarker{
		{Phrase: "new grad", Points: 25},
		{Phrase: "new graduate", Points: 25},
		{Phrase: "early career", Points: 22},
		{Phrase: "university grad", Points: 22},
		{Phrase: "entry level", Points: 22},
		{Phrase: "entry-level", Points: 22},
		{Phrase: "junior", Points: 18},
		{Phrase: "jr.", Points: 18},
		{Phrase: "associate", Points: 15},
		{Phrase: "0-2 years", Points: 12, InBody: true},
		{Phrase: "0-1 year", Points: 12, InBody: true},
		{Phrase: "1-2 years", Points: 12, InBody: true},
		{Phrase: "recent graduate", Points: 12, InBody: true},
	}
}

// Load reads the profile YAML and the companies CSV. A missing or
// unparseable profile file is fatal to the caller; a missing CSV only
// leaves the sponsorship table empty.
func Load(path, companiesCSV string) (*Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", path, err)
	}

	if len(p.Skills) == 0 {
		return nil, fmt.Errorf("profile %q: at least one skill is required", path)
	}
	for i, s := range p.Skills {
		p.Skills[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if len(p.Seniority) == 0 {
		p.Seniority = DefaultSeniority()
	}
	for i, m := range p.Seniority {
		p.Seniority[i].Phrase = strings.ToLower(strings.TrimSpace(m.Phrase))
	}

	p.Sponsorship = map[string]int{}
	if companiesCSV != "" {
		table, err := loadSponsorship(companiesCSV)
		if err != nil {
			return nil, fmt.Errorf("loading companies csv %q: %w", companiesCSV, err)
		}
		p.Sponsorship = table
	}

	return &p, nil
}

// loadSponsorship parses the companies CSV. Expected columns include
// Company_Name and New_Hires_Approved_2025; other columns are ignored.
func loadSponsorship(path string) (map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	nameIdx, hiresIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Company_Name":
			nameIdx = i
		case "New_Hires_Approved_2025":
			hiresIdx = i
		}
	}
	if nameIdx < 0 || hiresIdx < 0 {
		return nil, fmt.Errorf("missing Company_Name or New_Hires_Approved_2025 column")
	}

	table := make(map[string]int)
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if nameIdx >= len(record) || hiresIdx >= len(record) {
			continue
		}
		name := normalize.Company(record[nameIdx])
		if name == "" {
			continue
		}
		hires, err := strconv.Atoi(strings.TrimSpace(record[hiresIdx]))
		if err != nil {
			continue
		}
		table[name] = hires
	}

	return table, nil
}

// MatchSkills returns the profile skills found in text by case-insensitive
// substring match, preserving profile order.
func (p *Profile) MatchSkills(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, skill := range p.Skills {
		if strings.Contains(lower, skill) {
			matched = append(matched, skill)
		}
	}
	return matched
}

// SponsorshipCount looks up the approved petition count for a company.
func (p *Profile) SponsorshipCount(company string) int {
	return p.Sponsorship[normalize.Company(company)]
}

// Tier reports the tier of a company: 1, 2, 3 or 0 for unlisted.
func (p *Profile) Tier(company string) int {
	name := normalize.Company(company)
	for tier, list := range [][]string{p.Tiers.Top, p.Tiers.Second, p.Tiers.Third} {
		for _, entry := range list {
			if strings.Contains(name, strings.ToLower(entry)) {
				return tier + 1
			}
		}
	}
	return 0
}
