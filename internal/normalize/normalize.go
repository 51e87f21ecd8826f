// Package normalize converts source-specific fields into the canonical
// posting shape: structured locations, company names, board slugs, source
// labels and HTML descriptions.
package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Corporate suffixes stripped before slug or company matching. Longest
// variants first so ", inc." wins over " inc".
var corporateSuffixes = []string{
	", inc.", ", inc", ", llc", ", ltd",
	" inc.", " inc", " llc", " ltd.", " ltd",
	" corp.", " corp", " co.", " co",
	" group", " technologies", " technology",
	" services", " solutions", " consulting",
	" software", " systems", " international",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Company lower-cases a company name, strips corporate suffixes and a
// leading article, and collapses whitespace. Used for identity keys and for
// sponsorship/tier lookups.
func Company(name string) string {
	clean := Whitespace(strings.ToLower(name))
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(clean, suffix) {
			clean = strings.TrimSpace(clean[:len(clean)-len(suffix)])
			break
		}
	}
	return strings.TrimPrefix(clean, "the ")
}

// Slug turns a company name into a board URL slug: "DATABRICKS INC" →
// "databricks", "JPMorgan Chase & Co." → "jpmorganchase".
func Slug(name string) string {
	return nonAlnum.ReplaceAllString(Company(name), "")
}

// Whitespace collapses runs of whitespace into single spaces and trims.
func Whitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Location renders a JSON-LD Place object as a human-readable string,
// joining only the present address components with ", ". A missing or
// malformed object renders as "", never as the raw structured text.
//
//	{"@type":"Place","address":{"addressLocality":"Santa Clara",
//	 "addressRegion":"California"}} → "Santa Clara, California"
func Location(raw string) string {
	if !gjson.Valid(raw) {
		return ""
	}
	value := gjson.Parse(raw)
	if value.IsArray() {
		var parts []string
		value.ForEach(func(_, item gjson.Result) bool {
			if s := placeString(item); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		return strings.Join(parts, "; ")
	}
	return placeString(value)
}

func placeString(place gjson.Result) string {
	addr := place.Get("address")
	if !addr.Exists() {
		addr = place
	}
	return JoinPlace(
		addr.Get("addressLocality").String(),
		addr.Get("addressRegion").String(),
		addr.Get("addressCountry").String(),
	)
}

// JoinPlace joins the present components of a structured address.
func JoinPlace(locality, region, country string) string {
	var parts []string
	for _, p := range []string{locality, region, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// SourceLabel collapses channel-suffixed labels to one canonical source,
// so "Google Jobs (LinkedIn)" and "Google Jobs (Indeed)" dedup and display
// as the same source.
func SourceLabel(label string) string {
	if idx := strings.Index(label, " ("); idx > 0 {
		return label[:idx]
	}
	return label
}

// Closing block tags get padded with a space so adjacent paragraphs do not
// run together once tags are removed.
var blockBoundary = strings.NewReplacer(
	"</p>", "</p> ", "</div>", "</div> ", "</li>", "</li> ",
	"</h1>", "</h1> ", "</h2>", "</h2> ", "</h3>", "</h3> ",
	"<br>", " ", "<br/>", " ", "<br />", " ",
)

// StripHTML extracts the text content of an HTML fragment. Board APIs such
// as Greenhouse and Remotive return descriptions as HTML. On parse failure
// the input is returned unchanged.
func StripHTML(html string) string {
	if !strings.Contains(html, "<") {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockBoundary.Replace(html)))
	if err != nil {
		return html
	}
	return Whitespace(doc.Text())
}
