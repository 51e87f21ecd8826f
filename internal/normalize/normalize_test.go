package normalize

import "testing"

func TestLocationFromPlaceObject(t *testing.T) {
	raw := `{"@type":"Place","address":{"addressLocality":"Santa Clara","addressRegion":"California"}}`
	if got := Location(raw); got != "Santa Clara, California" {
		t.Fatalf("expected %q, got %q", "Santa Clara, California", got)
	}
}

func TestLocationAllComponents(t *testing.T) {
	raw := `{"address":{"addressLocality":"Santa Clara","addressRegion":"California","addressCountry":"United States"}}`
	want := "Santa Clara, California, United States"
	if got := Location(raw); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLocationMissingAddress(t *testing.T) {
	if got := Location(`{"@type":"Place"}`); got != "" {
		t.Fatalf("missing address should normalize to empty, got %q", got)
	}
}

func TestLocationMalformed(t *testing.T) {
	if got := Location(`{'@type': broken`); got != "" {
		t.Fatalf("malformed object should normalize to empty, got %q", got)
	}
}

func TestLocationArrayOfPlaces(t *testing.T) {
	raw := `[{"address":{"addressLocality":"Austin","addressRegion":"TX"}},{"address":{"addressLocality":"Remote"}}]`
	if got := Location(raw); got != "Austin, TX; Remote" {
		t.Fatalf("got %q", got)
	}
}

func TestCompanyStripsSuffixes(t *testing.T) {
	cases := map[string]string{
		"DATABRICKS INC":        "databricks",
		"JPMorgan Chase & Co.":  "jpmorgan chase &",
		"The Trade Desk":        "trade desk",
		"Acme, Inc.":            "acme",
		"Initech  Technologies": "initech",
		"Plain":                 "plain",
	}
	for in, want := range cases {
		if got := Company(in); got != want {
			t.Errorf("Company(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("JPMorgan Chase & Co."); got != "jpmorganchase" {
		t.Fatalf("got %q", got)
	}
	if got := Slug("Scale AI"); got != "scaleai" {
		t.Fatalf("got %q", got)
	}
}

func TestSourceLabelCollapse(t *testing.T) {
	if got := SourceLabel("Google Jobs (LinkedIn)"); got != "Google Jobs" {
		t.Fatalf("got %q", got)
	}
	if got := SourceLabel("Greenhouse"); got != "Greenhouse" {
		t.Fatalf("got %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	html := "<div><p>Build <strong>backend</strong> services.</p><p>Go required.</p></div>"
	if got := StripHTML(html); got != "Build backend services. Go required." {
		t.Fatalf("got %q", got)
	}
	if got := StripHTML("plain text"); got != "plain text" {
		t.Fatalf("plain text should pass through, got %q", got)
	}
}
