package checker

import (
	"testing"

	"appwatch/internal/track"
)

const brewInfoSample = `{
	"formulae": [
		{
			"name": "jq",
			"full_name": "jq",
			"version": "1.7.1",
			"homepage": "https://jqlang.github.io/jq/",
			"installed": [{"version": "1.7"}]
		}
	],
	"casks": [
		{
			"token": "firefox",
			"full_token": "homebrew/cask/firefox",
			"version": "121.0.1",
			"homepage": "https://www.mozilla.org/firefox/"
		}
	]
}`

func TestMatchBrewInfo_Formula(t *testing.T) {
	version, homepage, err := matchBrewInfo([]byte(brewInfoSample), "jq")
	if err != nil {
		t.Fatalf("matchBrewInfo failed: %v", err)
	}
	if version != "1.7.1" {
		t.Errorf("version = %q, want 1.7.1", version)
	}
	if homepage != "https://jqlang.github.io/jq/" {
		t.Errorf("homepage = %q", homepage)
	}
}

func TestMatchBrewInfo_CaskByToken(t *testing.T) {
	version, _, err := matchBrewInfo([]byte(brewInfoSample), "firefox")
	if err != nil {
		t.Fatalf("matchBrewInfo failed: %v", err)
	}
	if version != "121.0.1" {
		t.Errorf("version = %q, want 121.0.1", version)
	}

	// Full token matches too.
	version, _, err = matchBrewInfo([]byte(brewInfoSample), "homebrew/cask/firefox")
	if err != nil || version != "121.0.1" {
		t.Errorf("full token lookup: version=%q err=%v", version, err)
	}
}

func TestMatchBrewInfo_NotFound(t *testing.T) {
	version, _, err := matchBrewInfo([]byte(brewInfoSample), "ripgrep")
	if err != nil {
		t.Fatalf("matchBrewInfo failed: %v", err)
	}
	if version != "" {
		t.Errorf("expected empty version for unknown formula, got %q", version)
	}
}

func TestMatchBrewInfo_InvalidJSON(t *testing.T) {
	if _, _, err := matchBrewInfo([]byte("brew exploded"), "jq"); err == nil {
		t.Error("matchBrewInfo should fail on invalid JSON")
	}
}

func TestParseBrewList(t *testing.T) {
	data := []byte(`{
		"formulae": [
			{"name": "jq", "full_name": "jq", "installed": [{"version": "1.7"}]},
			{"name": "node", "full_name": "homebrew/core/node", "installed": []}
		]
	}`)

	found, err := parseBrewList(data)
	if err != nil {
		t.Fatalf("parseBrewList failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 formulae, got %d", len(found))
	}
	if found[0].ID != "jq" || found[0].Version != "1.7" || found[0].Channel != "formula" {
		t.Errorf("unexpected first formula: %+v", found[0])
	}
	// full_name is the identifier when present; missing installed info
	// leaves the version empty.
	if found[1].ID != "homebrew/core/node" || found[1].Version != "" {
		t.Errorf("unexpected second formula: %+v", found[1])
	}
	for _, d := range found {
		if d.Source != track.SourceHomebrew {
			t.Errorf("formula %q has source %q", d.Name, d.Source)
		}
	}
}
