package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testDoc struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func defaultDoc() *testDoc { return &testDoc{Name: "default", Limit: 4} }

func TestLoadYAMLOrDefaultMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	doc, err := LoadYAMLOrDefault(path, defaultDoc)
	if err != nil {
		t.Fatalf("LoadYAMLOrDefault: %v", err)
	}
	if doc.Name != "default" || doc.Limit != 4 {
		t.Errorf("missing file should yield the default, got %+v", doc)
	}
}

func TestLoadYAMLOrDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "doc.yaml")
	if err := SaveYAML(path, &testDoc{Name: "custom", Limit: 2}); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}

	doc, err := LoadYAMLOrDefault(path, defaultDoc)
	if err != nil {
		t.Fatalf("LoadYAMLOrDefault: %v", err)
	}
	if doc.Name != "custom" || doc.Limit != 2 {
		t.Errorf("got %+v, want the saved values", doc)
	}
}

func TestLoadYAMLOrDefaultBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte("name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadYAMLOrDefault(path, defaultDoc); err == nil {
		t.Error("malformed yaml should error, not fall back to the default")
	}
}
