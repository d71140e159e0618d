package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCoversCommonLanguages(t *testing.T) {
	set := Default()
	for _, code := range []string{"en", "de", "fr"} {
		if set.For(code) == "" {
			t.Fatalf("missing built-in prompt for %s", code)
		}
	}
	if set.For("") != "" {
		t.Fatal("empty code must have no prompt")
	}
}

func TestForCanonicalizesCodes(t *testing.T) {
	set := Set{"en": "um"}
	for _, code := range []string{"en", "EN", "en-US", " en "} {
		if got := set.For(code); got != "um" {
			t.Fatalf("For(%q) = %q", code, got)
		}
	}
	if set.For("xx-invalid-tag-!") != "" {
		t.Fatal("unknown code must have no prompt")
	}
}

func TestParse(t *testing.T) {
	set, err := Parse([]byte("EN: \" hello \"\nde: \"\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set["en"] != "hello" {
		t.Fatalf("unexpected set %v", set)
	}
	if _, ok := set["de"]; ok {
		t.Fatal("empty prompts must be dropped")
	}
	if _, err := Parse([]byte("- not\n- a map\n")); err == nil {
		t.Fatal("expected error for non-mapping document")
	}
}

func TestLoadOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("en: custom\nsv: Öh, alltså\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.For("en") != "custom" || !strings.HasPrefix(set.For("sv"), "Öh") {
		t.Fatalf("unexpected set %v", set)
	}
	if set.For("de") == "" {
		t.Fatal("built-in prompts must survive an override")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
