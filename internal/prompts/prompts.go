// Package prompts provides recognizer hotwords that preserve disfluencies.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var builtin []byte

// Set maps canonical language codes to hotword prompts.
type Set map[string]string

// Default returns the built-in prompt set.
func Default() Set {
	set, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("prompts: built-in prompts.yaml: %v", err))
	}
	return set
}

// Parse decodes a YAML mapping of language code to prompt. Codes are
// canonicalized ("EN" and "en-US" both become "en"); empty prompts are dropped.
func Parse(data []byte) (Set, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	set := make(Set, len(raw))
	for code, prompt := range raw {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			continue
		}
		set[canonical(code)] = prompt
	}
	return set, nil
}

// Load reads a prompt file from path and layers it over the built-in set.
// An empty path returns the built-in set.
func Load(path string) (Set, error) {
	set := Default()
	if strings.TrimSpace(path) == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for code, prompt := range override {
		set[code] = prompt
	}
	return set, nil
}

// For returns the prompt for code, or "" when none is known.
func (s Set) For(code string) string {
	if code == "" {
		return ""
	}
	return s[canonical(code)]
}

func canonical(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}
