package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Built-in persona failed to load: %v", err)
	}

	if p.Name != "Henrietta Lacks" {
		t.Errorf("Unexpected persona name %q", p.Name)
	}
	if len(p.Knowledge) != 3 {
		t.Errorf("Expected 3 knowledge sections, got %d", len(p.Knowledge))
	}

	profile := p.Profile()
	for _, want := range []string{
		"IMPORTANT: Keep your responses brief and directly answer the question asked.",
		"DETAILED KNOWLEDGE ABOUT HENRIETTA LACKS:",
		"MEDICAL HISTORY & HELA CELLS:",
		"- Had five children: Lawrence",
	} {
		if !strings.Contains(profile, want) {
			t.Errorf("Profile missing %q", want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "persona.yaml")
	os.WriteFile(valid, []byte("name: Ada Lovelace\nintroduction: You are Ada.\nbrevity: Be brief.\n"), 0o600)

	p, err := Load(valid)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Name != "Ada Lovelace" {
		t.Errorf("Unexpected name %q", p.Name)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("name: Nobody\n"), 0o600)
	if _, err := Load(invalid); err == nil {
		t.Error("Persona without introduction should fail")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Missing file should fail")
	}

	if _, err := Parse([]byte("name: [unterminated")); err == nil {
		t.Error("Malformed YAML should fail")
	}

	p, err = Load("")
	if err != nil || p.Name != "Henrietta Lacks" {
		t.Errorf("Empty path should fall back to the built-in persona, got %q, %v", p.Name, err)
	}
}
