package entities

import (
	"errors"
	"fmt"
	"strings"
)

// KnowledgeSection groups biographical facts under a heading
type KnowledgeSection struct {
	Title string   `yaml:"title" json:"title"`
	Facts []string `yaml:"facts" json:"facts"`
}

// Persona is the fixed character profile prepended to every prompt
type Persona struct {
	Name         string             `yaml:"name" json:"name"`
	Introduction string             `yaml:"introduction" json:"introduction"`
	Brevity      string             `yaml:"brevity" json:"brevity"`
	Tone         string             `yaml:"tone" json:"tone"`
	Knowledge    []KnowledgeSection `yaml:"knowledge" json:"knowledge"`
}

// Validate checks the persona carries everything a prompt needs
func (p Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("persona name is required")
	}
	if strings.TrimSpace(p.Introduction) == "" {
		return errors.New("persona introduction is required")
	}
	if strings.TrimSpace(p.Brevity) == "" {
		return errors.New("persona brevity instruction is required")
	}
	return nil
}

// Profile renders the knowledge block and instructions as one text block
func (p Persona) Profile() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Introduction))
	b.WriteString("\n\nIMPORTANT: ")
	b.WriteString(strings.TrimSpace(p.Brevity))

	if tone := strings.TrimSpace(p.Tone); tone != "" {
		b.WriteString("\n\n")
		b.WriteString(tone)
	}

	if len(p.Knowledge) > 0 {
		fmt.Fprintf(&b, "\n\nDETAILED KNOWLEDGE ABOUT %s:", strings.ToUpper(p.Name))
		for _, section := range p.Knowledge {
			fmt.Fprintf(&b, "\n\n%s:", strings.ToUpper(section.Title))
			for _, fact := range section.Facts {
				b.WriteString("\n- ")
				b.WriteString(fact)
			}
		}
	}

	return b.String()
}

// Prompt builds the single-shot prompt for one user message
func (p Persona) Prompt(userText string) string {
	return fmt.Sprintf("%s\n\nUser asks: %s\n\n%s responds:", p.Profile(), strings.TrimSpace(userText), p.Name)
}
