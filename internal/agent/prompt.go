package agent

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"laureate/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/laureate.yaml
var defaultProfileYAML []byte

// PromptProfile is the persona the runtime speaks with.
type PromptProfile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	System      string `yaml:"system"`
	// Extra is appended to System, for deployment-specific notes.
	Extra string `yaml:"extra,omitempty"`
}

// DefaultPromptProfile returns the built-in LAUREATE tutor profile.
func DefaultPromptProfile() *PromptProfile {
	p, err := parsePromptProfile(defaultProfileYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in prompt profile: %v", err))
	}
	return p
}

// LoadPromptProfile reads a YAML prompt profile from path.
func LoadPromptProfile(path string) (*PromptProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt profile: %w", err)
	}
	p, err := parsePromptProfile(data)
	if err != nil {
		return nil, fmt.Errorf("prompt profile %s: %w", path, err)
	}
	return p, nil
}

func parsePromptProfile(data []byte) (*PromptProfile, error) {
	var p PromptProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if strings.TrimSpace(p.System) == "" {
		return nil, fmt.Errorf("system prompt is empty")
	}
	return &p, nil
}

// SystemPrompt returns the full system message text.
func (p *PromptProfile) SystemPrompt() string {
	sys := strings.TrimSpace(p.System)
	if extra := strings.TrimSpace(p.Extra); extra != "" {
		sys += "\n\n" + extra
	}
	return sys
}

// BuildMessages assembles system prompt, stored history and the new user
// input, in that order.
func (p *PromptProfile) BuildMessages(history []domain.MessageRecord, input string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: "system", Content: p.SystemPrompt()})
	for _, h := range history {
		switch h.Role {
		case "user", "assistant":
			msgs = append(msgs, domain.Message{Role: h.Role, Content: h.Content})
		}
	}
	msgs = append(msgs, domain.Message{Role: "user", Content: input})
	return msgs
}
