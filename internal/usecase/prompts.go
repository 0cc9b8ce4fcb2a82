package usecase

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompt kinds in the catalog.
const (
	KindChat      = "chat"
	KindStrategy  = "strategy"
	KindCitations = "citations"
	KindResume    = "resume"
	KindContract  = "contract"
	KindEvidence  = "evidence"
	KindDraft     = "draft"
	KindNews      = "news"
)

type promptSpec struct {
	System   string         `yaml:"system"`
	Template string         `yaml:"template"`
	Schema   map[string]any `yaml:"schema"`

	tmpl *template.Template
}

// Catalog holds parsed prompt templates and response schemas by kind.
type Catalog struct {
	specs map[string]*promptSpec
}

// RenderedPrompt is a catalog entry filled with request variables.
type RenderedPrompt struct {
	System string
	Prompt string
	Schema map[string]any
}

// LoadCatalog parses the embedded prompt catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(promptsYAML)
}

// ParseCatalog parses a YAML prompt catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var specs map[string]*promptSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("op=usecase.ParseCatalog: %w", err)
	}
	for kind, s := range specs {
		if s == nil || strings.TrimSpace(s.Template) == "" {
			return nil, fmt.Errorf("op=usecase.ParseCatalog: %s: empty template", kind)
		}
		t, err := template.New(kind).Option("missingkey=error").Parse(s.Template)
		if err != nil {
			return nil, fmt.Errorf("op=usecase.ParseCatalog: %s: %w", kind, err)
		}
		s.tmpl = t
	}
	return &Catalog{specs: specs}, nil
}

// Render fills the template of kind with vars.
func (c *Catalog) Render(kind string, vars map[string]string) (RenderedPrompt, error) {
	s, ok := c.specs[kind]
	if !ok {
		return RenderedPrompt{}, fmt.Errorf("unknown prompt kind %q", kind)
	}
	data := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		data[k] = v
	}
	data["System"] = strings.TrimSpace(s.System)

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return RenderedPrompt{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return RenderedPrompt{System: data["System"], Prompt: strings.TrimSpace(buf.String()), Schema: s.Schema}, nil
}

// Kinds lists the catalog entries.
func (c *Catalog) Kinds() []string {
	out := make([]string, 0, len(c.specs))
	for k := range c.specs {
		out = append(out, k)
	}
	return out
}
