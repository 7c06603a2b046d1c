package usecase

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"askcode/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PromptTemplate is a versioned prompt with the placeholders it requires.
// Each file defines a "system" and a "user" template.
type PromptTemplate struct {
	Name     string
	Version  string
	Required []string
	tmpl     *template.Template
}

func (p *PromptTemplate) ID() string {
	return p.Name + "." + p.Version
}

var promptDefs = []struct {
	name     string
	version  string
	required []string
}{
	{"qa", "v1", []string{"Question", "Chunks"}},
	{"suggest", "v1", []string{"Question", "Chunks"}},
	{"docs", "v1", []string{"DocType", "Audience", "AudienceGuidance", "BusinessContext", "Chunks"}},
}

// Prompts holds the parsed prompt templates by name.
type Prompts struct {
	byName map[string]*PromptTemplate
}

func LoadPrompts() (*Prompts, error) {
	p := &Prompts{byName: make(map[string]*PromptTemplate, len(promptDefs))}
	for _, def := range promptDefs {
		file := def.name + "." + def.version + ".tmpl"
		tmpl, err := template.New(file).Option("missingkey=error").ParseFS(templateFS, "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %s: %w", file, err)
		}
		for _, part := range []string{"system", "user"} {
			if tmpl.Lookup(part) == nil {
				return nil, fmt.Errorf("prompt %s has no %q template", file, part)
			}
		}
		p.byName[def.name] = &PromptTemplate{
			Name:     def.name,
			Version:  def.version,
			Required: def.required,
			tmpl:     tmpl,
		}
	}
	return p, nil
}

// Render validates data against the template's required placeholders and
// returns the system and user prompts.
func (p *Prompts) Render(name string, data map[string]string) (system, user string, err error) {
	t, ok := p.byName[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt: %s", name)
	}
	for _, key := range t.Required {
		if strings.TrimSpace(data[key]) == "" {
			return "", "", fmt.Errorf("prompt %s: missing placeholder %s", t.ID(), key)
		}
	}

	var sb strings.Builder
	if err := t.tmpl.ExecuteTemplate(&sb, "system", data); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", t.ID(), err)
	}
	system = strings.TrimSpace(sb.String())

	sb.Reset()
	if err := t.tmpl.ExecuteTemplate(&sb, "user", data); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", t.ID(), err)
	}
	user = strings.TrimSpace(sb.String())
	return system, user, nil
}

// Version returns the version tag of the named template.
func (p *Prompts) Version(name string) string {
	if t, ok := p.byName[name]; ok {
		return t.ID()
	}
	return ""
}

// formatChunks renders chunks as the context block of a prompt.
func formatChunks(chunks []domain.ScoredChunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		md := c.Chunk.Metadata
		fmt.Fprintf(&sb, "=== chunk_id: %s | file: %s", md.ChunkID, md.FilePath)
		if md.Symbol != "" {
			fmt.Fprintf(&sb, " | %s %s", md.SymbolType, md.Symbol)
		}
		sb.WriteString(" ===\n")
		sb.WriteString(c.Chunk.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

var audienceGuidance = map[domain.Audience]string{
	domain.AudienceEngineer:    "Be precise and technical: name packages, functions, data flow and configuration.",
	domain.AudiencePM:          "Focus on capabilities, user-facing behavior and limitations. Avoid code-level detail.",
	domain.AudienceStakeholder: "Keep it short and non-technical: what the system does, why it matters and the main risks.",
}

// docQueryHints widens the retrieval query per document type.
var docQueryHints = map[domain.DocType]string{
	domain.DocOverview:     "project overview purpose main features readme entrypoint",
	domain.DocArchitecture: "architecture components modules layers services data flow dependencies storage",
	domain.DocAPI:          "api endpoints routes handlers request response schema public interface",
	domain.DocOnboarding:   "entrypoint main setup configuration environment install run routing build test",
}
