// Package recipe loads and validates the YAML analysis recipes that
// drive a run: where leads come from, which processors run in which
// order, what the model must extract, and the output column layout.
package recipe

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/lendsight/engage-cli/internal/model"
)

// DataInput names the lead/transcript source for a run.
type DataInput struct {
	// Type selects the source adapter: csv, xlsx, query, or ftp.
	Type string `yaml:"type"`
	// Path is the lead-list file for csv/xlsx, or the remote path for ftp.
	Path string `yaml:"path,omitempty"`
	// Query is the warehouse SQL for the query source.
	Query string `yaml:"query,omitempty"`
	// TranscriptsDir holds one JSON transcript file per lead.
	TranscriptsDir string `yaml:"transcripts_dir,omitempty"`
}

// LLMConfig declares the extraction step: the prompt template file, the
// context keys substituted into it, and the schema the reply must obey.
type LLMConfig struct {
	PromptFile      string          `yaml:"prompt_file"`
	ExpectedLLMKeys model.KeySchema `yaml:"expected_llm_keys"`
	ContextKeys     []string        `yaml:"context_keys"`
}

// ProcessorSpec is one entry of the ordered processor chain.
type ProcessorSpec struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Recipe is one fully parsed recipe file.
type Recipe struct {
	RecipeName    string          `yaml:"recipe_name"`
	Version       int             `yaml:"version"`
	DataInput     DataInput       `yaml:"data_input"`
	LLM           LLMConfig       `yaml:"llm_config"`
	Processors    []ProcessorSpec `yaml:"processors"`
	OutputColumns []string        `yaml:"output_columns"`

	// Dir is the directory the recipe was loaded from; prompt_file is
	// resolved relative to it.
	Dir string `yaml:"-"`
}

// Load reads and parses a recipe file. Structural validation happens
// separately in Validate so callers can inspect a broken recipe.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "recipe: read file")
	}

	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "recipe: parse yaml")
	}
	r.Dir = filepath.Dir(path)
	return &r, nil
}

// Validate checks the recipe against the set of registered processor
// names and the declared key schema. knownProcessors maps a processor
// identifier to anything non-nil; only membership is consulted.
func (r *Recipe) Validate(knownProcessors map[string]bool) error {
	if r.RecipeName == "" {
		return eris.New("recipe: recipe_name is required")
	}
	if r.Version <= 0 {
		return eris.Errorf("recipe %s: version must be positive", r.RecipeName)
	}

	switch r.DataInput.Type {
	case "csv", "xlsx", "ftp":
		if r.DataInput.Path == "" {
			return eris.Errorf("recipe %s: data_input.path is required for %s source", r.RecipeName, r.DataInput.Type)
		}
	case "query":
		if r.DataInput.Query == "" {
			return eris.Errorf("recipe %s: data_input.query is required for query source", r.RecipeName)
		}
	default:
		return eris.Errorf("recipe %s: unknown data_input.type %q", r.RecipeName, r.DataInput.Type)
	}

	for _, p := range r.Processors {
		if !knownProcessors[p.Name] {
			return eris.Errorf("recipe %s: unknown processor %q", r.RecipeName, p.Name)
		}
	}

	if err := r.LLM.ExpectedLLMKeys.Validate(); err != nil {
		return eris.Wrapf(err, "recipe %s", r.RecipeName)
	}

	if r.LLM.PromptFile != "" {
		if _, err := os.Stat(r.PromptPath()); err != nil {
			return eris.Wrapf(err, "recipe %s: prompt_file", r.RecipeName)
		}
	}

	if len(r.OutputColumns) == 0 {
		return eris.Errorf("recipe %s: output_columns is empty", r.RecipeName)
	}
	return nil
}

// PromptPath resolves the prompt file relative to the recipe directory.
func (r *Recipe) PromptPath() string {
	if filepath.IsAbs(r.LLM.PromptFile) || r.Dir == "" {
		return r.LLM.PromptFile
	}
	return filepath.Join(r.Dir, r.LLM.PromptFile)
}

// PromptTemplate reads the prompt template file.
func (r *Recipe) PromptTemplate() (string, error) {
	data, err := os.ReadFile(r.PromptPath())
	if err != nil {
		return "", eris.Wrap(err, "recipe: read prompt file")
	}
	return string(data), nil
}
