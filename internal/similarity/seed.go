package similarity

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// DefaultSections are the reference sections loaded into an empty index.
var DefaultSections = []string{
	"Introduction : présentez le contexte, les objectifs et la portée du rapport.",
	"Méthodologie : expliquez les outils, sources et étapes utilisées.",
	"Analyse des risques : identifiez les menaces internes et externes.",
	"Conclusion : résumez les points clés et proposez des recommandations.",
}

// SeedFile is the YAML layout accepted by LoadSeedFile:
//
//	sections:
//	  - "Introduction : ..."
type SeedFile struct {
	Sections []string `yaml:"sections"`
}

func LoadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	sections := make([]string, 0, len(seed.Sections))
	for _, section := range seed.Sections {
		if trimmed := strings.TrimSpace(section); trimmed != "" {
			sections = append(sections, trimmed)
		}
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("seed file %s has no sections", path)
	}
	return sections, nil
}

// SeedIfEmpty appends sections only when the database holds no section yet
// and reports how many were added. When another process seeded the file
// first, the stored sections are reloaded instead.
func (i *Index) SeedIfEmpty(ctx context.Context, sections []string) (int, error) {
	if len(sections) == 0 {
		sections = DefaultSections
	}
	if i.Len() > 0 {
		return 0, nil
	}
	added, err := i.insert(ctx, sections, true)
	if err != nil {
		return 0, fmt.Errorf("seeding index: %w", err)
	}
	if added == 0 {
		if err := i.load(ctx); err != nil {
			return 0, err
		}
	}
	return added, nil
}
