// Package excerpt defines the teaching excerpt: the fixed survey columns,
// their descriptions, the SEM specification and the exported document.
package excerpt

import (
	"strings"

	"semprep/domain/sem"
	"semprep/domain/stats"
)

// SEMColumns are the survey variables used by the teaching model, in output order.
var SEMColumns = []string{
	"opennessvariable",
	"consciensiousnessvariable",
	"extroversionvariable",
	"neuroticismvariable",
	"agreeablenessvariable",
	"powerlessnessvariable",
	"totalfetishcategory",
}

// VariableDescriptions are the human-readable labels shown on the teaching page
var VariableDescriptions = map[string]string{
	"opennessvariable":          "Openness to Experience (OCEAN personality, avg score -6 to 6)",
	"consciensiousnessvariable": "Conscientiousness (OCEAN personality, avg score -6 to 6)",
	"extroversionvariable":      "Extroversion (OCEAN personality, avg score -6 to 6)",
	"neuroticismvariable":       "Neuroticism (OCEAN personality, avg score -6 to 6)",
	"agreeablenessvariable":     "Agreeableness (OCEAN personality, avg score -6 to 6)",
	"powerlessnessvariable":     "Powerlessness (computed score, -9 to 9)",
	"totalfetishcategory":       "Total fetish category count (number of fetish categories endorsed)",
}

// ModelSpec is the lavaan-style description of the teaching model: a
// Personality factor measured by four OCEAN traits, regressed on
// neuroticism, and predicting powerlessness.
var ModelSpec = strings.TrimSpace(`
Personality =~ opennessvariable + consciensiousnessvariable + extroversionvariable + agreeablenessvariable
Personality ~ neuroticismvariable
powerlessnessvariable ~ Personality + neuroticismvariable + totalfetishcategory
`)

// Document is the JSON file consumed by the teaching page
type Document struct {
	VariableDescriptions map[string]string       `json:"variable_descriptions"`
	DescriptiveStats     *stats.DescriptiveStats `json:"descriptive_stats"`
	SEMResults           *sem.Result             `json:"sem_results"`
}

// NewDocument merges the static descriptions with computed results
func NewDocument(descriptive *stats.DescriptiveStats, results *sem.Result) *Document {
	descriptions := make(map[string]string, len(VariableDescriptions))
	for k, v := range VariableDescriptions {
		descriptions[k] = v
	}
	return &Document{
		VariableDescriptions: descriptions,
		DescriptiveStats:     descriptive,
		SEMResults:           results,
	}
}
