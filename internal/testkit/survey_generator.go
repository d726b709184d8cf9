package testkit

import (
	"math"
	"math/rand"

	"semprep/domain/dataset"
	"semprep/domain/excerpt"
)

// SurveyGeneratorConfig configures the synthetic survey generator. Data is
// drawn from the teaching model itself, so the true parameters are known.
type SurveyGeneratorConfig struct {
	Respondents int   `json:"respondents"`
	Seed        int64 `json:"seed"`

	// Loadings of openness, conscientiousness, extroversion, agreeableness on
	// Personality; the first is the scale-setting reference.
	Loadings [4]float64 `json:"loadings"`
	// IndicatorNoise is the residual variance of each personality indicator
	IndicatorNoise float64 `json:"indicator_noise"`
	// PersonalityOnNeuroticism is the regression of Personality on neuroticism
	PersonalityOnNeuroticism float64 `json:"personality_on_neuroticism"`
	PersonalityNoise         float64 `json:"personality_noise"`
	// Powerlessness regression weights: Personality, neuroticism, fetish count
	PowerlessnessWeights [3]float64 `json:"powerlessness_weights"`
	PowerlessnessNoise   float64    `json:"powerlessness_noise"`
	// FetishRate is the mean of the Poisson category count
	FetishRate float64 `json:"fetish_rate"`
}

// DefaultSurveyConfig returns a 100-respondent configuration with seed 42
func DefaultSurveyConfig() SurveyGeneratorConfig {
	return SurveyGeneratorConfig{
		Respondents:              100,
		Seed:                     42,
		Loadings:                 [4]float64{1.0, 0.8, 0.6, 0.7},
		IndicatorNoise:           0.5,
		PersonalityOnNeuroticism: -0.5,
		PersonalityNoise:         1.0,
		PowerlessnessWeights:     [3]float64{0.4, 0.3, 0.2},
		PowerlessnessNoise:       1.0,
		FetishRate:               3.0,
	}
}

// SurveyGenerator produces tables with the seven teaching-model columns
type SurveyGenerator struct {
	config SurveyGeneratorConfig
	rng    *rand.Rand
}

// NewSurveyGenerator creates a generator with its own seeded source
func NewSurveyGenerator(config SurveyGeneratorConfig) *SurveyGenerator {
	return &SurveyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws one table in excerpt.SEMColumns order with no missing cells
func (g *SurveyGenerator) Generate() *dataset.Table {
	n := g.config.Respondents
	columns := make(map[string][]float64, len(excerpt.SEMColumns))
	for _, name := range excerpt.SEMColumns {
		columns[name] = make([]float64, n)
	}

	indicators := []string{
		"opennessvariable",
		"consciensiousnessvariable",
		"extroversionvariable",
		"agreeablenessvariable",
	}
	w := g.config.PowerlessnessWeights

	for i := 0; i < n; i++ {
		neuroticism := g.rng.NormFloat64()
		fetish := float64(g.poisson(g.config.FetishRate))
		personality := g.config.PersonalityOnNeuroticism*neuroticism +
			math.Sqrt(g.config.PersonalityNoise)*g.rng.NormFloat64()

		for k, name := range indicators {
			columns[name][i] = g.config.Loadings[k]*personality +
				math.Sqrt(g.config.IndicatorNoise)*g.rng.NormFloat64()
		}
		columns["neuroticismvariable"][i] = neuroticism
		columns["totalfetishcategory"][i] = fetish
		columns["powerlessnessvariable"][i] = w[0]*personality + w[1]*neuroticism + w[2]*fetish +
			math.Sqrt(g.config.PowerlessnessNoise)*g.rng.NormFloat64()
	}

	cols := make([]*dataset.Column, 0, len(excerpt.SEMColumns))
	for _, name := range excerpt.SEMColumns {
		cols = append(cols, dataset.NewNumericColumn(name, columns[name]))
	}
	table, err := dataset.NewTable(cols...)
	if err != nil {
		// equal lengths and distinct names are guaranteed above
		panic(err)
	}
	return table
}

// poisson draws a Poisson variate with Knuth's method (fine for small rates)
func (g *SurveyGenerator) poisson(rate float64) int {
	limit := math.Exp(-rate)
	k := 0
	p := g.rng.Float64()
	for p > limit {
		k++
		p *= g.rng.Float64()
	}
	return k
}

// WithExtraColumns appends unrelated columns, as found in the full survey export
func WithExtraColumns(table *dataset.Table, seed int64) *dataset.Table {
	rng := rand.New(rand.NewSource(seed))
	n := table.NumRows()
	age := make([]float64, n)
	region := make([]string, n)
	regions := []string{"north", "south", "east", "west"}
	for i := 0; i < n; i++ {
		age[i] = float64(18 + rng.Intn(60))
		region[i] = regions[rng.Intn(len(regions))]
	}
	cols := append(table.Columns(),
		dataset.NewNumericColumn("age", age),
		dataset.NewTextColumn("region", region),
	)
	out, err := dataset.NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return out
}

// WithMissing blanks the given column in the first `rows` rows
func WithMissing(table *dataset.Table, column string, rows int) *dataset.Table {
	cols := table.Columns()
	for i, col := range cols {
		if col.Name != column {
			continue
		}
		if col.IsNumeric() {
			values := append([]float64(nil), col.Numbers...)
			for r := 0; r < rows && r < len(values); r++ {
				values[r] = math.NaN()
			}
			cols[i] = dataset.NewNumericColumn(col.Name, values)
		} else {
			values := append([]string(nil), col.Texts...)
			for r := 0; r < rows && r < len(values); r++ {
				values[r] = ""
			}
			cols[i] = dataset.NewTextColumn(col.Name, values)
		}
	}
	out, err := dataset.NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return out
}
