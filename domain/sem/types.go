package sem

// Relation operators of the lavaan-style model syntax
const (
	OpRegression  = "~"
	OpMeasurement = "=~"
	OpCovariance  = "~~"
)

// Column names of an estimator parameter table
const (
	ColEstimate = "Estimate"
	ColStdErr   = "Std. Err"
	ColZValue   = "z-value"
	ColPValue   = "p-value"
)

// Placeholder is written into a parameter-table cell that has no numeric
// value, such as the standard error of a fixed parameter.
const Placeholder = "-"

// ParameterRow is one row of the estimator's parameter table. Values holds
// the numeric columns keyed by column name; a cell is either a float64 or
// the Placeholder string.
type ParameterRow struct {
	LVal   string
	Op     string
	RVal   string
	Values map[string]any
}

// Value returns a cell and whether the column is present in the row
func (r ParameterRow) Value(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// ParameterTable is the estimator's view of every model parameter
type ParameterTable struct {
	Columns []string
	Rows    []ParameterRow
}

// HasColumn reports whether the table carries the given value column
func (t ParameterTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Statistic is one named model-fit statistic, e.g. "chi2" or "RMSEA"
type Statistic struct {
	Name  string
	Value float64
}

// Estimates is what an estimator returns for a fitted model
type Estimates struct {
	Parameters ParameterTable
	Statistics []Statistic
	// N is the number of observations the model was fitted on
	N          int
	Iterations int
	Objective  float64
	// Converged is false when the optimizer stopped early and the estimates
	// are the best admissible point it reached
	Converged  bool
}

// Statistic looks up a fit statistic by its estimator name
func (e *Estimates) Statistic(name string) (float64, bool) {
	for _, s := range e.Statistics {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// Coefficient is an exported parameter estimate. Estimate is nil when the
// estimator produced no numeric value; StdErr and PValue are omitted then.
type Coefficient struct {
	From     string   `json:"from"`
	Op       string   `json:"op"`
	To       string   `json:"to"`
	Estimate *float64 `json:"estimate"`
	StdErr   *float64 `json:"std_err,omitempty"`
	PValue   *float64 `json:"p_value,omitempty"`
}

// Result is the exported SEM section of the excerpt document
type Result struct {
	ModelSpec        string              `json:"model_spec"`
	PathCoefficients []Coefficient       `json:"path_coefficients"`
	FactorLoadings   []Coefficient       `json:"factor_loadings"`
	FitIndices       map[string]*float64 `json:"fit_indices"`
}

// FitIndex returns a fit index by exported key
func (r *Result) FitIndex(key string) (float64, bool) {
	v, ok := r.FitIndices[key]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}
