package query

import (
	"runmatrix/internal/experiment"
)

// Remote keys of the run attributes the filter constrains
const (
	KeyGroup       = "group"
	KeyJobType     = "jobType"
	KeyDisplayName = "display_name"
	KeyTags        = "tags"

	ConfigPrefix  = "config."
	SummaryPrefix = "summary_metrics."
)

// LocalFilter is applied to runs returned by the service. The zero value
// passes every run.
type LocalFilter struct {
	JobTypes experiment.Match
	Runs     experiment.Match
}

// Allows reports whether a run with the given job type and name passes
func (f LocalFilter) Allows(jobType, name string) bool {
	return f.JobTypes.Contains(jobType) && f.Runs.Contains(name)
}

// Build derives the remote filter and the local predicate of r. It is
// deterministic: clauses follow the order of groups and parameters in the
// configuration.
func Build(r experiment.Resolved) (Filter, LocalFilter) {
	var (
		f     Filter
		local LocalFilter
	)

	if r.Filter.ByGroup() {
		for _, g := range r.Filter.Groups {
			f.Groups = append(f.Groups, groupClause(g))
		}
	} else if flat := r.Filter.Flat; flat != nil {
		local = LocalFilter{JobTypes: flat.JobTypes, Runs: flat.Runs}
		if !flat.Tags.All() {
			f.Conditions = append(f.Conditions, In(KeyTags, flat.Tags.Values()))
		}
	}

	f.Conditions = append(f.Conditions, paramConditions(ConfigPrefix, r.ConfigFilters)...)
	f.Conditions = append(f.Conditions, paramConditions(SummaryPrefix, r.SummaryFilters)...)

	return f, local
}

func groupClause(g experiment.GroupFilter) Clause {
	c := Clause{Equal(KeyGroup, g.Group)}
	if !g.JobTypes.All() {
		c = append(c, In(KeyJobType, g.JobTypes.Values()))
	}
	if !g.Runs.All() {
		c = append(c, In(KeyDisplayName, g.Runs.Values()))
	}
	if !g.Tags.All() {
		c = append(c, In(KeyTags, g.Tags.Values()))
	}
	return c
}

func paramConditions(prefix string, filters []experiment.ParamFilter) []Condition {
	var out []Condition
	for _, p := range filters {
		var ops []Op
		if p.Min != nil {
			ops = append(ops, Op{Operator: OpGTE, Value: p.Min})
		}
		if p.Max != nil {
			ops = append(ops, Op{Operator: OpLTE, Value: p.Max})
		}
		if p.Values != nil {
			ops = append(ops, Op{Operator: OpIn, Value: p.Values})
		}
		if len(ops) == 0 {
			continue
		}
		out = append(out, Condition{Key: prefix + p.Name, Ops: ops})
	}
	return out
}
