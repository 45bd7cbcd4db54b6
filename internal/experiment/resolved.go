package experiment

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "runmatrix/internal/errors"
)

// Output formats understood by the exporter
const (
	FormatNumpy = "numpy"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
)

// ParamFilter constrains one run configuration or summary parameter. Min and
// Max hold the numeric scalar as decoded from YAML, nil when absent. A nil
// Values is not applied; an empty one matches no run.
type ParamFilter struct {
	Name   string
	Min    interface{}
	Max    interface{}
	Values []interface{}
}

// Resolved is one experiment after DEFAULT has been merged underneath it.
// It owns all of its data.
type Resolved struct {
	Name           string   `validate:"required"`
	Entity         string   `validate:"required"`
	Project        string   `validate:"required"`
	Fields         []string `validate:"min=1,dive,required"`
	OutputPath     string   `validate:"required"`
	Filter         RunFilter
	ConfigFilters  []ParamFilter
	SummaryFilters []ParamFilter
	// HistorySamples caps the per-run history; zero means the full history.
	HistorySamples int `validate:"gte=0"`
	// OutputFormat is the raw output_data_type value, empty when unset. It is
	// checked when a field is written so that a bad value skips only the
	// affected writes.
	OutputFormat string
}

// Format returns the effective output format
func (r Resolved) Format() string {
	if r.OutputFormat == "" {
		return FormatNumpy
	}
	return r.OutputFormat
}

// Sampled reports whether history is fetched server-side sampled
func (r Resolved) Sampled() bool {
	return r.HistorySamples > 0
}

// ProjectPath returns entity/project
func (r Resolved) ProjectPath() string {
	return r.Entity + "/" + r.Project
}

// Resolve splits, validates, merges and decodes doc. selection limits the
// experiments to resolve; empty means all of them.
func Resolve(doc *Document, selection []string) ([]Resolved, error) {
	p, err := doc.Split(selection)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	v := validator.New()
	out := make([]Resolved, 0, len(p.Names))
	for i, name := range p.Names {
		r := decode(name, Merge(p.Default, p.Experiments[i]))
		if err := v.Struct(r); err != nil {
			return nil, structError(name, err)
		}
		out = append(out, r)
	}

	return out, nil
}

// decode turns a validated, merged tree into a Resolved value
func decode(name string, tree yaml.MapSlice) Resolved {
	r := Resolved{Name: name}

	r.Entity = scalarString(tree, "entity")
	r.Project = scalarString(tree, "project")
	r.OutputPath = scalarString(tree, "output_path")
	r.Fields = stringList(tree, "fields")

	if v, ok := lookup(tree, "history_samples"); ok && !isMatchAll(v) {
		r.HistorySamples, _ = toInt(v)
	}
	if v, ok := lookup(tree, "output_data_type"); ok {
		r.OutputFormat, _ = v.(string)
	}

	r.Filter = decodeRunFilter(tree)
	r.ConfigFilters = decodeParamFilters(tree, "config")
	r.SummaryFilters = decodeParamFilters(tree, "summary")

	return r
}

func decodeRunFilter(tree yaml.MapSlice) RunFilter {
	groups, _ := lookup(tree, "groups")
	groupList, byGroup := groups.([]interface{})

	if !byGroup {
		return RunFilter{Flat: &FlatFilter{
			JobTypes: flatMatch(tree, "job_types"),
			Runs:     flatMatch(tree, "runs"),
			Tags:     flatMatch(tree, "tags"),
		}}
	}

	filters := make([]GroupFilter, len(groupList))
	for i, g := range groupList {
		filters[i] = GroupFilter{
			Group:    g.(string),
			JobTypes: nestedMatch(tree, "job_types", i),
			Runs:     nestedMatch(tree, "runs", i),
			Tags:     nestedMatch(tree, "tags", i),
		}
	}
	return RunFilter{Groups: filters}
}

func flatMatch(tree yaml.MapSlice, param string) Match {
	v, ok := lookup(tree, param)
	if !ok || isMatchAll(v) {
		return MatchAll()
	}
	return Subset(toStrings(v.([]interface{}))...)
}

func nestedMatch(tree yaml.MapSlice, param string, idx int) Match {
	v, ok := lookup(tree, param)
	if !ok || isMatchAll(v) {
		return MatchAll()
	}
	entry := v.([]interface{})[idx]
	if isMatchAll(entry) {
		return MatchAll()
	}
	return Subset(toStrings(entry.([]interface{}))...)
}

func decodeParamFilters(tree yaml.MapSlice, param string) []ParamFilter {
	v, ok := lookup(tree, param)
	if !ok {
		return nil
	}

	var filters []ParamFilter
	for _, item := range v.(yaml.MapSlice) {
		f := ParamFilter{Name: keyString(item.Key)}
		spec, _ := item.Value.(yaml.MapSlice)
		for _, entry := range spec {
			switch keyString(entry.Key) {
			case "min":
				if _, ok := toFloat(entry.Value); ok {
					f.Min = entry.Value
				}
			case "max":
				if _, ok := toFloat(entry.Value); ok {
					f.Max = entry.Value
				}
			case "values":
				if list, ok := DeepCopy(entry.Value).([]interface{}); ok {
					f.Values = list
				}
			}
		}
		filters = append(filters, f)
	}
	return filters
}

func scalarString(tree yaml.MapSlice, key string) string {
	v, ok := lookup(tree, key)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

func stringList(tree yaml.MapSlice, key string) []string {
	v, ok := lookup(tree, key)
	if !ok {
		return nil
	}
	list, _ := v.([]interface{})
	return toStrings(list)
}

func toStrings(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.(string))
	}
	return out
}

// structError converts validator failures into a ConfigValidationError
func structError(name string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperrors.NewConfigValidationError("config", name, err.Error())
	}
	fe := verrs[0]
	param := paramName(fe.StructField())
	return apperrors.NewConfigValidationError(param, name, fmt.Sprintf("failed on %s", fe.Tag()))
}

// paramName maps a Resolved struct field back to its configuration key
func paramName(field string) string {
	switch {
	case strings.HasPrefix(field, "Fields"):
		return "fields"
	case field == "OutputPath":
		return "output_path"
	case field == "HistorySamples":
		return "history_samples"
	default:
		return strings.ToLower(field)
	}
}
