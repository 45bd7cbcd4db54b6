package experiment

import (
	"fmt"

	"gopkg.in/yaml.v2"

	apperrors "runmatrix/internal/errors"
)

// MatchAllValue is the sentinel accepted wherever a filter list is expected
const MatchAllValue = "all"

var (
	requiredParams     = []string{"entity", "project", "fields", "output_path"}
	stringParams       = []string{"entity", "project", "output_path"}
	filterListParams   = []string{"groups", "job_types", "runs", "tags"}
	nestedFilterParams = []string{"job_types", "runs", "tags"}
	filterDictParams   = []string{"config", "summary"}
	paramFilterKeys    = []string{"min", "max", "values"}
)

// Validate checks the parsed configuration before anything is merged or
// fetched. Required parameters must be present in DEFAULT or in every
// selected experiment, each layer must carry well-typed values, and the
// merged tree of every experiment must respect the groups-dependent shape of
// job_types, runs and tags.
func (p *Parsed) Validate() error {
	for _, param := range requiredParams {
		if p.HasDefault {
			if _, ok := lookup(p.Default, param); ok {
				continue
			}
		}
		for i, exp := range p.Experiments {
			if _, ok := lookup(exp, param); !ok {
				return apperrors.NewConfigValidationError(param, p.Names[i],
					fmt.Sprintf("is neither specified in DEFAULT nor in %s", p.Names[i]))
			}
		}
	}

	if p.HasDefault {
		if err := checkTypes(p.Default, DefaultName); err != nil {
			return err
		}
	}
	for i, exp := range p.Experiments {
		if err := checkTypes(exp, p.Names[i]); err != nil {
			return err
		}
	}

	for i, exp := range p.Experiments {
		if err := checkShape(Merge(p.Default, exp), p.Names[i]); err != nil {
			return err
		}
	}

	return nil
}

// checkTypes validates the parameters present in a single layer
func checkTypes(tree yaml.MapSlice, name string) error {
	for _, param := range stringParams {
		if v, ok := lookup(tree, param); ok {
			if !isScalarString(v) {
				return apperrors.NewConfigValidationError(param, name, "is not of type String")
			}
		}
	}

	if v, ok := lookup(tree, "fields"); ok {
		list, isList := v.([]interface{})
		if !isList || !allStrings(list) {
			return apperrors.NewConfigValidationError("fields", name, "must be a list of field names")
		}
	}

	for _, param := range filterListParams {
		if v, ok := lookup(tree, param); ok {
			if _, isList := v.([]interface{}); !isList && !isMatchAll(v) {
				return apperrors.NewConfigValidationError(param, name,
					fmt.Sprintf("is not of type List or equal to '%s'", MatchAllValue))
			}
		}
	}

	if v, ok := lookup(tree, "groups"); ok {
		if list, isList := v.([]interface{}); isList {
			if len(list) == 0 {
				return apperrors.NewConfigValidationError("groups", name, "must not be an empty list")
			}
			if !allStrings(list) {
				return apperrors.NewConfigValidationError("groups", name, "must be a list of group names")
			}
		}
	}

	for _, param := range filterDictParams {
		if v, ok := lookup(tree, param); ok {
			if err := checkParamFilters(v, param, name); err != nil {
				return err
			}
		}
	}

	if v, ok := lookup(tree, "history_samples"); ok && !isMatchAll(v) {
		if n, isInt := toInt(v); !isInt || n <= 0 {
			return apperrors.NewConfigValidationError("history_samples", name,
				fmt.Sprintf("must be '%s' or a positive integer", MatchAllValue))
		}
	}

	if v, ok := lookup(tree, "output_data_type"); ok {
		if _, isString := v.(string); !isString {
			return apperrors.NewConfigValidationError("output_data_type", name, "is not of type String")
		}
	}

	return nil
}

// checkParamFilters validates a config or summary mapping of
// parameter -> {min, max, values}
func checkParamFilters(v interface{}, param, name string) error {
	tree, ok := v.(yaml.MapSlice)
	if !ok {
		return apperrors.NewConfigValidationError(param, name, "is not of type Dict")
	}

	for _, item := range tree {
		key := keyString(item.Key)
		spec, ok := item.Value.(yaml.MapSlice)
		if !ok {
			return apperrors.NewConfigValidationError(param+"."+key, name, "must be a mapping with min, max or values")
		}
		if len(spec) == 0 {
			return apperrors.NewConfigValidationError(param+"."+key, name, "must set at least one of min, max or values")
		}
		for _, entry := range spec {
			switch keyString(entry.Key) {
			case "min", "max":
				if _, isNum := toFloat(entry.Value); !isNum {
					return apperrors.NewConfigValidationError(
						fmt.Sprintf("%s.%s.%s", param, key, keyString(entry.Key)), name, "must be a number")
				}
			case "values":
				list, isList := entry.Value.([]interface{})
				if !isList || !allScalars(list) {
					return apperrors.NewConfigValidationError(param+"."+key+".values", name, "must be a list of values")
				}
			default:
				return apperrors.NewConfigValidationError(param+"."+key, name,
					fmt.Sprintf("unknown key %s, expected one of %v", keyString(entry.Key), paramFilterKeys))
			}
		}
	}

	return nil
}

// checkShape validates job_types, runs and tags against the resolved groups
// value. An explicit groups list demands parallel nested lists; otherwise
// the lists must be flat.
func checkShape(tree yaml.MapSlice, name string) error {
	groups, hasGroups := lookup(tree, "groups")
	groupList, byGroup := groups.([]interface{})
	byGroup = hasGroups && byGroup

	for _, param := range nestedFilterParams {
		v, ok := lookup(tree, param)
		if !ok || isMatchAll(v) {
			continue
		}
		list, isList := v.([]interface{})
		if !isList {
			return apperrors.NewConfigValidationError(param, name,
				fmt.Sprintf("is not of type List or equal to '%s'", MatchAllValue))
		}

		if byGroup {
			if len(list) != len(groupList) {
				return apperrors.NewConfigValidationError(param, name,
					fmt.Sprintf("list of %s must have the same length as groups list (%d != %d)",
						param, len(list), len(groupList)))
			}
			for _, entry := range list {
				if isMatchAll(entry) {
					continue
				}
				inner, isList := entry.([]interface{})
				if !isList || !allStrings(inner) {
					return apperrors.NewConfigValidationError(param, name,
						"must be a nested list if groups are provided as a list")
				}
			}
			continue
		}

		if !allStrings(list) {
			return apperrors.NewConfigValidationError(param, name,
				"must be a flat list of strings if groups list is not provided")
		}
	}

	return nil
}

func isMatchAll(v interface{}) bool {
	s, ok := v.(string)
	return ok && s == MatchAllValue
}

func isScalarString(v interface{}) bool {
	switch val := v.(type) {
	case string:
		return val != ""
	case int, int64, uint64:
		return true
	default:
		return false
	}
}

func allStrings(list []interface{}) bool {
	for _, e := range list {
		if _, ok := e.(string); !ok {
			return false
		}
	}
	return true
}

func allScalars(list []interface{}) bool {
	for _, e := range list {
		switch e.(type) {
		case string, bool, int, int64, uint64, float64:
		default:
			return false
		}
	}
	return true
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
