package trackingtest

import (
	"fmt"
	"strings"
)

// matches evaluates the Mongo-style filter subset the exporter produces
func matches(run Run, filter map[string]interface{}) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			if !anyClause(run, cond) {
				return false
			}
		case "$and":
			for _, c := range clauses(cond) {
				if !matches(run, c) {
					return false
				}
			}
		default:
			if !matchKey(run, key, cond) {
				return false
			}
		}
	}
	return true
}

func clauses(v interface{}) []map[string]interface{} {
	list, _ := v.([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func anyClause(run Run, v interface{}) bool {
	for _, c := range clauses(v) {
		if matches(run, c) {
			return true
		}
	}
	return false
}

func attribute(run Run, key string) (interface{}, bool) {
	switch {
	case key == "group":
		return run.Group, true
	case key == "jobType":
		return run.JobType, true
	case key == "display_name":
		return run.Name, true
	case key == "tags":
		tags := make([]interface{}, len(run.Tags))
		for i, t := range run.Tags {
			tags[i] = t
		}
		return tags, true
	case strings.HasPrefix(key, "config."):
		v, ok := run.Config[strings.TrimPrefix(key, "config.")]
		return v, ok
	case strings.HasPrefix(key, "summary_metrics."):
		v, ok := run.Summary[strings.TrimPrefix(key, "summary_metrics.")]
		return v, ok
	}
	return nil, false
}

func matchKey(run Run, key string, cond interface{}) bool {
	val, ok := attribute(run, key)
	if !ok {
		return false
	}

	ops, isOps := cond.(map[string]interface{})
	if !isOps {
		return equal(val, cond)
	}

	for op, arg := range ops {
		switch op {
		case "$in":
			if !in(val, arg) {
				return false
			}
		case "$gte":
			a, okA := toFloat(val)
			b, okB := toFloat(arg)
			if !okA || !okB || a < b {
				return false
			}
		case "$lte":
			a, okA := toFloat(val)
			b, okB := toFloat(arg)
			if !okA || !okB || a > b {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// in reports set membership; list attributes match when any element does
func in(val, set interface{}) bool {
	list, _ := set.([]interface{})
	candidates := []interface{}{val}
	if vals, ok := val.([]interface{}); ok {
		candidates = vals
	}
	for _, c := range candidates {
		for _, s := range list {
			if equal(c, s) {
				return true
			}
		}
	}
	return false
}

func equal(a, b interface{}) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
