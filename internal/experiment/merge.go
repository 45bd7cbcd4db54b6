package experiment

import (
	"gopkg.in/yaml.v2"
)

// Merge returns base with override deep-merged on top. Nested mappings are
// merged key by key; scalars and lists in override replace the base value
// wholesale. Neither argument is modified and the result shares no mutable
// structure with either of them.
func Merge(base, override yaml.MapSlice) yaml.MapSlice {
	out := copyTree(base)

	for _, item := range override {
		key := keyString(item.Key)
		idx := indexOf(out, key)
		if idx < 0 {
			out = append(out, yaml.MapItem{Key: key, Value: DeepCopy(item.Value)})
			continue
		}

		baseTree, baseIsTree := out[idx].Value.(yaml.MapSlice)
		overTree, overIsTree := item.Value.(yaml.MapSlice)
		if baseIsTree && overIsTree {
			out[idx].Value = Merge(baseTree, overTree)
			continue
		}
		out[idx].Value = DeepCopy(item.Value)
	}

	return out
}

// DeepCopy copies mappings and lists recursively. Scalars are immutable and
// returned as is.
func DeepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case yaml.MapSlice:
		return copyTree(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = DeepCopy(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(val))
		for k, e := range val {
			out[k] = DeepCopy(e)
		}
		return out
	default:
		return val
	}
}

func copyTree(t yaml.MapSlice) yaml.MapSlice {
	out := make(yaml.MapSlice, 0, len(t))
	for _, item := range t {
		out = append(out, yaml.MapItem{Key: keyString(item.Key), Value: DeepCopy(item.Value)})
	}
	return out
}

func indexOf(t yaml.MapSlice, key string) int {
	for i, item := range t {
		if keyString(item.Key) == key {
			return i
		}
	}
	return -1
}
