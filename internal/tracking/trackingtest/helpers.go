package trackingtest

import "sort"

// Series builds a history logging one value of key per step, starting at
// step zero
func Series(key string, values ...float64) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{"_step": float64(i), key: v}
	}
	return rows
}

// Merge combines histories step by step. Rows sharing a step are joined.
func Merge(histories ...[]Row) []Row {
	var out []Row
	index := make(map[float64]int)
	for _, h := range histories {
		for _, row := range h {
			step, _ := toFloat(row["_step"])
			i, ok := index[step]
			if !ok {
				index[step] = len(out)
				cp := make(Row, len(row))
				for k, v := range row {
					cp[k] = v
				}
				out = append(out, cp)
				continue
			}
			for k, v := range row {
				out[i][k] = v
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := toFloat(out[i]["_step"])
		b, _ := toFloat(out[j]["_step"])
		return a < b
	})
	return out
}
