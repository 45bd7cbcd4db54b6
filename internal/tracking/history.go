package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	apperrors "runmatrix/internal/errors"
)

// StepKey is the history key holding the step index of a row
const StepKey = "_step"

const historyQuery = `query HistoryPage($entity: String!, $project: String!, $run: String!, $minStep: Int64!, $maxStep: Int64!, $pageSize: Int!) {
  project(name: $project, entityName: $entity) {
    run(name: $run) {
      history(minStep: $minStep, maxStep: $maxStep, samples: $pageSize)
    }
  }
}`

const sampledHistoryQuery = `query SampledHistory($entity: String!, $project: String!, $run: String!, $specs: [JSONString!]!) {
  project(name: $project, entityName: $entity) {
    run(name: $run) {
      sampledHistory(specs: $specs)
    }
  }
}`

type historyData struct {
	Project *struct {
		Run *struct {
			History []string `json:"history"`
		} `json:"run"`
	} `json:"project"`
}

type sampledHistoryData struct {
	Project *struct {
		Run *struct {
			SampledHistory []json.RawMessage `json:"sampledHistory"`
		} `json:"run"`
	} `json:"project"`
}

type sampleSpec struct {
	Keys    []string `json:"keys"`
	Samples int      `json:"samples"`
}

// History implements Service
func (c *Client) History(ctx context.Context, run Run, keys []string, samples int) ([]Snapshot, error) {
	if samples > 0 {
		return c.sampledHistory(ctx, run, keys, samples)
	}
	return c.scanHistory(ctx, run)
}

// scanHistory walks the full history in step windows of scanPageSize
func (c *Client) scanHistory(ctx context.Context, run Run) ([]Snapshot, error) {
	const operation = "scan history"

	var out []Snapshot
	for minStep := int64(0); minStep <= run.LastStep; minStep += int64(c.scanPageSize) {
		vars := map[string]interface{}{
			"entity":   run.Entity,
			"project":  run.Project,
			"run":      run.ID,
			"minStep":  minStep,
			"maxStep":  minStep + int64(c.scanPageSize),
			"pageSize": c.scanPageSize,
		}

		var data historyData
		if err := c.do(ctx, operation, historyQuery, vars, &data); err != nil {
			return nil, err
		}
		if data.Project == nil || data.Project.Run == nil {
			return nil, apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("run %s not found", run.ID))
		}

		for _, row := range data.Project.Run.History {
			snap, err := parseRow([]byte(row))
			if err != nil {
				return nil, apperrors.NewRemoteServiceError(operation, 0, err)
			}
			out = append(out, snap)
		}
	}

	c.logger.DebugContext(ctx, "scanned history",
		slog.String("run", run.Name),
		slog.Int("rows", len(out)))

	return out, nil
}

// sampledHistory asks for up to samples rows per key and joins the rows of
// all keys by step
func (c *Client) sampledHistory(ctx context.Context, run Run, keys []string, samples int) ([]Snapshot, error) {
	const operation = "sampled history"

	specs := make([]string, len(keys))
	for i, key := range keys {
		b, err := json.Marshal(sampleSpec{Keys: []string{StepKey, key}, Samples: samples})
		if err != nil {
			return nil, apperrors.NewRemoteServiceError(operation, 0, err)
		}
		specs[i] = string(b)
	}

	vars := map[string]interface{}{
		"entity":  run.Entity,
		"project": run.Project,
		"run":     run.ID,
		"specs":   specs,
	}

	var data sampledHistoryData
	if err := c.do(ctx, operation, sampledHistoryQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Project == nil || data.Project.Run == nil {
		return nil, apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("run %s not found", run.ID))
	}

	byStep := make(map[int64]*Snapshot)
	for _, raw := range data.Project.Run.SampledHistory {
		payload := []byte(raw)
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			payload = []byte(encoded)
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(sanitizeJSON(payload), &rows); err != nil {
			return nil, apperrors.NewRemoteServiceError(operation, 0,
				apperrors.NewParsingError("failed to decode sampled rows", err))
		}
		for _, row := range rows {
			snap, err := parseRow(row)
			if err != nil {
				return nil, apperrors.NewRemoteServiceError(operation, 0, err)
			}
			existing, ok := byStep[snap.Step]
			if !ok {
				s := snap
				byStep[snap.Step] = &s
				continue
			}
			for k, v := range snap.Values {
				existing.Values[k] = v
			}
		}
	}

	out := make([]Snapshot, 0, len(byStep))
	for _, s := range byStep {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })

	return out, nil
}

// parseRow decodes one history row. Keys with null values are kept as NaN,
// non-numeric values are dropped.
func parseRow(row []byte) (Snapshot, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(sanitizeJSON(row), &raw); err != nil {
		return Snapshot{}, apperrors.NewParsingError("failed to decode history row", err)
	}

	snap := Snapshot{Values: make(map[string]float64, len(raw))}
	for k, v := range raw {
		f, ok := numeric(v)
		if !ok {
			continue
		}
		snap.Values[k] = f
	}
	if step, ok := snap.Values[StepKey]; ok && !math.IsNaN(step) {
		snap.Step = int64(step)
	}
	return snap, nil
}

func numeric(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case nil:
		return math.NaN(), true
	case string:
		switch val {
		case nanToken:
			return math.NaN(), true
		case posInfToken:
			return math.Inf(1), true
		case negInfToken:
			return math.Inf(-1), true
		}
	}
	return 0, false
}
