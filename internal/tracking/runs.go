package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "runmatrix/internal/errors"
	"runmatrix/internal/query"
)

var _ Service = (*Client)(nil)

// RunOrder matches the default listing order of the service SDKs
const RunOrder = "-created_at"

const runsQuery = `query Runs($project: String!, $entity: String!, $cursor: String, $perPage: Int = 50, $order: String, $filters: JSONString) {
  project(name: $project, entityName: $entity) {
    runs(filters: $filters, after: $cursor, first: $perPage, order: $order) {
      edges {
        node {
          id
          name
          displayName
          group
          jobType
          tags
          historyLineCount
          summaryMetrics
        }
        cursor
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`

type runNode struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName"`
	Group            string   `json:"group"`
	JobType          string   `json:"jobType"`
	Tags             []string `json:"tags"`
	HistoryLineCount int      `json:"historyLineCount"`
	SummaryMetrics   string   `json:"summaryMetrics"`
}

type runsData struct {
	Project *struct {
		Runs struct {
			Edges []struct {
				Node   runNode `json:"node"`
				Cursor string  `json:"cursor"`
			} `json:"edges"`
			PageInfo struct {
				EndCursor   string `json:"endCursor"`
				HasNextPage bool   `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"runs"`
	} `json:"project"`
}

// ListRuns implements Service. All pages are fetched before returning.
func (c *Client) ListRuns(ctx context.Context, entity, project string, filter query.Filter) ([]Run, error) {
	const operation = "list runs"

	filters, err := json.Marshal(filter)
	if err != nil {
		return nil, apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("failed to encode filter: %w", err))
	}

	var (
		runs   []Run
		cursor interface{}
	)
	for page := 1; ; page++ {
		vars := map[string]interface{}{
			"entity":  entity,
			"project": project,
			"cursor":  cursor,
			"perPage": c.pageSize,
			"order":   RunOrder,
			"filters": string(filters),
		}

		var data runsData
		if err := c.do(ctx, operation, runsQuery, vars, &data); err != nil {
			return nil, err
		}
		if data.Project == nil {
			return nil, apperrors.NewRemoteServiceError(operation, 0,
				fmt.Errorf("project %s/%s not found", entity, project))
		}

		for _, edge := range data.Project.Runs.Edges {
			runs = append(runs, edge.Node.toRun(entity, project))
		}

		c.logger.DebugContext(ctx, "fetched runs page",
			slog.String("project", entity+"/"+project),
			slog.Int("page", page),
			slog.Int("runs", len(data.Project.Runs.Edges)))

		info := data.Project.Runs.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		cursor = info.EndCursor
	}

	return runs, nil
}

func (n runNode) toRun(entity, project string) Run {
	r := Run{
		ID:               n.Name,
		Name:             n.DisplayName,
		Entity:           entity,
		Project:          project,
		Group:            n.Group,
		JobType:          n.JobType,
		Tags:             n.Tags,
		HistoryLineCount: n.HistoryLineCount,
		LastStep:         int64(n.HistoryLineCount) - 1,
	}
	if r.Name == "" {
		r.Name = n.Name
	}

	if n.SummaryMetrics != "" {
		var summary struct {
			Step *float64 `json:"_step"`
		}
		if err := json.Unmarshal(sanitizeJSON([]byte(n.SummaryMetrics)), &summary); err == nil && summary.Step != nil {
			r.LastStep = int64(*summary.Step)
		}
	}

	return r
}
