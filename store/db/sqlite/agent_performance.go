package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/agentrouter/store"
)

func (d *DB) UpsertAgentPerformance(ctx context.Context, upsert *store.AgentPerformance) error {
	stmt := `
		INSERT INTO agent_performance (agent_name, message_pattern, success_rate, avg_rating, interaction_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (agent_name, message_pattern) DO UPDATE SET
			success_rate = excluded.success_rate,
			avg_rating = excluded.avg_rating,
			interaction_count = excluded.interaction_count,
			last_updated = excluded.last_updated
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.AgentName,
		upsert.MessagePattern,
		upsert.SuccessRate,
		upsert.AvgRating,
		upsert.InteractionCount,
		upsert.LastUpdated,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert agent performance")
	}
	return nil
}

func (d *DB) GetAgentPerformance(ctx context.Context, agentName, messagePattern string) (*store.AgentPerformance, error) {
	list, err := d.listAgentPerformance(ctx,
		[]string{"agent_name = ?", "message_pattern = ?"},
		[]any{agentName, messagePattern})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListAgentPerformance(ctx context.Context, find *store.FindAgentPerformance) ([]*store.AgentPerformance, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.AgentName != nil {
		where, args = append(where, "agent_name = ?"), append(args, *find.AgentName)
	}
	if find.MinInteractionCount > 0 {
		where, args = append(where, "interaction_count >= ?"), append(args, find.MinInteractionCount)
	}
	return d.listAgentPerformance(ctx, where, args)
}

func (d *DB) listAgentPerformance(ctx context.Context, where []string, args []any) ([]*store.AgentPerformance, error) {
	query := `SELECT agent_name, message_pattern, success_rate, avg_rating, interaction_count, last_updated
		FROM agent_performance
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY agent_name, message_pattern`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agent performance")
	}
	defer rows.Close()

	var list []*store.AgentPerformance
	for rows.Next() {
		var perf store.AgentPerformance
		if err := rows.Scan(
			&perf.AgentName,
			&perf.MessagePattern,
			&perf.SuccessRate,
			&perf.AvgRating,
			&perf.InteractionCount,
			&perf.LastUpdated,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan agent performance")
		}
		list = append(list, &perf)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) ListAgentPatternStats(ctx context.Context) ([]*store.AgentPatternStats, error) {
	query := `SELECT agent_name, COUNT(*), SUM(interaction_count), MAX(last_updated)
		FROM agent_performance
		GROUP BY agent_name
		ORDER BY agent_name`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agent pattern stats")
	}
	defer rows.Close()

	var list []*store.AgentPatternStats
	for rows.Next() {
		var stats store.AgentPatternStats
		if err := rows.Scan(&stats.AgentName, &stats.PatternCount, &stats.TotalInteractions, &stats.LastUpdated); err != nil {
			return nil, errors.Wrap(err, "failed to scan agent pattern stats")
		}
		list = append(list, &stats)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) DeleteAllAgentPerformance(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM agent_performance"); err != nil {
		return errors.Wrap(err, "failed to delete agent performance")
	}
	return nil
}
