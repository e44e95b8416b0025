package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/agentrouter/store"
)

func (d *DB) UpsertInteraction(ctx context.Context, upsert *store.Interaction) error {
	stmt := `INSERT INTO interactions (message_hash, message, selected_agent, user_rating, response_relevance, timestamp, user_id, session_id)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (message_hash) DO UPDATE SET
			message = EXCLUDED.message,
			selected_agent = EXCLUDED.selected_agent,
			user_rating = EXCLUDED.user_rating,
			response_relevance = EXCLUDED.response_relevance,
			timestamp = EXCLUDED.timestamp,
			user_id = EXCLUDED.user_id,
			session_id = EXCLUDED.session_id`

	_, err := d.db.ExecContext(ctx, stmt,
		upsert.MessageHash, upsert.Message, upsert.SelectedAgent,
		upsert.UserRating, upsert.ResponseRelevance,
		upsert.Timestamp, upsert.UserID, upsert.SessionID)
	if err != nil {
		return fmt.Errorf("failed to upsert interaction: %w", err)
	}
	return nil
}

func (d *DB) GetInteraction(ctx context.Context, messageHash string) (*store.Interaction, error) {
	list, err := d.listInteractions(ctx, []string{"message_hash = " + placeholder(1)}, []any{messageHash}, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListInteractions(ctx context.Context, find *store.FindInteraction) ([]*store.Interaction, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		args = append(args, *find.UserID)
		where = append(where, "user_id = "+placeholder(len(args)))
	}
	if find.SelectedAgent != nil {
		args = append(args, *find.SelectedAgent)
		where = append(where, "selected_agent = "+placeholder(len(args)))
	}
	return d.listInteractions(ctx, where, args, find.Limit)
}

func (d *DB) listInteractions(ctx context.Context, where []string, args []any, limit int) ([]*store.Interaction, error) {
	query := `SELECT message_hash, message, selected_agent, user_rating, response_relevance, timestamp, user_id, session_id
		FROM interactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var list []*store.Interaction
	for rows.Next() {
		var (
			interaction store.Interaction
			rating      sql.NullInt32
			relevance   sql.NullFloat64
		)
		if err := rows.Scan(&interaction.MessageHash, &interaction.Message, &interaction.SelectedAgent,
			&rating, &relevance, &interaction.Timestamp, &interaction.UserID, &interaction.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if rating.Valid {
			interaction.UserRating = &rating.Int32
		}
		if relevance.Valid {
			interaction.ResponseRelevance = &relevance.Float64
		}
		list = append(list, &interaction)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction rows: %w", err)
	}

	return list, nil
}

func (d *DB) CountInteractions(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

func (d *DB) ListInteractionAgentStats(ctx context.Context) ([]*store.InteractionAgentStats, error) {
	query := `SELECT selected_agent, COUNT(*), AVG(user_rating)::DOUBLE PRECISION, AVG(response_relevance)
		FROM interactions
		WHERE user_rating IS NOT NULL OR response_relevance IS NOT NULL
		GROUP BY selected_agent
		ORDER BY selected_agent`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list interaction agent stats: %w", err)
	}
	defer rows.Close()

	var list []*store.InteractionAgentStats
	for rows.Next() {
		var (
			stats     store.InteractionAgentStats
			rating    sql.NullFloat64
			relevance sql.NullFloat64
		)
		if err := rows.Scan(&stats.AgentName, &stats.Interactions, &rating, &relevance); err != nil {
			return nil, fmt.Errorf("failed to scan interaction agent stats: %w", err)
		}
		if rating.Valid {
			stats.AvgRating = &rating.Float64
		}
		if relevance.Valid {
			stats.AvgRelevance = &relevance.Float64
		}
		list = append(list, &stats)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction agent stats rows: %w", err)
	}

	return list, nil
}

func (d *DB) ListUserAgentCounts(ctx context.Context, find *store.FindUserAgentCounts) ([]*store.UserAgentCount, error) {
	query := `SELECT selected_agent, COUNT(*)
		FROM interactions
		WHERE user_id = ` + placeholder(1) + ` AND user_rating >= ` + placeholder(2) + `
		GROUP BY selected_agent
		ORDER BY COUNT(*) DESC, selected_agent`

	rows, err := d.db.QueryContext(ctx, query, find.UserID, find.MinRating)
	if err != nil {
		return nil, fmt.Errorf("failed to list user agent counts: %w", err)
	}
	defer rows.Close()

	var list []*store.UserAgentCount
	for rows.Next() {
		var count store.UserAgentCount
		if err := rows.Scan(&count.AgentName, &count.Count); err != nil {
			return nil, fmt.Errorf("failed to scan user agent count: %w", err)
		}
		list = append(list, &count)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user agent count rows: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteAllInteractions(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM interactions"); err != nil {
		return fmt.Errorf("failed to delete interactions: %w", err)
	}
	return nil
}
