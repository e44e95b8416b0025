package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/agentrouter/store"
)

func (d *DB) UpsertInteraction(ctx context.Context, upsert *store.Interaction) error {
	stmt := `
		INSERT INTO interactions (message_hash, message, selected_agent, user_rating, response_relevance, timestamp, user_id, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_hash) DO UPDATE SET
			message = excluded.message,
			selected_agent = excluded.selected_agent,
			user_rating = excluded.user_rating,
			response_relevance = excluded.response_relevance,
			timestamp = excluded.timestamp,
			user_id = excluded.user_id,
			session_id = excluded.session_id
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.MessageHash,
		upsert.Message,
		upsert.SelectedAgent,
		upsert.UserRating,
		upsert.ResponseRelevance,
		upsert.Timestamp,
		upsert.UserID,
		upsert.SessionID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert interaction")
	}
	return nil
}

func (d *DB) GetInteraction(ctx context.Context, messageHash string) (*store.Interaction, error) {
	list, err := d.listInteractions(ctx, []string{"message_hash = ?"}, []any{messageHash}, 1)
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
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.SelectedAgent != nil {
		where, args = append(where, "selected_agent = ?"), append(args, *find.SelectedAgent)
	}
	return d.listInteractions(ctx, where, args, find.Limit)
}

func (d *DB) listInteractions(ctx context.Context, where []string, args []any, limit int) ([]*store.Interaction, error) {
	query := `SELECT message_hash, message, selected_agent, user_rating, response_relevance, timestamp, user_id, session_id
		FROM interactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interactions")
	}
	defer rows.Close()

	var list []*store.Interaction
	for rows.Next() {
		var (
			interaction store.Interaction
			rating      sql.NullInt32
			relevance   sql.NullFloat64
		)
		if err := rows.Scan(
			&interaction.MessageHash,
			&interaction.Message,
			&interaction.SelectedAgent,
			&rating,
			&relevance,
			&interaction.Timestamp,
			&interaction.UserID,
			&interaction.SessionID,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan interaction")
		}
		if rating.Valid {
			interaction.UserRating = &rating.Int32
		}
		if relevance.Valid {
			interaction.ResponseRelevance = &relevance.Float64
		}
		list = append(list, &interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) CountInteractions(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count interactions")
	}
	return count, nil
}

// ListInteractionAgentStats aggregates turns that carry feedback, grouped by agent.
func (d *DB) ListInteractionAgentStats(ctx context.Context) ([]*store.InteractionAgentStats, error) {
	query := `SELECT selected_agent, COUNT(*), AVG(user_rating), AVG(response_relevance)
		FROM interactions
		WHERE user_rating IS NOT NULL OR response_relevance IS NOT NULL
		GROUP BY selected_agent
		ORDER BY selected_agent`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interaction agent stats")
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
			return nil, errors.Wrap(err, "failed to scan interaction agent stats")
		}
		if rating.Valid {
			stats.AvgRating = &rating.Float64
		}
		if relevance.Valid {
			stats.AvgRelevance = &relevance.Float64
		}
		list = append(list, &stats)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) ListUserAgentCounts(ctx context.Context, find *store.FindUserAgentCounts) ([]*store.UserAgentCount, error) {
	query := `SELECT selected_agent, COUNT(*)
		FROM interactions
		WHERE user_id = ? AND user_rating >= ?
		GROUP BY selected_agent
		ORDER BY COUNT(*) DESC, selected_agent`

	rows, err := d.db.QueryContext(ctx, query, find.UserID, find.MinRating)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user agent counts")
	}
	defer rows.Close()

	var list []*store.UserAgentCount
	for rows.Next() {
		var count store.UserAgentCount
		if err := rows.Scan(&count.AgentName, &count.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan user agent count")
		}
		list = append(list, &count)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) DeleteAllInteractions(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM interactions"); err != nil {
		return errors.Wrap(err, "failed to delete interactions")
	}
	return nil
}
