package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Interaction model related methods.
	UpsertInteraction(ctx context.Context, upsert *Interaction) error
	GetInteraction(ctx context.Context, messageHash string) (*Interaction, error)
	ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error)
	CountInteractions(ctx context.Context) (int64, error)
	ListInteractionAgentStats(ctx context.Context) ([]*InteractionAgentStats, error)
	ListUserAgentCounts(ctx context.Context, find *FindUserAgentCounts) ([]*UserAgentCount, error)
	DeleteAllInteractions(ctx context.Context) error

	// AgentPerformance model related methods.
	UpsertAgentPerformance(ctx context.Context, upsert *AgentPerformance) error
	GetAgentPerformance(ctx context.Context, agentName, messagePattern string) (*AgentPerformance, error)
	ListAgentPerformance(ctx context.Context, find *FindAgentPerformance) ([]*AgentPerformance, error)
	ListAgentPatternStats(ctx context.Context) ([]*AgentPatternStats, error)
	DeleteAllAgentPerformance(ctx context.Context) error
}
