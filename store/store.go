package store

import (
	"context"

	"github.com/hrygo/agentrouter/internal/profile"
)

// Store provides database access to the routing tables.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate creates or upgrades the routing tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) UpsertInteraction(ctx context.Context, upsert *Interaction) error {
	return s.driver.UpsertInteraction(ctx, upsert)
}

// GetInteraction returns nil without error when no row has the hash.
func (s *Store) GetInteraction(ctx context.Context, messageHash string) (*Interaction, error) {
	return s.driver.GetInteraction(ctx, messageHash)
}

func (s *Store) ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error) {
	return s.driver.ListInteractions(ctx, find)
}

func (s *Store) CountInteractions(ctx context.Context) (int64, error) {
	return s.driver.CountInteractions(ctx)
}

func (s *Store) ListInteractionAgentStats(ctx context.Context) ([]*InteractionAgentStats, error) {
	return s.driver.ListInteractionAgentStats(ctx)
}

func (s *Store) ListUserAgentCounts(ctx context.Context, find *FindUserAgentCounts) ([]*UserAgentCount, error) {
	return s.driver.ListUserAgentCounts(ctx, find)
}

func (s *Store) UpsertAgentPerformance(ctx context.Context, upsert *AgentPerformance) error {
	return s.driver.UpsertAgentPerformance(ctx, upsert)
}

// GetAgentPerformance returns nil without error when the pair has no row.
func (s *Store) GetAgentPerformance(ctx context.Context, agentName, messagePattern string) (*AgentPerformance, error) {
	return s.driver.GetAgentPerformance(ctx, agentName, messagePattern)
}

func (s *Store) ListAgentPerformance(ctx context.Context, find *FindAgentPerformance) ([]*AgentPerformance, error) {
	return s.driver.ListAgentPerformance(ctx, find)
}

func (s *Store) ListAgentPatternStats(ctx context.Context) ([]*AgentPatternStats, error) {
	return s.driver.ListAgentPatternStats(ctx)
}

// Reset deletes every interaction and performance row.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.driver.DeleteAllInteractions(ctx); err != nil {
		return err
	}
	return s.driver.DeleteAllAgentPerformance(ctx)
}
