package store

// AgentPerformance is the running effectiveness of one agent for one message pattern.
type AgentPerformance struct {
	AgentName        string  `json:"agent_name"`
	MessagePattern   string  `json:"message_pattern"`
	SuccessRate      float64 `json:"success_rate"` // running relevance average, 0-1
	AvgRating        float64 `json:"avg_rating"`   // running normalized rating average, 0-1
	InteractionCount int32   `json:"interaction_count"`
	LastUpdated      int64   `json:"last_updated"`
}

// FindAgentPerformance specifies conditions for listing performance rows.
type FindAgentPerformance struct {
	AgentName           *string
	MinInteractionCount int32
}

// AgentPatternStats summarises the pattern rows of one agent.
type AgentPatternStats struct {
	AgentName         string `json:"agent_name"`
	PatternCount      int64  `json:"pattern_count"`
	TotalInteractions int64  `json:"total_interactions"`
	LastUpdated       int64  `json:"last_updated"`
}
