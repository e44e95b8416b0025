package store

// Interaction is one routed user turn and its latest feedback.
// MessageHash is the primary key; re-recording the same text replaces the row.
type Interaction struct {
	MessageHash       string   `json:"message_hash"`
	Message           string   `json:"message"`
	SelectedAgent     string   `json:"selected_agent"`
	UserRating        *int32   `json:"user_rating,omitempty"`        // 1-5
	ResponseRelevance *float64 `json:"response_relevance,omitempty"` // 0-1
	Timestamp         int64    `json:"timestamp"`
	UserID            string   `json:"user_id"`
	SessionID         string   `json:"session_id"`
}

// FindInteraction specifies conditions for listing interactions.
type FindInteraction struct {
	UserID        *string
	SelectedAgent *string
	Limit         int
}

// InteractionAgentStats aggregates interactions per selected agent.
type InteractionAgentStats struct {
	AgentName    string   `json:"agent_name"`
	Interactions int64    `json:"interactions"`
	AvgRating    *float64 `json:"avg_rating,omitempty"`
	AvgRelevance *float64 `json:"avg_relevance,omitempty"`
}

// FindUserAgentCounts selects a user's well-rated turns grouped by agent.
type FindUserAgentCounts struct {
	UserID    string
	MinRating int32
}

// UserAgentCount is the number of a user's well-rated turns handled by one agent.
type UserAgentCount struct {
	AgentName string `json:"agent_name"`
	Count     int64  `json:"count"`
}
