package session

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation log. Sequence order is
// authoritative; Timestamp is informational.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one bounded conversational context. Messages[0] is always the
// pinned system message. MessageCount counts user+assistant messages ever
// appended and is not reset by trimming.
type Session struct {
	ID           string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Stats is an aggregate snapshot across all live sessions.
type Stats struct {
	ActiveSessions        int     `json:"active_sessions"`
	TotalMessages         int     `json:"total_messages"`
	AvgMessagesPerSession float64 `json:"avg_messages_per_session"`
}
