package domain

import (
	"strings"
	"time"
)

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// ContactStats summarises the inbox for the admin dashboard.
type ContactStats struct {
	Total  int
	Unread int
	Read   int
}

// SummariseContactMessages counts read and unread messages.
func SummariseContactMessages(messages []ContactMessage) ContactStats {
	stats := ContactStats{Total: len(messages)}
	for _, m := range messages {
		if m.IsRead {
			stats.Read++
		} else {
			stats.Unread++
		}
	}
	return stats
}

// FilterContactMessages keeps messages whose name, email or body contains
// query, ignoring case. An empty query keeps everything.
func FilterContactMessages(messages []ContactMessage, query string) []ContactMessage {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return messages
	}
	out := make([]ContactMessage, 0, len(messages))
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Name), query) ||
			strings.Contains(strings.ToLower(m.Email), query) ||
			strings.Contains(strings.ToLower(m.Message), query) {
			out = append(out, m)
		}
	}
	return out
}
