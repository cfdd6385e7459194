package service

import (
	"sort"

	"github.com/talentbridge/messaging/internal/model"
)

// Aggregate groups messages touching selfID into one conversation per
// counterpart, most recent first. Ties keep input order.
func Aggregate(selfID string, messages []model.Message) []model.Conversation {
	index := make(map[string]int)
	var convs []model.Conversation

	for _, m := range messages {
		if m.SenderID != selfID && m.ReceiverID != selfID {
			continue
		}
		counterpart := m.Counterpart(selfID)
		if counterpart == selfID {
			continue
		}

		i, ok := index[counterpart]
		if !ok {
			i = len(convs)
			index[counterpart] = i
			convs = append(convs, model.Conversation{
				CounterpartID: counterpart,
				LastMessage:   m,
			})
		}
		c := &convs[i]

		// Later input wins on equal timestamps, matching ascending store order.
		if !m.CreatedAt.Before(c.LastMessage.CreatedAt) {
			c.LastMessage = m
		}
		if m.ApplicationID != nil {
			c.ApplicationID = m.ApplicationID
		}
		if m.ReceiverID == selfID && !m.Read {
			c.UnreadCount++
		}
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessage.CreatedAt.After(convs[j].LastMessage.CreatedAt)
	})

	return convs
}

// UnreadTotal sums unread counts across conversations.
func UnreadTotal(convs []model.Conversation) int {
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}
	return total
}

// mergeMessages returns base plus any extra message whose id is not in base,
// ordered by created_at ascending. Every id appears once.
func mergeMessages(base, extra []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]model.Message, 0, len(base)+len(extra))

	for _, m := range base {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range extra {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
