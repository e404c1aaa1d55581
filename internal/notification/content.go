package notification

import (
	"fmt"

	"github.com/Youssaou51/Bright/pkg/fcm"
)

// Content is the notification derived from a change event.
type Content struct {
	Title string
	Body  string
	Type  string
	// RecordID is sent as a string because FCM data values must be strings.
	RecordID string
}

// ContentFor maps an event to its notification. ok is false for tables that
// do not notify.
func ContentFor(event ChangeEvent) (content Content, ok bool) {
	r := event.Record
	switch event.Table {
	case TablePosts:
		content = Content{
			Title: "New post",
			Body:  fmt.Sprintf("%s: %s", r.Username, r.Caption),
		}
	case TableComments:
		content = Content{
			Title: "New comment",
			Body:  fmt.Sprintf("%s (on post %s)", r.Content, r.PostID),
		}
	case TableReports:
		name := r.Name
		if name == "" {
			name = "A report"
		}
		content = Content{
			Title: "New report",
			Body:  fmt.Sprintf("%s was just added.", name),
		}
	default:
		return Content{}, false
	}

	content.Type = event.Table.String()
	content.RecordID = r.ID.String()
	return content, true
}

// Message addresses the content to one device.
func (c Content) Message(token string) fcm.Message {
	return fcm.Message{
		Token: token,
		Title: c.Title,
		Body:  c.Body,
		Sound: fcm.DefaultSound,
		Data: map[string]string{
			"type":     c.Type,
			"recordId": c.RecordID,
		},
	}
}

// RecipientSet drops empty and duplicate tokens, keeping first-seen order.
func RecipientSet(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	set := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		set = append(set, t)
	}
	return set
}
