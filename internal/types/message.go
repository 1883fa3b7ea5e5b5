// Package types holds shared domain types.
package types

// Message is one turn entry in the conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserText returns the content of the last user message, or "".
func UserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
