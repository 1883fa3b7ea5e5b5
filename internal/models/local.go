package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/types"
)

// localReplies are canned companion lines cycled by the local source.
var localReplies = []string{
	"嗯嗯，我在听呢。%s……然后呢？",
	"诶，%s？说来听听嘛。",
	"原来是这样，%s。今天辛苦啦。",
}

// localSource answers offline with a canned reply, used when no API key is
// configured and in demos.
type localSource struct {
	name string
}

// NewLocalSource returns the keyless fallback source.
func NewLocalSource(name string) candidate.Source {
	if name == "" {
		name = "local"
	}
	return &localSource{name: name}
}

func (s *localSource) Name() string {
	return s.name
}

func (s *localSource) Family() string {
	return "local"
}

func (s *localSource) Call(_ context.Context, messages []types.Message, _ map[string]any) (string, *candidate.Usage, error) {
	userText := strings.TrimSpace(types.UserText(messages))
	if userText == "" {
		return "", nil, fmt.Errorf("no user message to answer")
	}
	snippet := []rune(userText)
	if len(snippet) > 12 {
		snippet = append(snippet[:12], '…')
	}
	reply := fmt.Sprintf(localReplies[len(userText)%len(localReplies)], string(snippet))
	return reply, nil, nil
}
