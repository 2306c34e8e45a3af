// Package prompts implements the prompt-rendering half of C9: storing
// named prompt templates and rendering them against supplied arguments
// via the sprig-augmented template engine.
package prompts

import (
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/prompttpl"
)

// Template is one named, registered prompt.
type Template struct {
	Prompt  mcp.Prompt
	Message string // raw text/template source rendered against arguments
}

type Service struct {
	engine *prompttpl.Engine

	mu    sync.RWMutex
	index map[string]Template
}

func New() *Service {
	return &Service{engine: prompttpl.New(), index: make(map[string]Template)}
}

func (s *Service) Register(t Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[t.Prompt.Name] = t
}

func (s *Service) List() []mcp.Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcp.Prompt, 0, len(s.index))
	for _, t := range s.index {
		out = append(out, t.Prompt)
	}
	return out
}

// Render looks up name and fills its message template against args,
// validating that every required argument was supplied.
func (s *Service) Render(name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	t, ok := s.index[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	for _, arg := range t.Prompt.Arguments {
		if arg.Required {
			if _, ok := args[arg.Name]; !ok {
				return "", fmt.Errorf("prompt %q missing required argument %q", name, arg.Name)
			}
		}
	}

	return s.engine.RenderGoTemplate(t.Message, args)
}
