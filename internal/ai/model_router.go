package ai

import "strings"

type TaskKind string

const (
	TaskReport       TaskKind = "report"
	TaskConversation TaskKind = "conversation"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	PrimaryModel  string
	FallbackModel string
}

// ModelRouter picks model and sampling settings per task kind.
type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.PrimaryModel) == "" {
		config.PrimaryModel = "gemini-flash-lite-latest"
	}
	if strings.TrimSpace(config.FallbackModel) == "" {
		config.FallbackModel = "gemini-2.0-flash"
	}
	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskReport:
		return ModelProfile{
			PrimaryModel:    r.config.PrimaryModel,
			FallbackModel:   r.config.FallbackModel,
			Temperature:     0.3,
			MaxOutputTokens: 4096,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.PrimaryModel,
			FallbackModel:   r.config.FallbackModel,
			Temperature:     0.7,
			MaxOutputTokens: 1024,
		}
	}
}
