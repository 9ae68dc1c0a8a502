package generate

import (
	"github.com/lucidate/scribe/internal/domain"
)

// Providers maps a provider name from the model registry to its Generator.
type Providers map[string]domain.Generator

// Provider names accepted by the model registry.
const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)
