package ports

import (
	"context"

	"gocalib/domain/elicitation"
)

// ProjectLoader loads an elicitation project for a named case
type ProjectLoader interface {
	Load(ctx context.Context, caseName string) (*elicitation.Project, error)
}
