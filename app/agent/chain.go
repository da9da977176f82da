package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"livestock/model"
	"livestock/types"
)

// strategy is one generation attempt: a model plus the prompt built for it.
type strategy struct {
	model  string
	prompt string
	opts   model.GenerateOptions
	// shape post-processes a successful generation
	shape func(string) string
}

// runChain tries strategies in order and returns the first success.
// A missing credential ends the chain early since no model can succeed.
func runChain(ctx context.Context, gen model.Generator, chain []strategy) (string, error) {
	var errs []error
	for i, s := range chain {
		if s.model == "" {
			continue
		}
		text, err := gen.Generate(ctx, s.model, s.prompt, s.opts)
		if err == nil {
			if s.shape != nil {
				text = s.shape(text)
			}
			return text, nil
		}

		log.Printf("[RAG] Model %s failed (attempt %d/%d): %v", s.model, i+1, len(chain), err)
		errs = append(errs, err)
		if errors.Is(err, types.ErrServiceUnavailable) {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no model configured", types.ErrGenerationFailed)
	}
	return "", errors.Join(errs...)
}
