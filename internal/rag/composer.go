package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/generation"
)

const contextSeparator = "\n---\n"

// BuildPrompt renders the grounding prompt for question over contexts.
func BuildPrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Based on the following context, answer the question.\n")
	b.WriteString("Contexts:\n")
	b.WriteString(strings.Join(contexts, contextSeparator))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// Composer asks a generator for an answer grounded in retrieved contexts.
type Composer struct {
	generator generation.Generator
}

// NewComposer creates a composer backed by generator.
func NewComposer(generator generation.Generator) *Composer {
	return &Composer{generator: generator}
}

// Compose makes exactly one generator call and returns its text verbatim.
func (c *Composer) Compose(ctx context.Context, question string, contexts []string) (string, error) {
	text, err := c.generator.Generate(ctx, BuildPrompt(question, contexts))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", apperr.NewProviderError("generation", "generate", err))
	}
	return text, nil
}
