// Package token generates the public HC-XXXXXX identifiers of tasks.
package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/phrazzld/tasktrail-api/internal/domain"
)

// DefaultMaxAttempts caps how many candidates Generate tries before giving up.
const DefaultMaxAttempts = 20

// ErrExhausted is returned when every candidate collided with an existing token.
var ErrExhausted = errors.New("no free task token found")

// Checker reports whether a token is already held by any task, deleted or not.
type Checker interface {
	TokenExists(ctx context.Context, token string) (bool, error)
}

// Generator produces task tokens that are unique against a Checker.
type Generator struct {
	checker     Checker
	random      io.Reader
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandom replaces the entropy source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// WithMaxAttempts sets the candidate limit.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator creates a Generator backed by crypto/rand.
func NewGenerator(checker Checker, opts ...Option) *Generator {
	g := &Generator{
		checker:     checker,
		random:      rand.Reader,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a token no existing task holds. Store failures are
// returned as-is; a duplicate is never handed out.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", fmt.Errorf("failed to generate task token: %w", err)
		}

		exists, err := g.checker.TokenExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check task token: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}

func (g *Generator) candidate() (string, error) {
	alphabet := domain.TaskTokenAlphabet
	limit := big.NewInt(int64(len(alphabet)))

	var b strings.Builder
	b.Grow(len(domain.TaskTokenPrefix) + domain.TaskTokenRandomLength)
	b.WriteString(domain.TaskTokenPrefix)
	for i := 0; i < domain.TaskTokenRandomLength; i++ {
		n, err := rand.Int(g.random, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
