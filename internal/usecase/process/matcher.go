package process

import "strings"

// DefaultPromptTokens are the substrings that mark a child output chunk as
// a request for input.
var DefaultPromptTokens = []string{"?", "enter", "input"}

// PromptMatcher decides whether a chunk of child stdout is asking for input.
type PromptMatcher interface {
	Match(chunk string) bool
}

// MatcherFunc adapts a function to PromptMatcher.
type MatcherFunc func(chunk string) bool

// Match calls f(chunk).
func (f MatcherFunc) Match(chunk string) bool { return f(chunk) }

// TokenMatcher matches chunks containing any of its tokens, ignoring case.
// It is a heuristic: ordinary output that mentions "enter" is reported as a
// prompt and prompts phrased without a token are missed.
type TokenMatcher struct {
	tokens []string
}

// NewTokenMatcher returns a matcher for the given tokens. Blank tokens are
// ignored; with no tokens left, DefaultPromptTokens are used.
func NewTokenMatcher(tokens ...string) *TokenMatcher {
	m := &TokenMatcher{}
	for _, tok := range tokens {
		if tok = strings.ToLower(strings.TrimSpace(tok)); tok != "" {
			m.tokens = append(m.tokens, tok)
		}
	}
	if len(m.tokens) == 0 {
		m.tokens = append(m.tokens, DefaultPromptTokens...)
	}
	return m
}

// Match implements PromptMatcher.
func (m *TokenMatcher) Match(chunk string) bool {
	lower := strings.ToLower(chunk)
	for _, tok := range m.tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Tokens returns the lowercased tokens the matcher looks for.
func (m *TokenMatcher) Tokens() []string {
	out := make([]string, len(m.tokens))
	copy(out, m.tokens)
	return out
}
