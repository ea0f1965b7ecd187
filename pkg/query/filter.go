package query

import "sync"

// Filter holds the active query of a package list. A query that fails to parse
// never replaces the active one.
type Filter struct {
	mu   sync.RWMutex
	text string
	node Node
}

// NewFilter returns a filter that matches every package
func NewFilter() *Filter {
	return &Filter{}
}

// Set parses text and makes it the active query. On error the previous query
// stays in effect.
func (f *Filter) Set(text string) error {
	node, err := Parse(text)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.node = node
	return nil
}

// Text returns the active query text
func (f *Filter) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text
}

// Node returns the active AST, nil when no query is set
func (f *Filter) Node() Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.node
}

// Match evaluates the active query against p
func (f *Filter) Match(p Package) bool {
	return Match(p, f.Node())
}
