//file: internal/topics/filter.go
package topics

import (
	"fmt"
	"strings"
	"sync"
)

// ValidateName validates a concrete topic name (no wildcards).
func ValidateName(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	if strings.Contains(topic, "+") || strings.Contains(topic, "#") {
		return fmt.Errorf("wildcards not allowed in topic names")
	}

	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if segment == "" && i != 0 && i != len(segments)-1 {
			return fmt.Errorf("empty segment not allowed in middle of topic")
		}
	}

	return nil
}

// ValidateFilter validates a subscription topic filter (wildcards allowed).
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("filter cannot be empty")
	}

	segments := strings.Split(filter, "/")
	for i, segment := range segments {
		// Allow empty segments for leading/trailing slashes
		if segment == "" && i != 0 && i != len(segments)-1 {
			return fmt.Errorf("empty segment not allowed in middle of filter")
		}

		if strings.Contains(segment, "#") {
			if segment != "#" {
				return fmt.Errorf("# wildcard must occupy entire segment")
			}
			if i != len(segments)-1 {
				return fmt.Errorf("# wildcard must be the last segment")
			}
		}

		if strings.Contains(segment, "+") {
			if segment != "+" {
				return fmt.Errorf("+ wildcard must occupy entire segment")
			}
		}
	}

	return nil
}

// Filter is a set of MQTT-style topic filters matched against topic
// names. The connectors use it to skip broker-internal topics and the
// control topic when translating broker activity into events.
type Filter struct {
	mu   sync.RWMutex
	root *filterNode
}

type filterNode struct {
	children map[string]*filterNode
	terminal bool
}

// NewFilter builds a filter set from the given patterns.
func NewFilter(patterns ...string) (*Filter, error) {
	f := &Filter{
		root: &filterNode{children: make(map[string]*filterNode)},
	}
	for _, pattern := range patterns {
		if err := f.Add(pattern); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Add inserts a filter pattern into the set.
func (f *Filter) Add(pattern string) error {
	if err := ValidateFilter(pattern); err != nil {
		return fmt.Errorf("invalid topic filter: %w", err)
	}

	segments := strings.Split(pattern, "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.root
	for _, segment := range segments {
		next, exists := current.children[segment]
		if !exists {
			next = &filterNode{children: make(map[string]*filterNode)}
			current.children[segment] = next
		}
		current = next
	}
	current.terminal = true

	return nil
}

// Matches reports whether any filter in the set matches the topic.
func (f *Filter) Matches(topic string) bool {
	if topic == "" {
		return false
	}

	segments := strings.Split(topic, "/")

	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.matches(f.root, segments, 0)
}

func (f *Filter) matches(node *filterNode, segments []string, depth int) bool {
	if node == nil {
		return false
	}

	if depth == len(segments) {
		return node.terminal
	}

	segment := segments[depth]

	// Exact segment match
	if child, ok := node.children[segment]; ok {
		if f.matches(child, segments, depth+1) {
			return true
		}
	}

	// Single-level wildcard
	if child, ok := node.children["+"]; ok {
		if f.matches(child, segments, depth+1) {
			return true
		}
	}

	// Multi-level wildcard swallows the rest
	if _, ok := node.children["#"]; ok {
		return true
	}

	return false
}
