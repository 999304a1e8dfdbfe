// Package criteria holds the catalog of rules sentences are evaluated against.
package criteria

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region registry

// Registry is a read-only, ordered set of criteria.
type Registry struct {
	ordered []eval.Criterion
	byID    map[string]int
}

// NewRegistry validates and indexes criteria. Order is preserved.
func NewRegistry(criteria ...eval.Criterion) (*Registry, error) {
	r := &Registry{
		ordered: make([]eval.Criterion, 0, len(criteria)),
		byID:    make(map[string]int, len(criteria)),
	}
	for _, c := range criteria {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, fmt.Errorf("criterion %q: empty id", c.Name)
		}
		if c.Weight <= 0 {
			return nil, fmt.Errorf("criterion %s: weight must be positive, got %v", c.ID, c.Weight)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("criterion %s: duplicate id", c.ID)
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		r.byID[c.ID] = len(r.ordered)
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Extend returns a new registry with extra criteria appended.
func (r *Registry) Extend(extra ...eval.Criterion) (*Registry, error) {
	all := make([]eval.Criterion, 0, len(r.ordered)+len(extra))
	all = append(all, r.ordered...)
	all = append(all, extra...)
	return NewRegistry(all...)
}

// #endregion registry

// #region lookups

// List returns every criterion in registry order.
func (r *Registry) List() []eval.Criterion {
	out := make([]eval.Criterion, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of criteria.
func (r *Registry) Len() int { return len(r.ordered) }

// Get looks up a criterion by id.
func (r *Registry) Get(id string) (eval.Criterion, error) {
	i, ok := r.byID[id]
	if !ok {
		return eval.Criterion{}, eval.Errorf(eval.KindNotFound, "unknown criterion %q", id)
	}
	return r.ordered[i], nil
}

// Select returns the named criteria in the order given. No ids selects all.
func (r *Registry) Select(ids ...string) ([]eval.Criterion, error) {
	if len(ids) == 0 {
		return r.List(), nil
	}
	out := make([]eval.Criterion, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, fmt.Errorf("criterion %s selected twice", id)
		}
		seen[id] = true
		c, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// #endregion lookups

// #region file-loader

type criteriaFile struct {
	Criteria []eval.Criterion `yaml:"criteria"`
}

// LoadFile reads additional criteria from a YAML file with a top-level
// criteria list.
func LoadFile(path string) ([]eval.Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria %s: %w", path, err)
	}
	var f criteriaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse criteria %s: %w", path, err)
	}
	return f.Criteria, nil
}

// #endregion file-loader
