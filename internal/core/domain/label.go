package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LabelKind distinguishes the two levels of the taxonomy tree.
type LabelKind string

const (
	// KindDomain is a top-level grouping node. Domains are never candidate
	// labels for classification.
	KindDomain LabelKind = "domain"

	// KindLabel is a leaf label under a domain.
	KindLabel LabelKind = "label"
)

// Label is the persisted row form of a taxonomy node.
type Label struct {
	ID          uuid.UUID
	Name        string
	Kind        LabelKind
	Description string

	// ParentID is the owning domain for leaf labels; uuid.Nil for domains.
	ParentID  uuid.UUID
	CreatedAt time.Time
}

// Taxonomy is the two-level domain -> label tree held as an arena of nodes
// with integer indices and parent/child edges. The arena representation
// keeps cascade deletion simple and makes cycles impossible by
// construction: a node's parent must already exist when it is added and a
// leaf can never become a parent.
type Taxonomy struct {
	nodes    []Label
	index    map[uuid.UUID]int
	children map[int][]int
}

// NewTaxonomy builds an arena from persisted rows. Domains are inserted
// first so every leaf's parent is present; leaves with unknown parents are
// rejected.
func NewTaxonomy(rows []Label) (*Taxonomy, error) {
	t := &Taxonomy{
		index:    make(map[uuid.UUID]int, len(rows)),
		children: make(map[int][]int),
	}
	for _, row := range rows {
		if row.Kind == KindDomain {
			if _, err := t.add(row); err != nil {
				return nil, err
			}
		}
	}
	for _, row := range rows {
		if row.Kind == KindLabel {
			if _, err := t.add(row); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// add appends a node to the arena and wires the parent edge.
func (t *Taxonomy) add(row Label) (int, error) {
	if _, exists := t.index[row.ID]; exists {
		return 0, fmt.Errorf("label %q: %w", row.Name, ErrAlreadyExists)
	}
	switch row.Kind {
	case KindDomain:
		if row.ParentID != uuid.Nil {
			return 0, fmt.Errorf("domain %q must not have a parent: %w", row.Name, ErrValidation)
		}
	case KindLabel:
		parent, ok := t.index[row.ParentID]
		if !ok {
			return 0, fmt.Errorf("label %q: parent domain %s: %w", row.Name, row.ParentID, ErrNotFound)
		}
		if t.nodes[parent].Kind != KindDomain {
			return 0, fmt.Errorf("label %q: parent is not a domain: %w", row.Name, ErrValidation)
		}
	default:
		return 0, fmt.Errorf("%w: label kind %q", ErrUnsupportedType, row.Kind)
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, row)
	t.index[row.ID] = idx
	if row.Kind == KindLabel {
		parent := t.index[row.ParentID]
		t.children[parent] = append(t.children[parent], idx)
	}
	return idx, nil
}

// AddDomain inserts a top-level domain node.
func (t *Taxonomy) AddDomain(id uuid.UUID, name, description string) error {
	_, err := t.add(Label{ID: id, Name: name, Kind: KindDomain, Description: description, CreatedAt: time.Now().UTC()})
	return err
}

// AddLabel inserts a leaf label under an existing domain.
func (t *Taxonomy) AddLabel(id uuid.UUID, domainID uuid.UUID, name, description string) error {
	_, err := t.add(Label{
		ID: id, Name: name, Kind: KindLabel, Description: description,
		ParentID: domainID, CreatedAt: time.Now().UTC(),
	})
	return err
}

// Get returns the node for an id.
func (t *Taxonomy) Get(id uuid.UUID) (Label, bool) {
	idx, ok := t.index[id]
	if !ok {
		return Label{}, false
	}
	return t.nodes[idx], true
}

// Delete removes a node. Deleting a domain that still has children fails
// with ErrLabelInUse unless force is set, in which case the children are
// cascaded. Returns the ids actually removed.
func (t *Taxonomy) Delete(id uuid.UUID, force bool) ([]uuid.UUID, error) {
	idx, ok := t.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	node := t.nodes[idx]

	var doomed []int
	if node.Kind == KindDomain {
		kids := t.children[idx]
		if len(kids) > 0 && !force {
			return nil, fmt.Errorf("domain %q: %w", node.Name, ErrLabelInUse)
		}
		doomed = append(doomed, kids...)
	}
	doomed = append(doomed, idx)

	removed := make([]uuid.UUID, 0, len(doomed))
	drop := make(map[int]bool, len(doomed))
	for _, i := range doomed {
		removed = append(removed, t.nodes[i].ID)
		drop[i] = true
	}

	// Rebuild the arena without the doomed nodes. Rebuilding keeps the
	// index invariants trivially correct instead of patching edges.
	survivors := make([]Label, 0, len(t.nodes)-len(doomed))
	for i, n := range t.nodes {
		if !drop[i] {
			survivors = append(survivors, n)
		}
	}
	rebuilt, err := NewTaxonomy(survivors)
	if err != nil {
		return nil, fmt.Errorf("rebuild taxonomy: %w", err)
	}
	*t = *rebuilt
	return removed, nil
}

// Domains returns all top-level nodes sorted by name.
func (t *Taxonomy) Domains() []Label {
	var out []Label
	for _, n := range t.nodes {
		if n.Kind == KindDomain {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Children returns a domain's leaf labels sorted by name.
func (t *Taxonomy) Children(domainID uuid.UUID) []Label {
	idx, ok := t.index[domainID]
	if !ok {
		return nil
	}
	out := make([]Label, 0, len(t.children[idx]))
	for _, child := range t.children[idx] {
		out = append(out, t.nodes[child])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CandidateLabels returns the leaf label names eligible for classification,
// sorted for stable prompts.
func (t *Taxonomy) CandidateLabels() []string {
	var out []string
	for _, n := range t.nodes {
		if n.Kind == KindLabel {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of nodes in the arena.
func (t *Taxonomy) Len() int { return len(t.nodes) }

// Rows returns all nodes in arena order, domains first.
func (t *Taxonomy) Rows() []Label {
	out := make([]Label, len(t.nodes))
	copy(out, t.nodes)
	return out
}
