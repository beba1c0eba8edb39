package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/evanschultz/daylog/internal/domain"
)

// rootNode is the arena index of the un-persisted hierarchy root.
const rootNode = 0

// projectNode is one hierarchy segment. Parents are referenced by arena index.
type projectNode struct {
	segment   string
	parent    int
	children  map[string]int
	id        int64
	persisted bool
}

// ProjectResolver maps project paths to persisted hierarchy ids, creating
// missing rows through a ProjectWriter. It is owned by one import call.
type ProjectResolver struct {
	writer  ProjectWriter
	nodes   []projectNode
	byPath  map[string]int
	inserts int
}

// NewProjectResolver constructs a resolver with an empty hierarchy.
func NewProjectResolver(writer ProjectWriter) *ProjectResolver {
	return &ProjectResolver{
		writer: writer,
		nodes:  []projectNode{{parent: -1, children: map[string]int{}}},
		byPath: map[string]int{},
	}
}

// Load builds the in-memory tree from persisted rows.
func (r *ProjectResolver) Load(rows []domain.ProjectRow) error {
	byID := make(map[int64]domain.ProjectRow, len(rows))
	for _, row := range rows {
		if _, dup := byID[row.ID]; dup {
			return fmt.Errorf("%w: duplicate project id %d", ErrCorruptHierarchy, row.ID)
		}
		byID[row.ID] = row
	}

	placed := make(map[int64]int, len(rows))
	var place func(row domain.ProjectRow, depth int) (int, error)
	place = func(row domain.ProjectRow, depth int) (int, error) {
		if idx, ok := placed[row.ID]; ok {
			return idx, nil
		}
		if depth > len(rows) {
			return 0, fmt.Errorf("%w: cycle at project id %d", ErrCorruptHierarchy, row.ID)
		}
		parent := rootNode
		if row.ParentID != nil {
			parentRow, ok := byID[*row.ParentID]
			if !ok {
				return 0, fmt.Errorf("%w: project %d references missing parent %d", ErrCorruptHierarchy, row.ID, *row.ParentID)
			}
			idx, err := place(parentRow, depth+1)
			if err != nil {
				return 0, err
			}
			parent = idx
		}
		if existing, ok := r.nodes[parent].children[row.Name]; ok {
			return 0, fmt.Errorf("%w: segment %q appears twice under one parent (ids %d, %d)", ErrCorruptHierarchy, row.Name, r.nodes[existing].id, row.ID)
		}
		idx := r.attach(parent, row.Name)
		r.nodes[idx].id = row.ID
		r.nodes[idx].persisted = true
		placed[row.ID] = idx
		return idx, nil
	}

	for _, row := range rows {
		if _, err := place(row, 0); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the leaf id for path, inserting missing ancestors top-down.
func (r *ProjectResolver) Resolve(ctx context.Context, path string) (int64, error) {
	if idx, ok := r.byPath[path]; ok && r.nodes[idx].persisted {
		return r.nodes[idx].id, nil
	}
	if err := domain.ValidatePath(path, nil); err != nil {
		return 0, err
	}

	cur := rootNode
	for _, segment := range domain.SplitPath(path) {
		next, ok := r.nodes[cur].children[segment]
		if !ok {
			next = r.attach(cur, segment)
		}
		if !r.nodes[next].persisted {
			var parentID *int64
			if cur != rootNode {
				id := r.nodes[cur].id
				parentID = &id
			}
			id, err := r.writer.InsertProject(ctx, segment, parentID)
			if err != nil {
				return 0, fmt.Errorf("insert project %q: %w", r.pathOf(next), err)
			}
			r.nodes[next].id = id
			r.nodes[next].persisted = true
			r.inserts++
		}
		cur = next
	}
	return r.nodes[cur].id, nil
}

// ResolveAll resolves every distinct path in lexicographic order and returns
// the path to id mapping.
func (r *ProjectResolver) ResolveAll(ctx context.Context, paths []string) (map[string]int64, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	out := make(map[string]int64, len(sorted))
	for _, path := range sorted {
		id, err := r.Resolve(ctx, path)
		if err != nil {
			return nil, err
		}
		out[path] = id
	}
	return out, nil
}

// ID returns the cached id of a resolved or loaded path.
func (r *ProjectResolver) ID(path string) (int64, bool) {
	idx, ok := r.byPath[path]
	if !ok || !r.nodes[idx].persisted {
		return 0, false
	}
	return r.nodes[idx].id, true
}

// Paths returns every known path, sorted.
func (r *ProjectResolver) Paths() []string {
	out := make([]string, 0, len(r.byPath))
	for path, idx := range r.byPath {
		if r.nodes[idx].persisted {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}

// Inserted reports how many hierarchy rows this resolver created.
func (r *ProjectResolver) Inserted() int {
	return r.inserts
}

func (r *ProjectResolver) attach(parent int, segment string) int {
	idx := len(r.nodes)
	r.nodes = append(r.nodes, projectNode{
		segment:  segment,
		parent:   parent,
		children: map[string]int{},
	})
	r.nodes[parent].children[segment] = idx
	r.byPath[r.pathOf(idx)] = idx
	return idx
}

func (r *ProjectResolver) pathOf(idx int) string {
	var segments []string
	for cur := idx; cur != rootNode; cur = r.nodes[cur].parent {
		segments = append(segments, r.nodes[cur].segment)
	}
	slices.Reverse(segments)
	return domain.JoinPath(segments...)
}
