package transcript

import (
	"context"
	"slices"
)

// Storer persists transcript nodes. Put is idempotent: storing a node whose
// hash already exists is a no-op that reports false.
type Storer interface {
	// Put stores a node and reports whether it was new.
	Put(ctx context.Context, node *Node) (bool, error)

	// Get retrieves a node by hash, or ErrNotFound.
	Get(ctx context.Context, hash string) (*Node, error)

	// List returns every node ordered by creation time.
	List(ctx context.Context) ([]*Node, error)

	// Leaves returns nodes that nothing points at, i.e. conversation heads.
	Leaves(ctx context.Context) ([]*Node, error)

	// Ancestry returns the path from a node back to its root (node first).
	Ancestry(ctx context.Context, hash string) ([]*Node, error)

	Close() error
}

// ErrNotFound is returned when a node doesn't exist in the store.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	if e.Hash == "" {
		return "node not found"
	}
	return "node not found: " + e.Hash
}

// History returns the conversation ending at hash in chronological order.
func History(ctx context.Context, s Storer, hash string) ([]*Node, error) {
	nodes, err := s.Ancestry(ctx, hash)
	if err != nil {
		return nil, err
	}
	slices.Reverse(nodes)
	return nodes, nil
}

// ancestry walks parent links using get.
func ancestry(ctx context.Context, hash string, get func(context.Context, string) (*Node, error)) ([]*Node, error) {
	var out []*Node
	for next := &hash; next != nil; {
		n, err := get(ctx, *next)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		next = n.ParentHash
	}
	return out, nil
}
