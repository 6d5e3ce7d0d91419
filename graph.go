package nestedpool

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
)

// Graph is a validated nested pool tree. It is read-only once built.
type Graph struct {
	pools      []*PoolNode // ascending level
	byAddress  map[common.Address]*PoolNode
	child      map[common.Address]*PoolNode
	parent     map[common.Address]*PoolNode
	mainTokens map[common.Address]Token
	root       *PoolNode
}

// NewGraph validates state and builds its graph.
//
// Every token of a pool must be the pool's own receipt token, a main token or
// another pool of the tree. A non-leaf pool has exactly one child, a pool has
// at most one parent, there is exactly one root, and levels strictly increase
// from child to parent. All violations are reported together in a
// *StructuralError.
func NewGraph(state NestedPoolState) (*Graph, error) {
	if len(state.Pools) == 0 {
		return nil, &StructuralError{Err: ErrEmptyState}
	}

	var violations *multierror.Error
	violate := func(format string, args ...any) {
		violations = multierror.Append(violations, fmt.Errorf(format, args...))
	}

	g := &Graph{
		pools:      make([]*PoolNode, 0, len(state.Pools)),
		byAddress:  make(map[common.Address]*PoolNode, len(state.Pools)),
		child:      make(map[common.Address]*PoolNode),
		parent:     make(map[common.Address]*PoolNode),
		mainTokens: make(map[common.Address]Token, len(state.MainTokens)),
	}

	ids := make(map[common.Hash]struct{}, len(state.Pools))
	for i := range state.Pools {
		pool := clonePool(state.Pools[i])
		if !pool.Kind.Valid() {
			violate("pool %s: unsupported kind %s", pool.Address.Hex(), pool.Kind)
		}
		if _, dup := g.byAddress[pool.Address]; dup {
			violate("pool address %s repeats", pool.Address.Hex())
			continue
		}
		if _, dup := ids[pool.ID]; dup {
			violate("pool id %s repeats", pool.ID.Hex())
			continue
		}
		ids[pool.ID] = struct{}{}
		g.byAddress[pool.Address] = pool
		g.pools = append(g.pools, pool)
	}

	for _, token := range state.MainTokens {
		if _, isPool := g.byAddress[token.Address]; isPool {
			violate("main token %s is a pool receipt token", token.Address.Hex())
			continue
		}
		g.mainTokens[token.Address] = token
	}

	for _, pool := range g.pools {
		var children []*PoolNode
		seen := make(map[common.Address]struct{}, len(pool.Tokens))
		for _, token := range pool.Tokens {
			if _, dup := seen[token.Address]; dup {
				violate("pool %s lists token %s twice", pool.Address.Hex(), token.Address.Hex())
				continue
			}
			seen[token.Address] = struct{}{}

			if token.Address == pool.Address {
				continue
			}
			if child, ok := g.byAddress[token.Address]; ok {
				children = append(children, child)
				continue
			}
			if _, ok := g.mainTokens[token.Address]; !ok {
				violate("pool %s: token %s is neither a main token nor a pool of the tree",
					pool.Address.Hex(), token.Address.Hex())
			}
		}

		if len(children) > 1 {
			violate("pool %s has %d child pools, expected at most one", pool.Address.Hex(), len(children))
			continue
		}
		if len(children) == 0 {
			continue
		}

		child := children[0]
		if prev, ok := g.parent[child.Address]; ok {
			violate("pool %s is consumed by both %s and %s",
				child.Address.Hex(), prev.Address.Hex(), pool.Address.Hex())
			continue
		}
		if child.Level >= pool.Level {
			violate("pool %s (level %d) must sit below its parent %s (level %d)",
				child.Address.Hex(), child.Level, pool.Address.Hex(), pool.Level)
		}
		g.child[pool.Address] = child
		g.parent[child.Address] = pool
	}

	var roots []*PoolNode
	for _, pool := range g.pools {
		if _, ok := g.parent[pool.Address]; !ok {
			roots = append(roots, pool)
		}
	}
	switch len(roots) {
	case 0:
		violate("pool tree has no root")
	case 1:
		g.root = roots[0]
	default:
		violate("pool tree has %d roots, expected one", len(roots))
	}

	if err := violations.ErrorOrNil(); err != nil {
		return nil, &StructuralError{Err: err}
	}

	sort.SliceStable(g.pools, func(i, j int) bool {
		return g.pools[i].Level < g.pools[j].Level
	})
	return g, nil
}

// clonePool copies a pool node with its tokens sorted by index.
func clonePool(p PoolNode) *PoolNode {
	clone := p
	clone.Tokens = make([]PoolToken, len(p.Tokens))
	copy(clone.Tokens, p.Tokens)
	sort.SliceStable(clone.Tokens, func(i, j int) bool {
		return clone.Tokens[i].Index < clone.Tokens[j].Index
	})
	return &clone
}

// Root returns the root pool.
func (g *Graph) Root() *PoolNode {
	return g.root
}

// Pools returns the pools in ascending level order.
func (g *Graph) Pools() []*PoolNode {
	out := make([]*PoolNode, len(g.pools))
	copy(out, g.pools)
	return out
}

// Len returns the number of pools.
func (g *Graph) Len() int {
	return len(g.pools)
}

// Pool returns the pool with the given address.
func (g *Graph) Pool(address common.Address) (*PoolNode, bool) {
	p, ok := g.byAddress[address]
	return p, ok
}

// Child returns the pool whose receipt token pool consumes, if any.
func (g *Graph) Child(pool *PoolNode) (*PoolNode, bool) {
	c, ok := g.child[pool.Address]
	return c, ok
}

// Parent returns the pool consuming pool's receipt token, if any.
func (g *Graph) Parent(pool *PoolNode) (*PoolNode, bool) {
	p, ok := g.parent[pool.Address]
	return p, ok
}

// IsMainToken reports whether address is one of the tree's main tokens.
func (g *Graph) IsMainToken(address common.Address) bool {
	_, ok := g.mainTokens[address]
	return ok
}

// MainToken returns the main token with the given address.
func (g *Graph) MainToken(address common.Address) (Token, bool) {
	t, ok := g.mainTokens[address]
	return t, ok
}

// HoldsToken reports whether pool lists token, ignoring its own receipt token.
func (g *Graph) HoldsToken(pool *PoolNode, token common.Address) bool {
	if token == pool.Address {
		return false
	}
	for _, t := range pool.Tokens {
		if t.Address == token {
			return true
		}
	}
	return false
}

// PathTo returns the chain of pools from the root down to the shallowest pool
// holding token. It returns false when no pool of the tree holds token.
func (g *Graph) PathTo(token common.Address) ([]*PoolNode, bool) {
	var path []*PoolNode
	for pool := g.root; pool != nil; {
		path = append(path, pool)
		if g.HoldsToken(pool, token) {
			return path, true
		}
		next, ok := g.child[pool.Address]
		if !ok {
			break
		}
		pool = next
	}
	return nil, false
}

// Chain returns every pool from the root down to the deepest leaf.
func (g *Graph) Chain() []*PoolNode {
	var chain []*PoolNode
	for pool := g.root; pool != nil; pool = g.child[pool.Address] {
		chain = append(chain, pool)
	}
	return chain
}
