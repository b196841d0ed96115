package graph

import (
	"context"
	"sort"

	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/store"
)

// Graph is the relationship-graph surface over a metadata store and the
// dense index used for auto-linking. It owns no state of its own:
// relationships live in Metadata, keyed by (source, target, type).
type Graph struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
}

func NewGraph(metadata store.MetadataStore, vectors store.VectorStore) *Graph {
	return &Graph{Metadata: metadata, Vectors: vectors}
}

// Relate creates or replaces a typed edge from src to tgt. A strength of
// zero is treated as the default, 1.0.
func (g *Graph) Relate(ctx context.Context, src, tgt string, relType store.RelationshipType, strength float64) error {
	if src == tgt {
		return ferrors.InvalidInputf("a memory cannot relate to itself")
	}
	if _, ok := store.ValidRelationshipTypes[relType]; !ok {
		return ferrors.InvalidInputf("unknown relationship type %q", relType)
	}
	if strength == 0 {
		strength = 1.0
	}
	if strength < 0 || strength > 1 {
		return ferrors.InvalidInputf("strength must be in [0,1], got %v", strength)
	}

	if _, err := g.Metadata.GetMemory(ctx, src); err != nil {
		return err
	}
	if _, err := g.Metadata.GetMemory(ctx, tgt); err != nil {
		return err
	}

	return g.Metadata.SaveRelationship(ctx, &store.Relationship{
		SourceID: src, TargetID: tgt, RelationshipType: relType, Strength: strength,
	})
}

// Related performs an iterative BFS from id out to depth hops (clamped
// to 5; callers such as the memory_graph tool substitute DefaultDepth, 2,
// when none is given), returning every reached memory's shallowest hop
// count and the strength accumulated along the path that achieved it.
// Cycles are broken by an explicit visited set; id itself is never
// included in the result except when depth is 0.
func (g *Graph) Related(ctx context.Context, id string, depth int) ([]Hop, error) {
	if depth <= 0 {
		return []Hop{{ID: id, MinHop: 0, AccumulatedStrength: 1.0}}, nil
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}

	visited := map[string]*Hop{id: {ID: id, MinHop: 0, AccumulatedStrength: 1.0}}
	frontier := []string{id}

	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, current := range frontier {
			edges, err := g.Metadata.GetRelationships(ctx, current)
			if err != nil {
				return nil, err
			}
			base := visited[current].AccumulatedStrength
			for _, e := range edges {
				accumulated := base * e.Strength
				if existing, seen := visited[e.TargetID]; seen {
					if existing.MinHop == hop && accumulated > existing.AccumulatedStrength {
						existing.AccumulatedStrength = accumulated
					}
					continue
				}
				visited[e.TargetID] = &Hop{ID: e.TargetID, MinHop: hop, AccumulatedStrength: accumulated}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}

	out := make([]Hop, 0, len(visited))
	for _, h := range visited {
		if h.ID == id {
			continue
		}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinHop != out[j].MinHop {
			return out[i].MinHop < out[j].MinHop
		}
		if out[i].AccumulatedStrength != out[j].AccumulatedStrength {
			return out[i].AccumulatedStrength > out[j].AccumulatedStrength
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AutoLink runs a dense-only similarity search over the target's own
// embedding, excluding itself, and creates related_to edges for every
// candidate at or above threshold, up to maxLinks. Re-running it for
// the same memory produces the same edge set, since each edge is
// created with the same (source, target, type) key and cosine-derived
// strength.
func (g *Graph) AutoLink(ctx context.Context, id string, threshold float64, maxLinks int) ([]LinkResult, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}

	mem, err := g.Metadata.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(mem.Embedding) == 0 {
		return nil, ferrors.InvalidInputf("memory %q has no embedding to auto-link from", id)
	}

	candidates, err := g.Vectors.FilteredSearch(ctx, mem.Embedding, maxLinks*4, func(candidateID string) bool {
		return candidateID != id
	})
	if err != nil {
		return nil, err
	}

	links := make([]LinkResult, 0, maxLinks)
	for _, c := range candidates {
		cos := float64(c.Score)
		if cos < threshold {
			continue
		}
		if err := g.Relate(ctx, id, c.ID, store.RelationshipRelatedTo, cos); err != nil {
			return nil, err
		}
		links = append(links, LinkResult{TargetID: c.ID, Strength: cos})
		if len(links) >= maxLinks {
			break
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].Strength != links[j].Strength {
			return links[i].Strength > links[j].Strength
		}
		return links[i].TargetID < links[j].TargetID
	})
	return links, nil
}
