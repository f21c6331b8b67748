package graph

import (
	"sort"
)

type edgeKey struct {
	a string
	b string
}

// Merge folds per-chunk extraction results into the aggregate character
// table and the undirected interaction-edge table. The fold is commutative
// and associative: any permutation of results produces the same tables.
//
// Mentions are summed per exact name; no alias resolution is attempted, so
// "Mr. Darcy" and "Darcy" stay separate rows. Edges are keyed by the sorted
// name pair, collapsing (A,B) and (B,A); each observation adds 1 to the
// count and its sentiment to the strength, with out-of-range sentiment
// coerced to 0. Characters come back sorted by mentions descending, ties
// keeping discovery order; edges come back in discovery order.
func Merge(results []ExtractionResult) ([]CharacterCount, []Edge) {
	mentions := make(map[string]int)
	nameOrder := make([]string, 0)

	edges := make(map[edgeKey]*Edge)
	edgeOrder := make([]edgeKey, 0)

	for _, res := range results {
		for _, c := range res.Characters {
			if _, seen := mentions[c.Name]; !seen {
				nameOrder = append(nameOrder, c.Name)
			}
			mentions[c.Name] += c.Mentions
		}
		for _, in := range res.Interactions {
			a, b := in.From, in.To
			if b < a {
				a, b = b, a
			}
			key := edgeKey{a: a, b: b}
			edge, ok := edges[key]
			if !ok {
				edge = &Edge{From: a, To: b}
				edges[key] = edge
				edgeOrder = append(edgeOrder, key)
			}
			sentiment := in.Sentiment
			if sentiment < -1 || sentiment > 1 {
				sentiment = 0
			}
			edge.Count++
			edge.Strength += sentiment
		}
	}

	characters := make([]CharacterCount, 0, len(nameOrder))
	for _, name := range nameOrder {
		characters = append(characters, CharacterCount{Name: name, Mentions: mentions[name]})
	}
	sort.SliceStable(characters, func(i, j int) bool {
		return characters[i].Mentions > characters[j].Mentions
	})

	interactions := make([]Edge, 0, len(edgeOrder))
	for _, key := range edgeOrder {
		interactions = append(interactions, *edges[key])
	}

	return characters, interactions
}
