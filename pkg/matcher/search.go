package matcher

import (
	"context"
	"strconv"

	"github.com/ekaya-inc/ekaya-match/pkg/terms"
	"github.com/ekaya-inc/ekaya-match/pkg/workerpool"
)

// search finds the best candidate in pool for every query, in query order.
func (m *Matcher) search(ctx context.Context, queries, pool []terms.TermSet, workers int) ([]candidate, error) {
	if workers < 2 || len(queries) < 2 {
		out := make([]candidate, len(queries))
		for i, q := range queries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = bestCandidate(q, pool, nil)
		}
		return out, nil
	}

	items := make([]workerpool.Item[candidate], len(queries))
	for i, q := range queries {
		items[i] = workerpool.Item[candidate]{
			ID: strconv.Itoa(i),
			Execute: func(ctx context.Context) (candidate, error) {
				return bestCandidate(q, pool, nil), nil
			},
		}
	}

	wp := workerpool.New(workerpool.Config{MaxConcurrent: workers}, m.logger)
	results := workerpool.Process(ctx, wp, items, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]candidate, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out[i] = r.Value
	}
	return out, nil
}

// termCache expands each distinct label once per run.
type termCache struct {
	expander *terms.Expander
	sets     map[string]terms.TermSet
}

func newTermCache(expander *terms.Expander) *termCache {
	return &termCache{expander: expander, sets: make(map[string]terms.TermSet)}
}

func (c *termCache) get(label string) terms.TermSet {
	if ts, ok := c.sets[label]; ok {
		return ts
	}
	ts := c.expander.Expand(label)
	c.sets[label] = ts
	return ts
}

func (c *termCache) expandAll(labels []string) []terms.TermSet {
	out := make([]terms.TermSet, len(labels))
	for i, l := range labels {
		out[i] = c.get(l)
	}
	return out
}

func (c *termCache) size() int {
	return len(c.sets)
}
