// Package matcher pairs the values of a source column with the values of a
// target column.
//
// A run has two passes. The forward pass finds, for every source value, the
// highest-scoring target; at or above the threshold it is a Match, below it
// a source mismatch. The reverse pass then scores every target whose text
// was not consumed by a forward match against all source values and reports
// the ones below the threshold as target mismatches. A high reverse score is
// never turned into a Match.
//
// Both passes compare every value with every value on the other side, so a
// run costs O(N×M) scorer calls. Term sets are computed once per distinct
// label, but the pairwise scan itself is not pruned; columns with tens of
// thousands of distinct values take minutes, not seconds.
package matcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/similarity"
	"github.com/ekaya-inc/ekaya-match/pkg/terms"
)

// Options control a single run.
type Options struct {
	// Threshold is the minimum confidence (0-100) for a Match.
	Threshold int
	// Workers bounds parallel best-candidate searches. Values below 2 run sequentially.
	Workers int
	// ExclusiveTargets lets each target be claimed by at most one forward
	// match. Later source values pick among the unclaimed targets. Always
	// runs sequentially because each claim depends on the previous ones.
	ExclusiveTargets bool
}

// DefaultOptions returns the default threshold with a sequential run.
func DefaultOptions() Options {
	return Options{Threshold: models.DefaultThreshold, Workers: 1}
}

// Validate checks the threshold range.
func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > similarity.MaxScore {
		return fmt.Errorf("%w: got %d", apperrors.ErrInvalidThreshold, o.Threshold)
	}
	return nil
}

// Matcher runs two-way matching. It holds no per-run state and is safe for
// concurrent use.
type Matcher struct {
	scorer *similarity.Scorer
	logger *zap.Logger
}

// New creates a Matcher.
func New(scorer *similarity.Scorer, logger *zap.Logger) *Matcher {
	if scorer == nil {
		scorer = similarity.NewScorer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		scorer: scorer,
		logger: logger.Named("matcher"),
	}
}

// candidate is the best opposite-side value for one query.
// index is -1 and score is models.NoCandidateConfidence when nothing was compared.
type candidate struct {
	index int
	score int
}

var noCandidate = candidate{index: -1, score: models.NoCandidateConfidence}

// Match classifies every source and target value. It returns either a
// complete result or an error; a cancelled ctx yields ctx.Err() and no result.
func (m *Matcher) Match(ctx context.Context, source, target []models.Entry, opts Options) (*models.MatchResultSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	cache := newTermCache(m.scorer.Expander())
	srcLabels := labels(source)
	tgtLabels := labels(target)
	srcTerms := cache.expandAll(srcLabels)
	tgtTerms := cache.expandAll(tgtLabels)

	var (
		forward []candidate
		err     error
	)
	if opts.ExclusiveTargets {
		forward, err = exclusiveSearch(ctx, srcTerms, tgtTerms, opts.Threshold)
	} else {
		forward, err = m.search(ctx, srcTerms, tgtTerms, opts.Workers)
	}
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	result := models.NewMatchResultSet()
	consumed := make(map[string]struct{})
	for i, c := range forward {
		if c.index >= 0 && c.score >= opts.Threshold {
			result.Matches = append(result.Matches, models.MatchRecord{
				SourceValue: srcLabels[i],
				TargetValue: tgtLabels[c.index],
				MatchedID:   target[c.index].ID,
				Confidence:  c.score,
				Direction:   models.DirectionSourceToTarget,
			})
			consumed[tgtLabels[c.index]] = struct{}{}
			continue
		}
		result.SourceMismatches = append(result.SourceMismatches, models.MismatchRecord{
			Value:         srcLabels[i],
			BestCandidate: labelAt(tgtLabels, c.index),
			Confidence:    c.score,
			Direction:     models.DirectionSourceToTarget,
		})
	}

	// Targets are skipped by value text, so duplicates of a matched target
	// are skipped too.
	var pending []int
	for j, label := range tgtLabels {
		if _, ok := consumed[label]; !ok {
			pending = append(pending, j)
		}
	}
	pendingTerms := make([]terms.TermSet, len(pending))
	for k, j := range pending {
		pendingTerms[k] = tgtTerms[j]
	}

	reverse, err := m.search(ctx, pendingTerms, srcTerms, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("reverse pass: %w", err)
	}
	for k, c := range reverse {
		if c.score >= opts.Threshold {
			continue
		}
		j := pending[k]
		result.TargetMismatches = append(result.TargetMismatches, models.MismatchRecord{
			Value:         tgtLabels[j],
			ID:            target[j].ID,
			BestCandidate: labelAt(srcLabels, c.index),
			Confidence:    c.score,
			Direction:     models.DirectionTargetToSource,
		})
	}

	m.logger.Debug("Matching complete",
		zap.Int("source_values", len(source)),
		zap.Int("target_values", len(target)),
		zap.Int("distinct_labels", cache.size()),
		zap.Int("matches", len(result.Matches)),
		zap.Int("source_mismatches", len(result.SourceMismatches)),
		zap.Int("target_mismatches", len(result.TargetMismatches)),
		zap.Bool("exclusive_targets", opts.ExclusiveTargets),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// bestCandidate returns the first highest-scoring entry of pool. Entries
// marked in skip are not considered.
func bestCandidate(query terms.TermSet, pool []terms.TermSet, skip []bool) candidate {
	best := noCandidate
	for j, ts := range pool {
		if skip != nil && skip[j] {
			continue
		}
		if s := similarity.ScoreTerms(query, ts); s > best.score {
			best = candidate{index: j, score: s}
			if s == similarity.MaxScore {
				break
			}
		}
	}
	return best
}

// exclusiveSearch is the forward pass when each target may be claimed once.
func exclusiveSearch(ctx context.Context, queries, pool []terms.TermSet, threshold int) ([]candidate, error) {
	claimed := make([]bool, len(pool))
	out := make([]candidate, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := bestCandidate(q, pool, claimed)
		if c.index >= 0 && c.score >= threshold {
			claimed[c.index] = true
		}
		out[i] = c
	}
	return out, nil
}

func labels(entries []models.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label()
	}
	return out
}

func labelAt(labels []string, index int) *string {
	if index < 0 {
		return nil
	}
	v := labels[index]
	return &v
}
