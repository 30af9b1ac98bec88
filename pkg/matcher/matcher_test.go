package matcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

func newTestMatcher(t *testing.T) *Matcher {
	return New(nil, zaptest.NewLogger(t))
}

func withIDs(values ...string) []models.Entry {
	entries := make([]models.Entry, len(values))
	for i, v := range values {
		entries[i] = models.NewEntryWithID(v, fmt.Sprintf("T%d", i+1))
	}
	return entries
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func matchPairs(result *models.MatchResultSet) map[string]string {
	pairs := make(map[string]string, len(result.Matches))
	for _, m := range result.Matches {
		pairs[m.SourceValue] = m.TargetValue
	}
	return pairs
}

var (
	scenarioSource = []string{"Other Reverses", "Cash", "Cash and Cash equivalents", "Preffered Equity"}
	scenarioTarget = []string{"Cash(s)", "CashandCashequivalents", "Pref.Equity", "Property Expenses"}
)

func TestMatch_Scenario(t *testing.T) {
	m := newTestMatcher(t)

	result, err := m.Match(context.Background(),
		models.EntriesFromValues(scenarioSource), withIDs(scenarioTarget...), DefaultOptions())
	require.NoError(t, err)

	// "Cash" and "Cash and Cash equivalents" both score 100 against "Cash(s)";
	// the first target in column order wins the tie.
	assert.Equal(t, map[string]string{
		"Cash":                      "Cash(s)",
		"Cash and Cash equivalents": "Cash(s)",
		"Preffered Equity":          "Pref.Equity",
	}, matchPairs(result))
	for _, rec := range result.Matches {
		assert.Equal(t, models.DirectionSourceToTarget, rec.Direction)
		assert.Equal(t, 100, rec.Confidence)
	}
	assert.Equal(t, "T1", deref(result.Matches[0].MatchedID))
	assert.Equal(t, "T3", deref(result.Matches[2].MatchedID))

	require.Len(t, result.SourceMismatches, 1)
	assert.Equal(t, models.MismatchRecord{
		Value:         "Other Reverses",
		BestCandidate: result.SourceMismatches[0].BestCandidate,
		Confidence:    62,
		Direction:     models.DirectionSourceToTarget,
	}, result.SourceMismatches[0])
	assert.Equal(t, "Property Expenses", deref(result.SourceMismatches[0].BestCandidate))

	// CashandCashequivalents reverse-scores 81 against its best source, which
	// is above the threshold, so it is neither a match nor a mismatch.
	require.Len(t, result.TargetMismatches, 1)
	tm := result.TargetMismatches[0]
	assert.Equal(t, "Property Expenses", tm.Value)
	assert.Equal(t, "T4", deref(tm.ID))
	assert.Equal(t, "Other Reverses", deref(tm.BestCandidate))
	assert.Equal(t, 62, tm.Confidence)
	assert.Equal(t, models.DirectionTargetToSource, tm.Direction)
}

func TestMatch_ScenarioExclusiveTargets(t *testing.T) {
	m := newTestMatcher(t)
	opts := DefaultOptions()
	opts.ExclusiveTargets = true

	result, err := m.Match(context.Background(),
		models.EntriesFromValues(scenarioSource), withIDs(scenarioTarget...), opts)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Cash":                      "Cash(s)",
		"Cash and Cash equivalents": "CashandCashequivalents",
		"Preffered Equity":          "Pref.Equity",
	}, matchPairs(result))
	assert.Equal(t, 81, result.Matches[1].Confidence)
	assert.Equal(t, "T2", deref(result.Matches[1].MatchedID))

	require.Len(t, result.SourceMismatches, 1)
	assert.Equal(t, "Other Reverses", result.SourceMismatches[0].Value)

	require.Len(t, result.TargetMismatches, 1)
	assert.Equal(t, "Property Expenses", result.TargetMismatches[0].Value)
	assert.Equal(t, 62, result.TargetMismatches[0].Confidence)
}

func TestMatch_BlankTargets(t *testing.T) {
	m := newTestMatcher(t)
	source := append(append([]string{}, scenarioSource...), "Other Income(Expense),Inclusive")
	target := append(append([]string{}, scenarioTarget...), "", "  ")

	result, err := m.Match(context.Background(),
		models.EntriesFromValues(source), withIDs(target...), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Property Expenses", matchPairs(result)["Other Income(Expense),Inclusive"])
	assert.Equal(t, 93, result.Matches[len(result.Matches)-1].Confidence)

	// Blank targets score 0 against everything; the first source wins the tie.
	require.Len(t, result.TargetMismatches, 2)
	for i, tm := range result.TargetMismatches {
		assert.Equal(t, "", tm.Value)
		assert.Equal(t, fmt.Sprintf("T%d", i+5), deref(tm.ID))
		assert.Equal(t, "Other Reverses", deref(tm.BestCandidate))
		assert.Equal(t, 0, tm.Confidence)
	}
}

func TestMatch_ThresholdBoundary(t *testing.T) {
	m := newTestMatcher(t)
	source := models.EntriesFromValues([]string{"Cash and Cash equivalents"})
	target := withIDs("CashandCashequivalents")

	tests := []struct {
		threshold int
		matched   bool
	}{
		{80, true},
		{81, true},
		{82, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("threshold=%d", tt.threshold), func(t *testing.T) {
			result, err := m.Match(context.Background(), source, target, Options{Threshold: tt.threshold})
			require.NoError(t, err)
			if tt.matched {
				require.Len(t, result.Matches, 1)
				assert.Equal(t, 81, result.Matches[0].Confidence)
				assert.Empty(t, result.SourceMismatches)
			} else {
				assert.Empty(t, result.Matches)
				require.Len(t, result.SourceMismatches, 1)
				assert.Equal(t, 81, result.SourceMismatches[0].Confidence)
				require.Len(t, result.TargetMismatches, 1)
			}
		})
	}
}

func TestMatch_EmptyTarget(t *testing.T) {
	m := newTestMatcher(t)

	result, err := m.Match(context.Background(),
		models.EntriesFromValues([]string{"Cash", "Amt Due"}), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.Empty(t, result.TargetMismatches)
	require.Len(t, result.SourceMismatches, 2)
	for _, sm := range result.SourceMismatches {
		assert.Nil(t, sm.BestCandidate)
		assert.False(t, sm.HasCandidate())
		assert.Equal(t, models.NoCandidateConfidence, sm.Confidence)
	}
}

func TestMatch_EmptySource(t *testing.T) {
	m := newTestMatcher(t)

	result, err := m.Match(context.Background(), nil, withIDs("Cash", "Amt Due"), Options{Threshold: 0})
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.Empty(t, result.SourceMismatches)
	require.Len(t, result.TargetMismatches, 2)
	assert.Equal(t, "T2", deref(result.TargetMismatches[1].ID))
	assert.Equal(t, models.NoCandidateConfidence, result.TargetMismatches[0].Confidence)
}

func TestMatch_BothEmpty(t *testing.T) {
	result, err := newTestMatcher(t).Match(context.Background(), nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total())
	assert.NotNil(t, result.Matches)
}

func TestMatch_InvalidThreshold(t *testing.T) {
	m := newTestMatcher(t)
	for _, threshold := range []int{-1, 101} {
		_, err := m.Match(context.Background(), nil, nil, Options{Threshold: threshold})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidThreshold)
	}
}

func TestMatch_DuplicateTargetsConsumedByText(t *testing.T) {
	m := newTestMatcher(t)

	result, err := m.Match(context.Background(),
		models.EntriesFromValues([]string{"Cash"}), withIDs("Cash(s)", " Cash(s) ", "Zebra"), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "T1", deref(result.Matches[0].MatchedID))
	require.Len(t, result.TargetMismatches, 1)
	assert.Equal(t, "Zebra", result.TargetMismatches[0].Value)
}

func TestMatch_Cancelled(t *testing.T) {
	m := newTestMatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, opts := range []Options{
		DefaultOptions(),
		{Threshold: 70, Workers: 4},
		{Threshold: 70, ExclusiveTargets: true},
	} {
		result, err := m.Match(ctx, models.EntriesFromValues(scenarioSource), withIDs(scenarioTarget...), opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	}
}

func TestMatch_ParallelEqualsSequential(t *testing.T) {
	m := newTestMatcher(t)
	source := models.EntriesFromValues(append(scenarioSource,
		"Other Income(Expense),Inclusive", "Customer ID", "Amt Due", "Prod Description", "Acct Balance"))
	target := withIDs(append(scenarioTarget,
		"Cust Identifier", "Amount Outstanding", "Product Desc", "Account Bal", "")...)

	sequential, err := m.Match(context.Background(), source, target, DefaultOptions())
	require.NoError(t, err)

	parallel, err := m.Match(context.Background(), source, target, Options{Threshold: 70, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestMatch_Deterministic(t *testing.T) {
	m := newTestMatcher(t)
	source := models.EntriesFromValues(scenarioSource)
	target := withIDs(scenarioTarget...)

	first, err := m.Match(context.Background(), source, target, DefaultOptions())
	require.NoError(t, err)
	second, err := m.Match(context.Background(), source, target, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
