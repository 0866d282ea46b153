package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicRouter_LookupAndMiss(t *testing.T) {
	r := NewDeterministicRouter(map[string]map[int]Hop{
		"web": {1: {Target: "app", Class: 2}},
		"app": {2: {Target: ExitTarget}},
	})

	hop, ok := r.Next("web", 1)
	require.True(t, ok)
	assert.Equal(t, Hop{Target: "app", Class: 2}, hop)

	hop, ok = r.Next("app", 2)
	require.True(t, ok)
	assert.True(t, hop.IsExit())

	_, ok = r.Next("web", 7)
	assert.False(t, ok, "missing class must report no rule")
	_, ok = r.Next("db", 1)
	assert.False(t, ok, "missing node must report no rule")
	assert.False(t, r.Dynamic())
}

func TestHop_IsExit_CaseInsensitive(t *testing.T) {
	assert.True(t, Hop{Target: "exit"}.IsExit())
	assert.True(t, Hop{Target: "Exit"}.IsExit())
	assert.False(t, Hop{Target: "app"}.IsExit())
}

func TestProbabilisticRouter_RejectsBadTables(t *testing.T) {
	streams := NewStreams(1)
	stream := streams.Stream(StreamRouting)

	cases := []struct {
		name  string
		table map[string]map[int][]Arc
	}{
		{"empty arc list", map[string]map[int][]Arc{"web": {1: {}}}},
		{"sum below one", map[string]map[int][]Arc{"web": {1: {{Target: "app", Prob: 0.5}}}}},
		{"sum above one", map[string]map[int][]Arc{"web": {1: {{Target: "app", Prob: 0.7}, {Target: ExitTarget, Prob: 0.7}}}}},
		{"zero probability", map[string]map[int][]Arc{"web": {1: {{Target: "app", Prob: 0}, {Target: ExitTarget, Prob: 1.0}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProbabilisticRouter(tc.table, stream)
			assert.Error(t, err)
		})
	}

	_, err := NewProbabilisticRouter(map[string]map[int][]Arc{"web": {1: {{Target: ExitTarget, Prob: 1.0}}}}, nil)
	assert.Error(t, err, "nil stream must be rejected")
}

func TestProbabilisticRouter_AcceptsSumWithinTolerance(t *testing.T) {
	streams := NewStreams(1)
	table := map[string]map[int][]Arc{
		"web": {1: {
			{Target: "app", Class: 1, Prob: 1.0 / 3.0},
			{Target: "db", Class: 1, Prob: 1.0 / 3.0},
			{Target: ExitTarget, Prob: 1.0 / 3.0},
		}},
	}
	_, err := NewProbabilisticRouter(table, streams.Stream(StreamRouting))
	require.NoError(t, err, "float round-off within 1e-9 must pass")
}

func TestProbabilisticRouter_BranchFrequenciesMatchWeights(t *testing.T) {
	streams := NewStreams(42)
	table := map[string]map[int][]Arc{
		"web": {1: {
			{Target: "app", Class: 1, Prob: 0.7},
			{Target: ExitTarget, Prob: 0.3},
		}},
	}
	r, err := NewProbabilisticRouter(table, streams.Stream(StreamRouting))
	require.NoError(t, err)
	require.True(t, r.Dynamic())

	const draws = 100000
	exits := 0
	for i := 0; i < draws; i++ {
		hop, ok := r.Next("web", 1)
		require.True(t, ok)
		if hop.IsExit() {
			exits++
		}
	}
	got := float64(exits) / draws
	if math.Abs(got-0.3) > 0.01 {
		t.Errorf("exit frequency: got %v, want 0.3 +/- 0.01", got)
	}
}

func TestProbabilisticRouter_MissingRule(t *testing.T) {
	streams := NewStreams(1)
	table := map[string]map[int][]Arc{
		"web": {1: {{Target: ExitTarget, Prob: 1.0}}},
	}
	r, err := NewProbabilisticRouter(table, streams.Stream(StreamRouting))
	require.NoError(t, err)

	_, ok := r.Next("web", 9)
	assert.False(t, ok)
	_, ok = r.Next("db", 1)
	assert.False(t, ok)
}

func TestExitMap_ProjectionLifecycle(t *testing.T) {
	em := NewExitMap()
	assert.False(t, em.LeadsToExit("web", 1), "unset pair defaults to false")

	em.Set("web", 1, true)
	assert.True(t, em.LeadsToExit("web", 1))

	// the projection follows the latest decision
	em.Set("web", 1, false)
	assert.False(t, em.LeadsToExit("web", 1))
}

func TestExitMap_FromMatrix_Prefilled(t *testing.T) {
	em := NewExitMapFromMatrix(map[string]map[int]Hop{
		"web": {1: {Target: "app", Class: 1}},
		"app": {1: {Target: ExitTarget}},
	})
	assert.False(t, em.LeadsToExit("web", 1))
	assert.True(t, em.LeadsToExit("app", 1))
}
