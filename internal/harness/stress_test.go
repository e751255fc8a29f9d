package harness

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
	"github.com/roach88/snapstore/internal/testutil"
)

func TestStress_Seeds(t *testing.T) {
	for _, deleteOutOfScope := range []bool{false, true} {
		for seed := uint64(1); seed <= 4; seed++ {
			t.Run(fmt.Sprintf("seed=%d/delete=%t", seed, deleteOutOfScope), func(t *testing.T) {
				report, err := Stress(StressConfig{
					Seed:                     seed,
					Steps:                    400,
					MaxSlots:                 96,
					MaxMutations:             12,
					DeleteOutOfScopeVersions: deleteOutOfScope,
					ReloadEvery:              25,
				})
				require.NoError(t, err)
				assert.Equal(t, 16, report.Reloads)
				assert.Equal(t, 0, report.Final.OpenGroups)
				if deleteOutOfScope {
					assert.Equal(t, 0, report.Final.SlotCount)
					assert.Equal(t, 0, report.Final.MutationCount)
				}
			})
		}
	}
}

func TestStress_Unbounded(t *testing.T) {
	report, err := Stress(StressConfig{Seed: 42, Steps: 300})
	require.NoError(t, err)
	assert.Equal(t, 300, report.Steps)
	assert.Zero(t, report.Reloads)
	assert.Zero(t, report.Errors["CAPACITY_EXCEEDED"])
}

func TestStress_Deterministic(t *testing.T) {
	cfg := StressConfig{Seed: 7, Steps: 200, MaxSlots: 64, MaxMutations: 8, ReloadEvery: 10}

	first, err := Stress(cfg)
	require.NoError(t, err)
	second, err := Stress(cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Ops, second.Ops)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestStress_DefaultSteps(t *testing.T) {
	report, err := Stress(StressConfig{Seed: 3, MaxSlots: 200})
	require.NoError(t, err)
	assert.Equal(t, 1000, report.Steps)
}

func TestStress_CapacityPressure(t *testing.T) {
	var rejected int
	for _, deleteOutOfScope := range []bool{false, true} {
		for seed := uint64(1); seed <= 12; seed++ {
			t.Run(fmt.Sprintf("seed=%d/delete=%t", seed, deleteOutOfScope), func(t *testing.T) {
				report, err := Stress(StressConfig{
					Seed:                     seed,
					Steps:                    300,
					MaxSlots:                 24,
					DeleteOutOfScopeVersions: deleteOutOfScope,
					ReloadEvery:              20,
				})
				require.NoError(t, err)
				assert.Equal(t, 0, report.Final.OpenGroups)
				rejected += report.Errors["CAPACITY_EXCEEDED"]
			})
		}
	}
	assert.Positive(t, rejected, "a 24-slot registry should fill up")
}

func TestStress_DrainFreesSlotForEndGroup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := history.New(
		history.WithRegistry(registry.New(registry.WithMaxSlots(7))),
		history.WithLogger(logger),
	)
	n := testutil.NewNote("a")
	require.NoError(t, h.Commit(n))
	require.NoError(t, h.BeginGroup())
	n.Title = "b"
	require.NoError(t, h.Commit(n))
	require.Equal(t, 7, h.Registry().SlotCount())
	require.True(t, record.IsCapacityExceeded(h.EndGroup()))

	s := &stresser{
		cfg:    StressConfig{Logger: logger},
		types:  Types(),
		h:      h,
		report: &StressReport{Ops: map[string]int{}, Errors: map[string]int{}},
	}
	require.NoError(t, s.drain())

	assert.Equal(t, 0, h.OpenGroupCount())
	assert.Equal(t, 3, h.MutationCount())
	assert.NoError(t, h.Verify())
}

func TestStress_GroupsNearCapacity(t *testing.T) {
	for _, cfg := range []StressConfig{
		{Seed: 9, Steps: 120, MaxSlots: 64, DeleteOutOfScopeVersions: true},
		{Seed: 11, Steps: 100, MaxSlots: 48},
		{Seed: 5, Steps: 150, MaxSlots: 64, MaxMutations: 8, ReloadEvery: 30},
	} {
		t.Run(fmt.Sprintf("seed=%d", cfg.Seed), func(t *testing.T) {
			report, err := Stress(cfg)
			require.NoError(t, err)
			assert.Equal(t, 0, report.Final.OpenGroups)
		})
	}
}
