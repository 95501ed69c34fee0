package loader

import (
	"testing"
	"time"

	"github.com/harun/cortex/pkg/events"
	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize(t *testing.T) {
	t.Run("unloads idle modules only", func(t *testing.T) {
		f := newFixture(t, 1000, manifest("idle", 300), manifest("busy", 200))
		_, err := f.loader.Load("idle", PriorityNormal)
		require.NoError(t, err)
		_, err = f.loader.Load("busy", PriorityNormal)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Hour)
		_, err = f.loader.Load("busy", PriorityNormal)
		require.NoError(t, err)

		result, err := f.loader.Optimize(time.Hour)
		require.NoError(t, err)
		assert.Equal(t, []string{"idle"}, result.Unloaded)
		assert.Equal(t, 300, result.FreedTokens)
		assert.Equal(t, []string{"busy"}, f.loader.GetLoadedModules())
		assert.True(t, holds(t, f.store.Warm(), "idle"))
	})

	t.Run("frees dependencies after their dependents", func(t *testing.T) {
		f := newFixture(t, 1000, manifest("base", 100), manifest("app", 100, "base"))
		_, err := f.loader.Load("app", PriorityNormal)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Hour)
		result, err := f.loader.Optimize(time.Hour)
		require.NoError(t, err)
		assert.Equal(t, []string{"app", "base"}, result.Unloaded)
		assert.Equal(t, 0, f.store.Hot().Used())
		assert.Equal(t, []string{"app", "base"}, f.eventModules(events.ModuleUnloaded))
	})

	t.Run("nothing idle", func(t *testing.T) {
		f := newFixture(t, 1000, manifest("fresh", 100))
		_, err := f.loader.Load("fresh", PriorityNormal)
		require.NoError(t, err)

		result, err := f.loader.Optimize(time.Hour)
		require.NoError(t, err)
		assert.Empty(t, result.Unloaded)
		assert.Zero(t, result.FreedTokens)
	})
}

func TestArchive(t *testing.T) {
	f := newFixture(t, 1000, manifest("old", 100), manifest("loaded", 100))
	_, err := f.loader.Load("old", PriorityNormal)
	require.NoError(t, err)
	require.NoError(t, f.loader.Unload("old", false))
	_, err = f.loader.Load("loaded", PriorityNormal)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	result, err := f.loader.Archive(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, result.Archived)

	record, err := f.registry.Get("old")
	require.NoError(t, err)
	assert.Equal(t, module.TierCold, record.Tier)
	assert.False(t, holds(t, f.store.Warm(), "old"))
	assert.True(t, holds(t, f.store.Cold(), "old"))
	assert.True(t, f.loader.IsLoaded("loaded"))
	assert.Equal(t, []string{"old"}, f.eventModules(events.ModuleDemoted))

	_, err = f.loader.Load("old", PriorityNormal)
	require.NoError(t, err)
	blob, found, err := f.store.Hot().Retrieve("old")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testContent("old"), blob.Data)
}

func TestSyncTiers(t *testing.T) {
	f := newFixture(t, 1000, manifest("warmed", 100), manifest("fresh", 100))

	stored, err := f.store.Warm().Store("warmed", storage.Blob{Data: testContent("warmed"), SizeTokens: 100})
	require.NoError(t, err)
	require.True(t, stored)

	f.loader.SyncTiers()

	record, err := f.registry.Get("warmed")
	require.NoError(t, err)
	assert.Equal(t, module.TierWarm, record.Tier)

	record, err = f.registry.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, module.TierNone, record.Tier)

	result, err := f.loader.Load("warmed", PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, []string{"warmed"}, result.Loaded)
	assert.Equal(t, []string{"warmed"}, f.eventModules(events.ModulePromoted))
}
