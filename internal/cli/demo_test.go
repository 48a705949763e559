package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsNumber(t *testing.T) {
	assert.Equal(t, float64(5), asNumber(5))
	assert.Equal(t, float64(5), asNumber(int64(5)))
	assert.Equal(t, float64(2.5), asNumber(2.5))
	assert.Equal(t, float64(1.5), asNumber(float32(1.5)))
	assert.Equal(t, float64(0), asNumber("not a number"))
	assert.Equal(t, float64(0), asNumber(nil))
}

func TestCounterHandler(t *testing.T) {
	ctx := context.Background()
	inc := counterHandler(1)
	dec := counterHandler(-1)

	t.Run("Initializes to zero", func(t *testing.T) {
		v, err := inc(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, float64(0), v)
	})

	t.Run("Bare dispatch steps by one", func(t *testing.T) {
		v, err := inc(ctx, float64(3), nil)
		require.NoError(t, err)
		assert.Equal(t, float64(4), v)
	})

	t.Run("Payload sets the delta", func(t *testing.T) {
		v, err := inc(ctx, float64(3), float64(5))
		require.NoError(t, err)
		assert.Equal(t, float64(8), v)
	})

	t.Run("Direction inverts the step", func(t *testing.T) {
		v, err := dec(ctx, float64(3), 2)
		require.NoError(t, err)
		assert.Equal(t, float64(1), v)
	})
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Materializes demo defaults", func(t *testing.T) {
		store, err := BuildStore(RunOptions{Name: "demo-test"})
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, "demo-test", store.Name())
		state := store.State()
		assert.Equal(t, float64(0), state["counter"])
		user, ok := state["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "guest", user["name"])
		assert.Equal(t, "ok", state["fuse"])
	})

	t.Run("Counter pair and rename", func(t *testing.T) {
		store, err := BuildStore(RunOptions{})
		require.NoError(t, err)
		defer store.Close()

		tree, err := store.Do(ctx, "increment", 5)
		require.NoError(t, err)
		assert.Equal(t, float64(5), tree["counter"])

		tree, err = store.Do(ctx, "decrement", nil)
		require.NoError(t, err)
		assert.Equal(t, float64(4), tree["counter"])

		tree, err = store.Do(ctx, "rename", "ada")
		require.NoError(t, err)
		v, ok := tree.At("user.name")
		require.True(t, ok)
		assert.Equal(t, "ada", v)

		// A nil payload keeps the current name.
		tree, err = store.Do(ctx, "rename", nil)
		require.NoError(t, err)
		v, _ = tree.At("user.name")
		assert.Equal(t, "ada", v)
	})

	t.Run("Tick fans out to both clock leaves", func(t *testing.T) {
		store, err := BuildStore(RunOptions{})
		require.NoError(t, err)
		defer store.Close()

		state := store.State()
		assert.Equal(t, float64(0), state["clock"].(map[string]any)["ticks"])
		assert.Equal(t, "never", state["clock"].(map[string]any)["last"])

		tree, err := store.Do(ctx, "tick", nil)
		require.NoError(t, err)
		ticks, _ := tree.At("clock.ticks")
		assert.Equal(t, float64(1), ticks)
		last, _ := tree.At("clock.last")
		assert.NotEqual(t, "never", last)
	})

	t.Run("Boom fails and keeps state", func(t *testing.T) {
		store, err := BuildStore(RunOptions{})
		require.NoError(t, err)
		defer store.Close()

		_, err = store.Do(ctx, "boom", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fuse blew")

		v, _ := store.Snapshot().At("fuse")
		assert.Equal(t, "ok", v)
	})

	t.Run("Seed file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("counter: 41\n"), 0644))

		store, err := BuildStore(RunOptions{StatePath: path})
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, 41, store.State()["counter"])

		tree, err := store.Do(ctx, "increment", nil)
		require.NoError(t, err)
		assert.Equal(t, float64(42), tree["counter"])
	})

	t.Run("Seed file errors propagate", func(t *testing.T) {
		_, err := BuildStore(RunOptions{StatePath: filepath.Join(t.TempDir(), "missing.yaml")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read state file")
	})
}
