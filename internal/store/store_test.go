package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsnlops/creature-server/internal/animation"
	"github.com/opsnlops/creature-server/internal/creature"
	cerrors "github.com/opsnlops/creature-server/pkg/errors"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared"
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreature_PutThenLoadRoundTrips(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := creature.Creature{ID: "c1", Name: "Rex", ChannelOffset: 5, ChannelCount: 3, AudioChannel: 2}
	require.NoError(t, db.PutCreature(ctx, c))

	got, err := db.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCreature_LoadMissingIsNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, cerrors.IsNotFound(err))
}

func TestAnimation_PutThenLoadPreservesTrackOrderAndFrames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := animation.Animation{
		ID:                   "anim-1",
		Title:                "wave",
		MillisecondsPerFrame: 20,
		SoundFile:            "wave.pcm",
		Tracks: []animation.Track{
			{CreatureID: "c1", Frames: [][]byte{{1, 2}, {3, 4}}},
			{CreatureID: "c2", Frames: [][]byte{{5, 6}}},
		},
	}
	require.NoError(t, db.PutAnimation(ctx, a))

	got, err := db.LoadAnimation(ctx, "anim-1")
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, a.MillisecondsPerFrame, got.MillisecondsPerFrame)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "c1", got.Tracks[0].CreatureID)
	assert.Equal(t, "c2", got.Tracks[1].CreatureID)
	assert.Equal(t, a.Tracks[0].Frames, got.Tracks[0].Frames)
}

func TestAnimation_PutReplacesPriorTracks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := animation.Animation{ID: "anim-2", MillisecondsPerFrame: 20, Tracks: []animation.Track{
		{CreatureID: "c1", Frames: [][]byte{{1}}},
	}}
	require.NoError(t, db.PutAnimation(ctx, a))

	a.Tracks = []animation.Track{{CreatureID: "c2", Frames: [][]byte{{2}}}}
	require.NoError(t, db.PutAnimation(ctx, a))

	got, err := db.LoadAnimation(ctx, "anim-2")
	require.NoError(t, err)
	require.Len(t, got.Tracks, 1)
	assert.Equal(t, "c2", got.Tracks[0].CreatureID)
}
