// Package store provides the gorm-backed reference implementations of the
// Creature and Animation stores consumed as external collaborators (spec
// §6): the creature-server core treats these as opaque lookups, but a real
// deployment needs something to back playback.CreatureLoader and the
// animation lookup the HTTP/WebSocket surface (out of scope here) would
// call into. Grounded on the teacher's gorm.io/gorm + sqlite usage.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opsnlops/creature-server/internal/animation"
	"github.com/opsnlops/creature-server/internal/creature"
	cerrors "github.com/opsnlops/creature-server/pkg/errors"
)

// creatureRow is the persisted shape of a Creature.
type creatureRow struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	ChannelOffset uint16
	ChannelCount  uint16
	AudioChannel  uint8
}

func (creatureRow) TableName() string { return "creatures" }

// animationRow is the persisted shape of an Animation; tracks are stored as
// a foreign-keyed child table.
type animationRow struct {
	ID                   string `gorm:"primaryKey"`
	Title                string
	MillisecondsPerFrame uint32
	SoundFile            string
	MultitrackAudio      bool
	Tracks               []trackRow `gorm:"foreignKey:AnimationID"`
}

func (animationRow) TableName() string { return "animations" }

type trackRow struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	AnimationID  string
	CreatureID   string
	SequenceNum  int
	FramesBlob   []byte // gob-encoded [][]byte, see frames.go
}

func (trackRow) TableName() string { return "animation_tracks" }

// DB wraps a gorm connection and implements both CreatureStore and
// AnimationStore.
type DB struct {
	gorm *gorm.DB
}

// Open establishes a sqlite-backed store at dsn and migrates the schema.
func Open(dsn string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, cerrors.Wrap(cerrors.InternalError, err, "opening creature store")
	}

	if err := g.AutoMigrate(&creatureRow{}, &animationRow{}, &trackRow{}); err != nil {
		return nil, cerrors.Wrap(cerrors.InternalError, err, "migrating creature store schema")
	}

	return &DB{gorm: g}, nil
}

// Load implements playback.CreatureLoader.
func (d *DB) Load(ctx context.Context, id string) (creature.Creature, error) {
	var row creatureRow
	if err := d.gorm.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return creature.Creature{}, cerrors.New(cerrors.NotFound, fmt.Sprintf("creature %s not found", id))
		}
		return creature.Creature{}, cerrors.Wrap(cerrors.InternalError, err, "loading creature")
	}
	return creature.Creature{
		ID:            row.ID,
		Name:          row.Name,
		ChannelOffset: row.ChannelOffset,
		ChannelCount:  row.ChannelCount,
		AudioChannel:  row.AudioChannel,
	}, nil
}

// PutCreature upserts a creature row, used by the (out-of-scope) roster
// management surface.
func (d *DB) PutCreature(ctx context.Context, c creature.Creature) error {
	row := creatureRow{
		ID:            c.ID,
		Name:          c.Name,
		ChannelOffset: c.ChannelOffset,
		ChannelCount:  c.ChannelCount,
		AudioChannel:  c.AudioChannel,
	}
	if err := d.gorm.WithContext(ctx).Save(&row).Error; err != nil {
		return cerrors.Wrap(cerrors.InternalError, err, "saving creature")
	}
	return nil
}

// LoadAnimation fetches an animation and its tracks, ordered by
// SequenceNum, for the scheduler to pass into schedule_animation.
func (d *DB) LoadAnimation(ctx context.Context, id string) (animation.Animation, error) {
	var row animationRow
	err := d.gorm.WithContext(ctx).
		Preload("Tracks", func(tx *gorm.DB) *gorm.DB { return tx.Order("sequence_num") }).
		First(&row, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return animation.Animation{}, cerrors.New(cerrors.NotFound, fmt.Sprintf("animation %s not found", id))
		}
		return animation.Animation{}, cerrors.Wrap(cerrors.InternalError, err, "loading animation")
	}

	tracks := make([]animation.Track, len(row.Tracks))
	for i, t := range row.Tracks {
		frames, err := decodeFrames(t.FramesBlob)
		if err != nil {
			return animation.Animation{}, cerrors.Wrap(cerrors.InternalError, err, "decoding track frames")
		}
		tracks[i] = animation.Track{CreatureID: t.CreatureID, Frames: frames}
	}

	return animation.Animation{
		ID:                   row.ID,
		Title:                row.Title,
		MillisecondsPerFrame: row.MillisecondsPerFrame,
		Tracks:               tracks,
		SoundFile:            row.SoundFile,
		MultitrackAudio:      row.MultitrackAudio,
	}, nil
}

// PutAnimation replaces an animation and all of its tracks in a single
// transaction.
func (d *DB) PutAnimation(ctx context.Context, a animation.Animation) error {
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("animation_id = ?", a.ID).Delete(&trackRow{}).Error; err != nil {
			return err
		}

		row := animationRow{
			ID:                   a.ID,
			Title:                a.Title,
			MillisecondsPerFrame: a.MillisecondsPerFrame,
			SoundFile:            a.SoundFile,
			MultitrackAudio:      a.MultitrackAudio,
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		for i, t := range a.Tracks {
			blob, err := encodeFrames(t.Frames)
			if err != nil {
				return err
			}
			trackR := trackRow{AnimationID: a.ID, CreatureID: t.CreatureID, SequenceNum: i, FramesBlob: blob}
			if err := tx.Create(&trackR).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying sql.DB connection.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
