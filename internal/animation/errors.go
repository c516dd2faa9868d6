package animation

import cerrors "github.com/opsnlops/creature-server/pkg/errors"

var (
	errInvalidFramePeriod = cerrors.New(cerrors.InvalidData, "ms_per_frame must be a positive multiple of the tick period")
	errEmptyTrack         = cerrors.New(cerrors.InvalidData, "track has no frames")
)
