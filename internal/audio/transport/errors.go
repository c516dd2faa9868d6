package transport

import cerrors "github.com/opsnlops/creature-server/pkg/errors"

var errDurationTooLong = cerrors.New(cerrors.InvalidData, "audio duration exceeds the 3600s hard limit")
