package store

import (
	"bytes"
	"encoding/gob"
)

func encodeFrames(frames [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(frames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFrames(blob []byte) ([][]byte, error) {
	var frames [][]byte
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&frames); err != nil {
		return nil, err
	}
	return frames, nil
}
