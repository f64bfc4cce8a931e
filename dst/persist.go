package dst

import (
	"os"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/serialize"
)

// Save writes t to path using the engine's flat binary schema.
func (t Tracker) Save(path string) error {
	buf := serialize.Encode(serialize.Tracker{
		MeanShape:            t.MeanShape,
		MeanShapeRectCorners: t.MeanShapeRectCorners,
		Cascade:              t.Cascade,
	})

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return dsterr.New(dsterr.IoFailure, "Tracker.Save", err)
	}
	return nil
}

// Load reads and verifies a Tracker previously written by Save.
func Load(path string) (Tracker, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Tracker{}, dsterr.New(dsterr.IoFailure, "Tracker.Load", err)
	}

	decoded, err := serialize.Decode(buf)
	if err != nil {
		return Tracker{}, err
	}

	return Tracker{
		MeanShape:            decoded.MeanShape,
		MeanShapeRectCorners: decoded.MeanShapeRectCorners,
		Cascade:              decoded.Cascade,
	}, nil
}
