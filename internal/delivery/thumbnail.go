package delivery

import (
	"fmt"
	"os"

	"github.com/forest-guardian/fmc-pipeline/internal/ml"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
	"github.com/forest-guardian/fmc-pipeline/output"
)

func writeThumbnail(r *raster.Raster, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := output.Thumbnail(r, ml.OutputBand, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
