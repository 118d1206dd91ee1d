package operation

import (
	"context"
	"path/filepath"
	"strings"

	"trashtrim/internal/walk"
)

const OpDelete = "del"

// DefaultDeleteMarker tags duplicate video downloads
const DefaultDeleteMarker = "(1).mp4"

// IsDeleteFile reports whether name ends with marker (case-sensitive)
func IsDeleteFile(name, marker string) bool {
	return strings.HasSuffix(name, marker)
}

// Delete quarantines matching files into the trash directory
type Delete struct {
	Env
	Trash  string
	Marker string
}

func (d *Delete) Name() string {
	return OpDelete
}

func (d *Delete) Apply(ctx context.Context, e *walk.FileEntry) Result {
	res := Result{Op: OpDelete, Path: e.Path, Name: e.Name, Size: e.Size, DryRun: d.DryRun}

	marker := d.Marker
	if marker == "" {
		marker = DefaultDeleteMarker
	}
	if !IsDeleteFile(e.Name, marker) {
		return res
	}
	res.Matched = true
	res.Pattern = marker
	res.Dest = filepath.Join(d.Trash, e.Name)

	res.Err = d.act(ctx, res.Dest, func() error {
		written, err := d.Mover.Move(e.Path, res.Dest)
		if err == nil {
			res.Dest = written
		}
		return err
	})
	return res
}
