// Package batch drives inbox files through extraction, assembly, sync and
// archival.
package batch

import (
	"context"
	"errors"

	"recipe-normalizer/internal/pkg/common"
)

// Extractor turns a source file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	Supports(path string) bool
}

// Processor assembles a recipe from a raw document.
type Processor interface {
	Process(ctx context.Context, doc common.RawDocument) (common.Outcome, error)
}

// Syncer pushes an assembled recipe to an external store. A returned error is
// a transport failure unless it carries a Permanent() bool method reporting
// true; per-field failures are reported in the SyncReport.
type Syncer interface {
	Name() string
	Sync(ctx context.Context, recipe *common.Recipe, rawText string) (common.SyncReport, error)
}

type permanent interface {
	Permanent() bool
}

// IsPermanent 同步目標拒絕了內容，重試也不會成功
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

// Archiver moves handled files out of the inbox.
type Archiver interface {
	MoveProcessed(ctx context.Context, path string) error
	MoveFailed(ctx context.Context, path string, diagnostics []common.AssemblyError) error
}
