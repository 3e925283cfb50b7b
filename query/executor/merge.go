package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

// MergeStatus reports which branch of an upsert fired.
type MergeStatus int

const (
	MergeStatusInsert MergeStatus = iota + 1
	MergeStatusUpdate
)

func (s MergeStatus) String() string {
	switch s {
	case MergeStatusInsert:
		return "INSERT"
	case MergeStatusUpdate:
		return "UPDATE"
	default:
		return fmt.Sprintf("MergeStatus(%d)", int(s))
	}
}

// Merge builds the upsert described by spec, binds its values in placeholder
// order and reports the branch the engine took. The statement is sent as
// built, without the rewriter.
func (e *Executor) Merge(ctx context.Context, spec *sqlgen.MergeSpec) (MergeStatus, error) {
	text, err := sqlgen.BuildMerge(spec)
	if err != nil {
		return 0, err
	}

	res, err := e.run(ctx, text, spec.Arguments(), Options{Return: ReturnStatement, Fetch: FetchNum}, false)
	if err != nil {
		return 0, err
	}
	col, err := res.Statement.FetchCol(0)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("merge into %s returned no rows: %w", spec.Table, query.ErrInvalidMergeResult)
	}

	action := col[len(col)-1]
	if b, ok := action.([]byte); ok {
		action = string(b)
	}
	switch strings.ToUpper(fmt.Sprint(action)) {
	case "UPDATE":
		return MergeStatusUpdate, nil
	case "INSERT":
		return MergeStatusInsert, nil
	default:
		return 0, fmt.Errorf("merge into %s returned %v: %w", spec.Table, action, query.ErrInvalidMergeResult)
	}
}
