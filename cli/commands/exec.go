package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
)

// ErrAborted is returned when a confirmation prompt is declined.
var ErrAborted = errors.New("aborted")

// NewExecCommand creates the exec command.
func NewExecCommand(st *state) *cobra.Command {
	var (
		file      string
		rawArgs   []string
		insecure  bool
		returning string
		yes       bool
		offset    int
		limit     int
		temporary bool
	)

	cmd := &cobra.Command{
		Use:   "exec [sql | -]",
		Short: "Run a statement against the configured server",
		Long: `Run one statement through the rewriter and print its result. Bind
arguments are given as --arg name=value and referenced as :name. Statements
other than SELECT ask for confirmation unless --yes is given.`,
		Example: `  sqlsrv exec "SELECT * FROM {users} WHERE id IN (:ids)" --arg ids=1
  sqlsrv exec --return affected --yes "DELETE FROM {sessions} WHERE expired = 1"
  sqlsrv exec --offset 20 --limit 10 "SELECT id FROM {users} ORDER BY id"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}
			bound, err := parseArgs(rawArgs)
			if err != nil {
				return err
			}
			mode, err := executor.ParseReturnMode(returning)
			if err != nil {
				return err
			}

			if !yes && !isReadStatement(text) {
				ok, err := st.confirm(fmt.Sprintf("Run %q on %s?", firstLine(text), st.cfg.Driver))
				if err != nil {
					return err
				}
				if !ok {
					return ErrAborted
				}
			}

			ctx := cmd.Context()
			conn, err := st.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			q := query.New(text, bound...)
			opts := executor.Options{Return: mode, Insecure: insecure, Fetch: executor.FetchNum}

			if temporary {
				table, err := conn.QueryTemporary(ctx, q, opts)
				if err != nil {
					return err
				}
				st.out.Success("Rows copied into %s", table)
				return nil
			}

			var res *executor.Result
			if cmd.Flags().Changed("limit") || offset > 0 {
				res, err = conn.QueryRange(ctx, q, offset, limit, opts)
			} else {
				res, err = conn.Execute(ctx, q, opts)
			}
			if err != nil {
				return err
			}
			return printResult(st, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "bind argument name=value, repeatable")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "inline arguments as literals instead of binding them")
	cmd.Flags().StringVarP(&returning, "return", "r", "statement", "result: statement, affected, insert-id or none")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to return")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "copy the rows into a new global temporary table")
	cmd.MarkFlagsMutuallyExclusive("temporary", "limit")
	cmd.MarkFlagsMutuallyExclusive("temporary", "offset")

	return cmd
}

func printResult(st *state, res *executor.Result) error {
	switch res.Mode {
	case executor.ReturnAffected:
		st.out.Success("%d row(s) affected", res.RowsAffected)
	case executor.ReturnInsertID:
		st.out.Success("Inserted id %d", res.InsertID)
	case executor.ReturnNone:
		st.out.Success("Done")
	default:
		return printRows(st, res.Statement)
	}
	return nil
}

func printRows(st *state, stmt *executor.Statement) error {
	defer stmt.Close()

	columns, err := stmt.Columns()
	if err != nil {
		return err
	}

	var rows [][]string
	for {
		values, err := stmt.FetchNum()
		if err != nil {
			return err
		}
		if values == nil {
			break
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		st.out.Info("No rows")
		return nil
	}
	if err := st.out.Table(columns, rows); err != nil {
		return err
	}
	st.out.Info("%d row(s)", len(rows))
	return nil
}

func isReadStatement(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}
