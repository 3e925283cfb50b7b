package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
)

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand(st *state) *cobra.Command {
	var (
		file   string
		offset int
		limit  int
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "paginate [sql | -]",
		Short: "Limit a statement to a window of rows",
		Long: `Print the statement that returns limit rows after skipping offset rows.
A non-zero offset numbers the rows in the order of the inner query, which
should carry a deterministic ORDER BY. The statement is rewritten first
unless --raw is given.`,
		Example: `  sqlsrv paginate --offset 20 --limit 10 "SELECT id FROM users ORDER BY id"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}
			if !raw {
				text = st.rewriter().Translate(text)
			}
			st.out.CodeBlock(rewrite.Paginate(text, offset, limit), "")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to return")
	cmd.Flags().BoolVar(&raw, "raw", false, "do not rewrite the statement first")
	cmd.MarkFlagRequired("limit")

	return cmd
}
