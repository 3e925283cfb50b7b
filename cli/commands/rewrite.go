package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/cli/internal/config"
	"github.com/satishbabariya/sqlsrv-go/cli/internal/watch"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
)

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(st *state) *cobra.Command {
	var (
		file      string
		watchFile string
		explain   bool
		diff      bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite [sql | -]",
		Short: "Translate a statement into SQL Server's dialect",
		Long: `Translate a portable statement into SQL Server's dialect without
connecting to a server. The rewriting settings come from the rewrite.*
configuration keys.`,
		Example: `  sqlsrv rewrite "SELECT LENGTH(name) FROM users"
  sqlsrv rewrite --explain -f query.sql
  sqlsrv rewrite --watch query.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := st.rewriter()
			show := func(text string) error {
				return showRewrite(st, r, strings.TrimSpace(text), explain, diff)
			}

			if watchFile != "" {
				w, err := watch.NewWatcher(config.AppFs, watchFile, show)
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				st.out.Info("Watching %s (Ctrl+C to stop)", watchFile)
				return w.Run(ctx)
			}

			text, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}
			return show(text)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file")
	cmd.Flags().StringVarP(&watchFile, "watch", "w", "", "rewrite the file again on every save")
	cmd.Flags().BoolVar(&explain, "explain", false, "show the steps that changed the statement")
	cmd.Flags().BoolVar(&diff, "diff", false, "show the rewrite as a diff against the input")
	cmd.MarkFlagsMutuallyExclusive("explain", "diff")
	cmd.MarkFlagsMutuallyExclusive("file", "watch")

	return cmd
}

func showRewrite(st *state, r *rewrite.Rewriter, text string, explain, diff bool) error {
	switch {
	case explain:
		return st.out.Markdown(explainMarkdown(text, r.Explain(text)))
	case diff:
		st.out.Diff(text, r.Translate(text))
	default:
		st.out.CodeBlock(r.Translate(text), "")
	}
	return nil
}

// explainMarkdown renders the steps of a rewrite as a markdown document.
func explainMarkdown(text string, changes []rewrite.Change) string {
	var b strings.Builder
	b.WriteString("# Rewrite\n\n")
	fmt.Fprintf(&b, "```sql\n%s\n```\n\n", text)
	if len(changes) == 0 {
		b.WriteString("_No step changed the statement._\n")
		return b.String()
	}
	for i, c := range changes {
		fmt.Fprintf(&b, "## %d. %s\n\n```sql\n%s\n```\n\n", i+1, c.Step, c.After)
	}
	return b.String()
}
