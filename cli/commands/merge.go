package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

type mergeFlags struct {
	table    string
	match    []string
	update   []string
	expr     []string
	insert   []string
	identity bool
	execute  bool
}

func (f *mergeFlags) spec() (*sqlgen.MergeSpec, error) {
	spec := &sqlgen.MergeSpec{Table: f.table, IdentityInsert: f.identity}
	var err error
	if spec.Conditions, err = parseFields(f.match); err != nil {
		return nil, err
	}
	if spec.UpdateFields, err = parseFields(f.update); err != nil {
		return nil, err
	}
	if spec.ExpressionFields, err = parseExpressions(f.expr); err != nil {
		return nil, err
	}
	if spec.InsertFields, err = parseFields(f.insert); err != nil {
		return nil, err
	}
	return spec, spec.Validate()
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(st *state) *cobra.Command {
	f := &mergeFlags{}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Upsert one row with a MERGE statement",
		Long: `Build the MERGE statement that updates the row matching every --match
condition or inserts it when there is none. Without --execute the statement
and its bound values are printed. Values are typed: null, integers and
true/false are converted, and a value in single quotes stays a string.`,
		Example: `  sqlsrv merge --table users --match id=7 --update name=Ann --insert id=7 --insert name=Ann
  sqlsrv merge --table counters --match k=hits --expr "n=n + 1" --insert k=hits --insert n=1 --execute`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := f.spec()
			if err != nil {
				return err
			}

			if !f.execute {
				text, err := sqlgen.BuildMerge(spec)
				if err != nil {
					return err
				}
				st.out.CodeBlock(text, "")
				bound := spec.Arguments()
				if len(bound) == 0 {
					return nil
				}
				rows := make([][]string, len(bound))
				for i, a := range bound {
					rows[i] = []string{":" + a.Name, formatValue(a.Value)}
				}
				return st.out.Table([]string{"Placeholder", "Value"}, rows)
			}

			ctx := cmd.Context()
			conn, err := st.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			status, err := conn.Merge(ctx, spec)
			if err != nil {
				return err
			}
			st.out.Status("success", status.String(), spec.Table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.table, "table", "t", "", "target table (logical name)")
	cmd.Flags().StringArrayVar(&f.match, "match", nil, "condition column=value, repeatable")
	cmd.Flags().StringArrayVar(&f.update, "update", nil, "column=value set when a row matches, repeatable")
	cmd.Flags().StringArrayVar(&f.expr, "expr", nil, "column=SQL expression set when a row matches, repeatable")
	cmd.Flags().StringArrayVar(&f.insert, "insert", nil, "column=value inserted when no row matches, repeatable")
	cmd.Flags().BoolVar(&f.identity, "identity", false, "allow explicit values for the identity column")
	cmd.Flags().BoolVar(&f.execute, "execute", false, "run the statement against the configured server")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("match")

	return cmd
}
