package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dwhload/internal/catalog"
	"dwhload/internal/pipeline"
	"dwhload/pkg/errors"
)

var printTables []string

var printCmd = &cobra.Command{
	Use:   "print [step...]",
	Short: "Print the SQL a load would run, without connecting",
	Long: `Print the rendered statements for the given steps (drop, create, copy,
insert, count), or all of them, in execution order. No database connection
is made.`,
	Example: `  dwhload print copy
  dwhload print insert --table dim_user --dialect postgres`,
	ValidArgs: kindNames(),
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := pipeline.Full
		if len(args) > 0 {
			steps = make([]pipeline.Step, len(args))
			for i, a := range args {
				k, _ := catalog.ParseKind(a)
				steps[i] = k
			}
		}

		tables := map[catalog.Table]bool{}
		for _, name := range printTables {
			t, ok := catalog.ParseTable(strings.ToLower(name))
			if !ok {
				return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("Unknown table %q", name)).
					WithSuggestions("Tables are " + strings.Join(tableNames(), ", "))
			}
			tables[t] = true
		}

		cfg, err := readConfig()
		if err != nil {
			return err
		}
		c, err := buildCatalog(cfg)
		if err != nil {
			return err
		}

		stmts, err := pipeline.New(nil, c, logger, nil).Statements(steps...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, stmt := range stmts {
			if len(tables) > 0 && !tables[stmt.Table] {
				continue
			}
			fmt.Fprintf(out, "-- %s %s\n%s\n\n", stmt.Kind, stmt.Table, stmt.SQL)
		}
		return nil
	},
}

func kindNames() []string {
	var names []string
	for _, k := range catalog.Kinds() {
		names = append(names, string(k))
	}
	return names
}

func tableNames() []string {
	var names []string
	for _, t := range catalog.Tables() {
		names = append(names, t.String())
	}
	return names
}

func init() {
	rootCmd.AddCommand(printCmd)
	printCmd.Flags().StringSliceVarP(&printTables, "table", "t", nil, "only print statements for these tables")
}
