package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

type graphReport struct {
	Graph       *store.DependencyGraph  `json:"graph" yaml:"graph"`
	Order       []string                `json:"order" yaml:"order"`
	Diagnostics []store.OrderDiagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func newGraphCommand() *cobra.Command {
	var order bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the reference graph of the registered types",
		Long: `Print the reference graph between registered entity types in Graphviz DOT
format, or the dependency order in which their repairs settle in one pass.

Diagnostics list references to types registered later, which need a
second reconciliation pass to settle.`,
		Example: `  # Render the graph
  craig graph | dot -Tsvg > types.svg

  # Print the dependency order and diagnostics
  craig graph --order`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			g, err := sess.store.DependencyGraph()
			if err != nil {
				return err
			}
			report := graphReport{
				Graph:       g,
				Order:       g.Order(),
				Diagnostics: sess.store.OrderDiagnostics(),
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, report); ok {
				return err
			}

			if !order {
				fmt.Fprint(out, g.ToDOT())
				return nil
			}
			for i, name := range report.Order {
				fmt.Fprintf(out, "%2d. %s\n", i+1, name)
			}
			for _, d := range report.Diagnostics {
				fmt.Fprintf(out, "! %s.%s -> %s: %s\n", d.Type, d.Field, d.Target, d.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&order, "order", false, "print the dependency order instead of DOT")

	return cmd
}
