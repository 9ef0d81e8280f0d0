package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/store"
)

func newDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [type]",
		Short: "Show the shape of registered entity types",
		Long: `Print the declarative shape of one or all registered entity types: fields,
defaults, allowed values, references and sub types.

With -o cue the description is rendered as CUE definitions, the same
schema craig validate checks documents against.`,
		Example: `  # List every type
  craig describe

  # One sub type as YAML
  craig describe vpcs.subnets -o yaml

  # CUE schema of the whole catalog
  craig describe -o cue > schema.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			var descs []store.TypeDescription
			if len(args) == 1 {
				desc, err := sess.store.DescribeEntityType(args[0])
				if err != nil {
					return err
				}
				descs = []store.TypeDescription{desc}
			} else {
				descs = sess.store.DescribeAllEntityTypes()
			}

			out := cmd.OutOrStdout()
			if sess.cfg.Output == "cue" {
				src, err := config.FormatSource([]byte(config.RenderSchema(descs)))
				if err != nil {
					return err
				}
				_, err = out.Write(src)
				return err
			}

			var v interface{} = descs
			if len(args) == 1 {
				v = descs[0]
			}
			if ok, err := writeStructured(out, sess.cfg.Output, v); ok {
				return err
			}

			if len(args) == 1 {
				return printTypeDetail(out, descs[0])
			}
			return printTypeTable(out, descs)
		},
	}

	return cmd
}

func printTypeTable(w io.Writer, descs []store.TypeDescription) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tKIND\tKEY\tFIELDS\tREFERENCES\tSUB TYPES")
	for _, d := range descs {
		subs := make([]string, 0, len(d.Subs))
		for _, sub := range d.Subs {
			subs = append(subs, sub.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			d.Position, d.Name, d.Kind, d.KeyField, len(d.Fields), len(d.References), strings.Join(subs, ","))
	}
	return tw.Flush()
}

func printTypeDetail(w io.Writer, d store.TypeDescription) error {
	fmt.Fprintf(w, "%s (%s, key %q)\n\n", d.Name, d.Kind, d.KeyField)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE\tREQUIRED\tREFERENCE\tVALUES")
	for _, f := range d.Fields {
		ref := f.Reference
		if ref != "" && f.Many {
			ref += "[]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
			f.Name, f.Type, f.Required, ref, strings.Join(f.Values, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, sub := range d.Subs {
		fmt.Fprintln(w)
		if err := printTypeDetail(w, sub); err != nil {
			return err
		}
	}
	return nil
}
