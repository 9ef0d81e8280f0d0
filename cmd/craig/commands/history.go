package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/stores"
)

const timeLayout = "2006-01-02 15:04:05"

type historyFlags struct {
	limit  int
	offset int
	all    bool
}

func (f *historyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&f.all, "all", false, "include every document in the history")
}

// document returns the document filter of a listing.
func (f *historyFlags) document(sess *session) *string {
	if f.all {
		return nil
	}
	key := sess.historyKey()
	return &key
}

func newHistoryCommand() *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded snapshots of the document",
		Long: `List the snapshots recorded for the document, newest first.

Snapshots are recorded by craig backup, by craig restore and, with
history.enabled set in the configuration, on every write of the
document.`,
		Example: `  # Recent snapshots
  craig history

  # Print one snapshot
  craig history show 3f2a9c1e -o yaml

  # Mutations made to the document
  craig history audit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			hist, err := sess.history()
			if err != nil {
				return err
			}
			snaps, err := hist.ListSnapshots(sess.ctx, flags.document(sess), flags.limit, flags.offset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, snaps); ok {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintf(out, "No snapshots of %s\n", sess.cfg.Document)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tOPERATION\tENTITIES\tMESSAGE")
			for _, s := range snaps {
				msg := s.Message
				if flags.all {
					msg = s.Document + " " + msg
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					s.ShortID(), s.CreatedAt.Local().Format(timeLayout), s.Operation, s.Entities, msg)
			}
			return tw.Flush()
		},
	}

	flags.register(cmd)
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryEventsCommand())
	cmd.AddCommand(newHistoryAuditCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the document held by a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			hist, err := sess.history()
			if err != nil {
				return err
			}
			snap, err := hist.GetSnapshot(sess.ctx, args[0])
			if err != nil {
				return err
			}
			doc, err := snap.Decode()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, doc); ok {
				return err
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		},
	}
}

func newHistoryEventsCommand() *cobra.Command {
	var (
		flags     historyFlags
		eventType string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled events",
		Long: `List telemetry events journaled into the history database. Events are
journaled when history.enabled and history.events are set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			hist, err := sess.history()
			if err != nil {
				return err
			}

			// events carry the document path as given, not the history key
			var document *string
			if !flags.all {
				document = &sess.cfg.Document
			}
			var typeFilter *string
			if eventType != "" {
				typeFilter = &eventType
			}
			events, err := hist.GetEvents(sess.ctx, document, typeFilter, flags.limit, flags.offset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, events); ok {
				return err
			}
			printEvents(cmd, events)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type, e.g. document.saved")

	return cmd
}

func printEvents(cmd *cobra.Command, events []*stores.Event) {
	out := cmd.OutOrStdout()
	for _, e := range events {
		fmt.Fprintf(out, "%s %-7s %-24s %s\n",
			e.Timestamp.Local().Format(timeLayout), e.Level, e.Type, e.Message)
	}
}

func newHistoryAuditCommand() *cobra.Command {
	var (
		flags  historyFlags
		action string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded mutations, backups and restores",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			hist, err := sess.history()
			if err != nil {
				return err
			}
			var actionFilter *string
			if action != "" {
				actionFilter = &action
			}
			entries, err := hist.ListAuditEntries(sess.ctx, flags.document(sess), actionFilter, flags.limit, flags.offset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, entries); ok {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tTARGET")
			for _, e := range entries {
				target := ""
				if e.Target != nil {
					target = *e.Target
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(timeLayout), e.Actor, e.Action, target)
			}
			return tw.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&action, "action", "", "only entries with this action, e.g. delete")

	return cmd
}
