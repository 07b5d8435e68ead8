package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/engine"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	From   uint64
	Limit  int
	Stream int64 // negative means every stream
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the lifecycle event log",
		Long: `Print lifecycle events in publication order.

Examples:
  fluxora events
  fluxora events --from 10 --limit 5
  fluxora events --stream 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.From, "from", 0, "first sequence number to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().Int64Var(&opts.Stream, "stream", -1, "only events for this stream id")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must be non-negative")
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	// The stream filter applies after the limit when both are set, so read
	// everything and cut afterwards.
	limit := opts.Limit
	if opts.Stream >= 0 {
		limit = 0
	}
	events, err := s.log.Read(s.ctx, opts.From, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}
	if opts.Stream >= 0 {
		events = filterStream(events, domain.StreamID(opts.Stream), opts.Limit)
	}

	if opts.Format == "json" {
		return out.Success(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(out.Writer, "No events.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tTOPIC\tSTREAM\tACTOR\tAMOUNT")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%s\n", ev.Seq, ev.Time, ev.Topic, ev.StreamID, ev.Actor, ev.Amount)
	}
	return tw.Flush()
}

func filterStream(events []domain.Event, id domain.StreamID, limit int) []domain.Event {
	kept := events[:0]
	for _, ev := range events {
		if ev.StreamID != id {
			continue
		}
		kept = append(kept, ev)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept
}

// ReplayMismatch is one stream whose stored record and replayed record
// differ. A nil side means the stream is missing there.
type ReplayMismatch struct {
	StreamID domain.StreamID `json:"stream_id"`
	Stored   *domain.Stream  `json:"stored"`
	Replayed *domain.Stream  `json:"replayed"`
}

// ReplayResult holds the outcome of a replay check.
type ReplayResult struct {
	Events     int              `json:"events"`
	Streams    int              `json:"streams"`
	Mismatches []ReplayMismatch `json:"mismatches"`
	Consistent bool             `json:"consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild streams from the event log and compare with the registry",
		Long: `Fold the event log back into stream records and compare each one with
the registry by content digest.

Exit codes:
  0 - The log reproduces every stored stream
  1 - At least one stream differs or is missing on one side
  2 - Command error (database not found, corrupt log, etc.)

Examples:
  fluxora replay
  fluxora replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			events, err := s.log.All(s.ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read event log", err)
			}
			streams, err := s.store.ListStreams(s.ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list streams", err)
			}
			mismatches, err := engine.VerifyReplay(s.ctx, s.store, events)
			if err != nil {
				return WrapExitError(ExitCommandError, "replay failed", err)
			}

			result := ReplayResult{
				Events:     len(events),
				Streams:    len(streams),
				Mismatches: make([]ReplayMismatch, 0, len(mismatches)),
				Consistent: len(mismatches) == 0,
			}
			for _, m := range mismatches {
				result.Mismatches = append(result.Mismatches, ReplayMismatch(m))
			}

			if rootOpts.Format == "json" {
				return outputReplayJSON(cmd, result)
			}
			return outputReplayText(cmd, result)
		},
	}
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.Consistent {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_DIVERGED",
			Message: fmt.Sprintf("%d stream(s) differ from the event log", len(result.Mismatches)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Consistent {
		return NewExitError(ExitFailure, "replay diverged from registry")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d event(s), %d stream(s)\n", result.Events, result.Streams)

	for _, m := range result.Mismatches {
		switch {
		case m.Stored == nil:
			fmt.Fprintf(w, "%s stream %d: in the event log but not in the registry\n", failMark(), m.StreamID)
		case m.Replayed == nil:
			fmt.Fprintf(w, "%s stream %d: in the registry but not in the event log\n", failMark(), m.StreamID)
		default:
			fmt.Fprintf(w, "%s stream %d: stored %s/%s withdrawn, replayed %s/%s withdrawn\n", failMark(), m.StreamID,
				m.Stored.Status, m.Stored.Withdrawn, m.Replayed.Status, m.Replayed.Withdrawn)
		}
	}

	if result.Consistent {
		fmt.Fprintf(w, "%s Event log reproduces the registry\n", okMark())
		return nil
	}

	fmt.Fprintf(w, "%s Replay diverged\n", failMark())
	return NewExitError(ExitFailure, "replay diverged from registry")
}
