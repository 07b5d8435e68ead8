package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fluxora/internal/accrual"
	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/auth"
	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/engine"
	"github.com/roach88/fluxora/internal/query"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Sender    string
	Recipient string
	Deposit   string
	Rate      string
	Start     uint64
	Cliff     uint64 // used only when --cliff is given
	End       uint64
	cliffSet  bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stream and escrow its deposit",
		Long: `Create a linear payment stream from the sender to the recipient.

The deposit moves into custody immediately. It must cover
rate * (end - start); any excess is refunded on cancellation.

Examples:
  fluxora create --as alice --recipient bob --deposit 1000 --rate 1 --start 0 --end 1000
  fluxora create --token $JWT --recipient bob --deposit 1000 --rate 1 --start 0 --cliff 500 --end 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cliffSet = cmd.Flags().Changed("cliff")
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "sender identity (default: the caller)")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient identity (required)")
	cmd.Flags().StringVar(&opts.Deposit, "deposit", "", "deposit amount (required)")
	cmd.Flags().StringVar(&opts.Rate, "rate", "", "amount released per second (required)")
	cmd.Flags().Uint64Var(&opts.Start, "start", 0, "start time in seconds")
	cmd.Flags().Uint64Var(&opts.Cliff, "cliff", 0, "cliff time in seconds (default: start)")
	cmd.Flags().Uint64Var(&opts.End, "end", 0, "end time in seconds (required)")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("deposit")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func (o *CreateOptions) params(caller domain.Identity) (engine.CreateParams, error) {
	var p engine.CreateParams
	var err error

	sender := o.Sender
	if sender == "" {
		sender = string(caller)
	}
	if p.Sender, err = domain.ParseIdentity(sender); err != nil {
		return p, fmt.Errorf("sender: %w (pass --sender or --as)", err)
	}
	if p.Recipient, err = domain.ParseIdentity(o.Recipient); err != nil {
		return p, fmt.Errorf("recipient: %w", err)
	}
	if p.Deposit, err = amount.Parse(o.Deposit); err != nil {
		return p, fmt.Errorf("deposit: %w", err)
	}
	if p.Rate, err = amount.Parse(o.Rate); err != nil {
		return p, fmt.Errorf("rate: %w", err)
	}
	p.Start, p.End = o.Start, o.End
	p.Cliff = o.Start
	if o.cliffSet {
		p.Cliff = o.Cliff
	}
	return p, nil
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := opts.params(callerOf(s))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	id, err := s.engine.CreateStream(s.ctx, p)
	if err != nil {
		return out.Rejected("create", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{"stream_id": id})
	}
	fmt.Fprintf(out.Writer, "%s stream %d created (%s -> %s, deposit %s)\n", okMark(), id, p.Sender, p.Recipient, p.Deposit)
	return nil
}

// streamAction is a single-stream mutation: pause, resume, cancel,
// cancel-admin or withdraw. The returned amount is nil when the operation
// has none.
type streamAction func(s *session, id domain.StreamID) (*amount.Amount, error)

func newStreamActionCommand(rootOpts *RootOptions, use, short, long, verb, amountLabel string, act streamAction) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <stream-id>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			amt, err := act(s, id)
			if err != nil {
				return out.Rejected(use, err)
			}

			if rootOpts.Format == "json" {
				data := map[string]any{"stream_id": id}
				if amt != nil {
					data[amountLabel] = amt.String()
				}
				return out.Success(data)
			}
			if amt != nil {
				fmt.Fprintf(out.Writer, "%s stream %d %s (%s %s)\n", okMark(), id, verb, amountLabel, amt)
			} else {
				fmt.Fprintf(out.Writer, "%s stream %d %s\n", okMark(), id, verb)
			}
			return nil
		},
	}
}

// NewPauseCommand creates the pause command.
func NewPauseCommand(rootOpts *RootOptions) *cobra.Command {
	return newStreamActionCommand(rootOpts, "pause", "Pause an active stream",
		"Pause an active stream. Caller: the sender or the administrator.\nWhile paused the recipient cannot withdraw.",
		"paused", "", func(s *session, id domain.StreamID) (*amount.Amount, error) {
			return nil, s.engine.PauseStream(s.ctx, id)
		})
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return newStreamActionCommand(rootOpts, "resume", "Resume a paused stream",
		"Resume a paused stream. Caller: the sender or the administrator.",
		"resumed", "", func(s *session, id domain.StreamID) (*amount.Amount, error) {
			return nil, s.engine.ResumeStream(s.ctx, id)
		})
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return newStreamActionCommand(rootOpts, "cancel", "Cancel a stream and refund the unvested deposit",
		`Cancel an active or paused stream. Caller: the sender or the administrator.

The unvested part of the deposit returns to the sender. What has vested
stays claimable by the recipient with 'fluxora withdraw'.`,
		"cancelled", "refund", func(s *session, id domain.StreamID) (*amount.Amount, error) {
			refund, err := s.engine.CancelStream(s.ctx, id)
			return &refund, err
		})
}

// NewCancelAdminCommand creates the cancel-admin command.
func NewCancelAdminCommand(rootOpts *RootOptions) *cobra.Command {
	return newStreamActionCommand(rootOpts, "cancel-admin", "Force-cancel a stream as the administrator",
		"Cancel any stream. Requires the administrator's own authentication.",
		"cancelled", "refund", func(s *session, id domain.StreamID) (*amount.Amount, error) {
			refund, err := s.engine.CancelStreamAsAdmin(s.ctx, id)
			return &refund, err
		})
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return newStreamActionCommand(rootOpts, "withdraw", "Withdraw everything vested so far",
		"Transfer the vested, not yet withdrawn amount to the recipient, who must be the caller.",
		"withdrawn", "amount", func(s *session, id domain.StreamID) (*amount.Amount, error) {
			amt, err := s.engine.Withdraw(s.ctx, id)
			return &amt, err
		})
}

// NewAccruedCommand creates the accrued command.
func NewAccruedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accrued <stream-id>",
		Short: "Show the vested and withdrawable amounts",
		Long: `Show how much of a stream has vested at the ledger time and how much of
that the recipient can still withdraw. Read-only.

Example:
  fluxora accrued 0 --now 300`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			accrued, err := s.engine.CalculateAccrued(s.ctx, id)
			if err != nil {
				return out.Rejected("accrued", err)
			}
			withdrawable, err := s.engine.Withdrawable(s.ctx, id)
			if err != nil {
				return out.Rejected("accrued", err)
			}

			now := s.clock.Now()
			if rootOpts.Format == "json" {
				return out.Success(map[string]any{
					"stream_id":    id,
					"now":          now,
					"accrued":      accrued.String(),
					"withdrawable": withdrawable.String(),
				})
			}
			fmt.Fprintf(out.Writer, "stream %d at %d: accrued %s, withdrawable %s\n", id, now, accrued, withdrawable)
			return nil
		},
	}
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stream <stream-id>",
		Short:         "Show a stream record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.engine.GetStreamState(s.ctx, id)
			if err != nil {
				return out.Rejected("stream", err)
			}
			if rootOpts.Format == "json" {
				return out.Success(st)
			}
			writeStreamText(out.Writer, st, s.clock.Now())
			return nil
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter  string
	Expired bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List streams, optionally filtered",
		Long: `List every stream in id order.

--filter takes a CEL expression over the variables id, sender, recipient,
status, deposit, rate, withdrawn, start, cliff, end, accrued, withdrawable
and now.

Examples:
  fluxora list
  fluxora list --filter 'status == "Active" && withdrawable > 0'
  fluxora list --filter 'recipient == "bob"' --format json
  fluxora list --expired --now 200000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "CEL filter expression")
	cmd.Flags().BoolVar(&opts.Expired, "expired", false, "only streams whose retention window has passed")
	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var filter *query.Filter
	if opts.Filter != "" {
		f, err := query.Compile(opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
		filter = f
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	streams, err := s.store.ListStreams(s.ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list streams", err)
	}
	now := s.clock.Now()
	if opts.Expired {
		ids, err := s.store.ExpiredStreams(s.ctx, now)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read retention", err)
		}
		streams = keepIDs(streams, ids)
	}
	if filter != nil {
		streams, err = filter.Select(streams, now)
		if err != nil {
			return WrapExitError(ExitCommandError, "filter evaluation failed", err)
		}
	}

	if opts.Format == "json" {
		return out.Success(streams)
	}
	if len(streams) == 0 {
		fmt.Fprintln(out.Writer, "No streams.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSENDER\tRECIPIENT\tDEPOSIT\tWITHDRAWN\tACCRUED")
	for _, st := range streams {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.ID, st.Status, st.Sender, st.Recipient, st.Deposit, st.Withdrawn, accrual.StreamAccrued(st, now))
	}
	return tw.Flush()
}

func keepIDs(streams []domain.Stream, ids []domain.StreamID) []domain.Stream {
	want := make(map[domain.StreamID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	kept := streams[:0]
	for _, st := range streams {
		if want[st.ID] {
			kept = append(kept, st)
		}
	}
	return kept
}

func writeStreamText(w io.Writer, st domain.Stream, now uint64) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", st.ID)
	fmt.Fprintf(tw, "status:\t%s\n", st.Status)
	fmt.Fprintf(tw, "sender:\t%s\n", st.Sender)
	fmt.Fprintf(tw, "recipient:\t%s\n", st.Recipient)
	fmt.Fprintf(tw, "deposit:\t%s\n", st.Deposit)
	fmt.Fprintf(tw, "rate:\t%s/s\n", st.Rate)
	fmt.Fprintf(tw, "schedule:\tstart %d, cliff %d, end %d\n", st.Start, st.Cliff, st.End)
	fmt.Fprintf(tw, "withdrawn:\t%s\n", st.Withdrawn)
	fmt.Fprintf(tw, "accrued:\t%s (at %d)\n", accrual.StreamAccrued(st, now), now)
	if st.Status == domain.StatusCancelled {
		fmt.Fprintf(tw, "cancelled at:\t%d\n", st.CancelledAt)
	}
	tw.Flush()
}

// parseStreamID parses a stream id argument.
func parseStreamID(arg string) (domain.StreamID, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid stream id %q", arg), err)
	}
	return domain.StreamID(n), nil
}

// callerOf returns the identity the session's caller claims, or "".
func callerOf(s *session) domain.Identity {
	return auth.ContextAuthorizer{}.Caller(s.ctx)
}
