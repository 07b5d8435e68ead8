package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/auth"
	"github.com/roach88/fluxora/internal/domain"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Asset string
	Admin string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the ledger configuration (once)",
		Long: `Record the streamed asset and the administrator. A ledger can be
initialized exactly once; a second init fails with ALREADY_INITIALIZED.

Example:
  fluxora init --asset usdc --admin ops`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Asset, "asset", "", "token handle of the streamed asset (required)")
	cmd.Flags().StringVar(&opts.Admin, "admin", "", "administrator identity (required)")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	asset, err := domain.ParseIdentity(opts.Asset)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --asset", err)
	}
	admin, err := domain.ParseIdentity(opts.Admin)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --admin", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Initialize(s.ctx, asset, admin); err != nil {
		return out.Rejected("init", err)
	}

	if opts.Format == "json" {
		return out.Success(domain.Config{Token: asset, Admin: admin})
	}
	fmt.Fprintf(out.Writer, "%s initialized (asset %s, admin %s)\n", okMark(), asset, admin)
	return nil
}

// configView is the config command's output. The auth secret is never
// printed.
type configView struct {
	Database  string         `json:"database"`
	Events    string         `json:"events"`
	Custody   string         `json:"custody"`
	Threshold uint64         `json:"retention_threshold"`
	ExtendTo  uint64         `json:"retention_extend_to"`
	AuthMode  string         `json:"auth_mode"`
	Issuer    string         `json:"issuer,omitempty"`
	TokenTTL  string         `json:"token_ttl"`
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Ledger    *domain.Config `json:"ledger,omitempty"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Print the configuration after defaults, the config file and flag
overrides are applied, plus the ledger's asset and administrator when it
has been initialized.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			cfg := s.cfg
			view := configView{
				Database:  cfg.Database,
				Events:    cfg.Events,
				Custody:   cfg.Custody,
				Threshold: cfg.Retention.Threshold,
				ExtendTo:  cfg.Retention.ExtendTo,
				AuthMode:  "trusted",
				Issuer:    cfg.Auth.Issuer,
				TokenTTL:  cfg.Auth.TTL.String(),
				LogLevel:  cfg.Log.Level,
				LogFormat: cfg.Log.Format,
			}
			if cfg.Auth.Secret != "" {
				view.AuthMode = "jwt"
			}

			ledger, err := s.engine.GetConfig(s.ctx)
			switch {
			case err == nil:
				view.Ledger = &ledger
			case !errors.Is(err, domain.ErrNotInitialized):
				return out.Rejected("config", err)
			}

			if rootOpts.Format == "json" {
				return out.Success(view)
			}
			tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "database:\t%s\n", view.Database)
			fmt.Fprintf(tw, "events:\t%s\n", view.Events)
			fmt.Fprintf(tw, "custody:\t%s\n", view.Custody)
			fmt.Fprintf(tw, "retention:\tthreshold %d, extend to %d\n", view.Threshold, view.ExtendTo)
			fmt.Fprintf(tw, "auth:\t%s (token ttl %s)\n", view.AuthMode, view.TokenTTL)
			fmt.Fprintf(tw, "log:\t%s, %s\n", view.LogLevel, view.LogFormat)
			if view.Ledger != nil {
				fmt.Fprintf(tw, "asset:\t%s\n", view.Ledger.Token)
				fmt.Fprintf(tw, "admin:\t%s\n", view.Ledger.Admin)
			} else {
				fmt.Fprintf(tw, "ledger:\tnot initialized\n")
			}
			return tw.Flush()
		},
	}
}

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	Holder string
	Amount string
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Credit an account with the streamed asset",
		Long: `Fund an account so it can create streams. Only the administrator may
mint.

Example:
  fluxora mint --as ops --holder alice --amount 5000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Holder, "holder", "", "account to credit (required)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount to credit (required)")
	_ = cmd.MarkFlagRequired("holder")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runMint(opts *MintOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	holder, err := domain.ParseIdentity(opts.Holder)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --holder", err)
	}
	amt, err := amount.Parse(opts.Amount)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --amount", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ledger, err := s.engine.GetConfig(s.ctx)
	if err != nil {
		return out.Rejected("mint", err)
	}
	if err := (auth.ContextAuthorizer{}).RequireAuth(s.ctx, ledger.Admin); err != nil {
		return out.Rejected("mint", err)
	}
	if err := s.store.Mint(s.ctx, ledger.Token, holder, amt); err != nil {
		return out.Rejected("mint", err)
	}
	bal, err := s.store.Balance(s.ctx, ledger.Token, holder)
	if err != nil {
		return out.Rejected("mint", err)
	}
	s.logger.Info("minted", "holder", holder, "amount", amt, "balance", bal)

	if opts.Format == "json" {
		return out.Success(map[string]any{"holder": holder, "minted": amt.String(), "balance": bal.String()})
	}
	fmt.Fprintf(out.Writer, "%s minted %s %s to %s (balance %s)\n", okMark(), amt, ledger.Token, holder, bal)
	return nil
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an account's balance of the streamed asset",
		Long: `Show an account's balance. Pass the custody identity
(default "fluxora:custody") to see the total held in escrow.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			id, err := domain.ParseIdentity(holder)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --holder", err)
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ledger, err := s.engine.GetConfig(s.ctx)
			if err != nil {
				return out.Rejected("balance", err)
			}
			bal, err := s.store.Balance(s.ctx, ledger.Token, id)
			if err != nil {
				return out.Rejected("balance", err)
			}

			if rootOpts.Format == "json" {
				return out.Success(map[string]any{"holder": id, "token": ledger.Token, "balance": bal.String()})
			}
			fmt.Fprintf(out.Writer, "%s: %s %s\n", id, bal, ledger.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "account to inspect (required)")
	_ = cmd.MarkFlagRequired("holder")
	return cmd
}
