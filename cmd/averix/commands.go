package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/averix/internal/app"
	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
)

// ---- Session commands

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AVERIX_PASSWORD")
			}
			return c.withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				sess, err := deps.Sessions.Login(ctx, email, password)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sess.Profile)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $AVERIX_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var req averix.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("AVERIX_PASSWORD")
			}
			return c.withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				sess, err := deps.Sessions.Register(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sess.Profile)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (default $AVERIX_PASSWORD)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				return deps.Sessions.Logout(ctx)
			})
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				return printJSON(cmd.OutOrStdout(), deps.Sessions.Current().Profile)
			})
		},
	}
}

// ---- Dashboard commands

func newDashboardCmd(c *cli) *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Load the dashboard and print its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if err := deps.Dashboard.SelectTab(tab); err != nil {
					return err
				}
				if err := activate(ctx, deps.Dashboard); err != nil {
					return err
				}
				if tab == string(dashboard.TabHistory) {
					_ = deps.Dashboard.RefreshHistory(ctx)
				}
				return printJSON(cmd.OutOrStdout(), deps.Dashboard.View())
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(dashboard.TabOverview), "tab to select (overview, trading, staking, history)")
	return cmd
}

func newOrderCmd(c *cli) *cobra.Command {
	var draft dashboard.OrderDraft
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if err := activate(ctx, deps.Dashboard); err != nil {
					return err
				}
				deps.Dashboard.SetOrderDraft(draft)
				warnAdvisories(cmd.ErrOrStderr(), deps.Dashboard.OrderRiskAdvisories())

				trade, err := deps.Dashboard.SubmitOrder(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), trade)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Symbol, "symbol", domain.DefaultSymbol, "instrument symbol")
	cmd.Flags().StringVar(&draft.Side, "side", string(domain.OrderSideBuy), "buy or sell")
	cmd.Flags().StringVar(&draft.Amount, "amount", "", "order amount")
	cmd.Flags().StringVar(&draft.Price, "price", "", "limit price")
	cmd.Flags().StringVar(&draft.StopLoss, "stop-loss", "", "stop-loss price")
	cmd.Flags().StringVar(&draft.TakeProfit, "take-profit", "", "take-profit price")
	return cmd
}

func newStakeCmd(c *cli) *cobra.Command {
	draft := dashboard.DefaultStakeDraft()
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake TFT for a fixed duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if err := activate(ctx, deps.Dashboard); err != nil {
					return err
				}
				deps.Dashboard.SetStakeDraft(draft)
				warnAdvisories(cmd.ErrOrStderr(), deps.Dashboard.StakeAdvisories())

				stake, err := deps.Dashboard.SubmitStake(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stake)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Amount, "amount", "", "amount of TFT to stake")
	cmd.Flags().IntVar(&draft.DurationDays, "duration", draft.DurationDays, "lock duration in days (14, 30, 90, 180, 360)")
	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		journal bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the trade history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if journal {
					if deps.Journal == nil {
						return errors.New("history: the journal needs supabase.enabled")
					}
					trades, err := deps.Journal.List(ctx, userID(deps), domain.ListOpts{Limit: limit})
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), trades)
				}

				if err := deps.Dashboard.RefreshHistory(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), deps.Dashboard.Snapshot().History.Value)
			})
		},
	}
	cmd.Flags().BoolVar(&journal, "journal", false, "read the local trade journal instead of the backend")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum journal rows")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the public platform stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := averix.NewClient(averix.ClientConfig{
				BaseURL: c.cfg.API.BaseURL,
				Timeout: c.cfg.API.Timeout.Duration,
			})
			stats, err := client.GetPublicStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

// ---- Long-running modes

func newServeCmd(c *cli) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Mode = app.ModeServe
			if port > 0 {
				c.cfg.Server.Port = port
			}
			return c.runApp(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

func newMonitorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Refresh the dashboard periodically and notify on changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Mode = app.ModeMonitor
			return c.runApp(cmd.Context())
		},
	}
}

// ---- Export commands

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upload a dashboard snapshot to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if deps.Exporter == nil {
					return errors.New("export: s3 is not enabled")
				}
				if err := activate(ctx, deps.Dashboard); err != nil {
					return err
				}
				_ = deps.Dashboard.RefreshHistory(ctx)

				res, err := deps.Exporter.Export(ctx, deps.Dashboard.Snapshot())
				deps.Metrics.ObserveExport(err)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.AddCommand(newExportListCmd(c), newExportVerifyCmd(c), newExportArchiveCmd(c))
	return cmd
}

func newExportListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List exported snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := c.cfg.Export.Prefix
			if len(args) == 1 {
				prefix = args[0]
			}
			return c.withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if deps.BlobReader == nil {
					return errors.New("export: s3 is not enabled")
				}
				snaps, err := deps.BlobReader.Snapshots(ctx, prefix)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snaps)
			})
		},
	}
}

func newExportVerifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Check the signature of an exported snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if deps.Exporter == nil {
					return errors.New("export: s3 is not enabled")
				}
				if err := deps.Exporter.Verify(ctx, deps.BlobReader, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: signature ok\n", args[0])
				return err
			})
		},
	}
}

func newExportArchiveCmd(c *cli) *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive journaled trades older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := time.Parse(time.DateOnly, before)
			if err != nil {
				return fmt.Errorf("archive: --before: %w", err)
			}
			return c.withSession(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				if deps.Exporter == nil {
					return errors.New("export: s3 is not enabled")
				}
				n, err := deps.Exporter.ArchiveJournal(ctx, userID(deps), cutoff)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "archived %d trades\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", time.Now().UTC().AddDate(0, 0, -30).Format(time.DateOnly), "cutoff date (YYYY-MM-DD)")
	return cmd
}

// ---- Internal helpers

// withDeps wires the dependencies, runs fn and releases them.
func (c *cli) withDeps(ctx context.Context, fn func(context.Context, *app.Dependencies) error) error {
	deps, cleanup, err := app.Wire(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, deps)
}

// withSession is withDeps with the stored credential restored first.
func (c *cli) withSession(ctx context.Context, fn func(context.Context, *app.Dependencies) error) error {
	return c.withDeps(ctx, func(ctx context.Context, deps *app.Dependencies) error {
		sess, err := deps.Sessions.Restore(ctx)
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return errors.New("not logged in; run `averix login`")
		}
		if err != nil && !sess.Authenticated() {
			return err
		}
		return fn(ctx, deps)
	})
}

func (c *cli) runApp(ctx context.Context) error {
	a := app.New(c.cfg, c.logger)
	defer a.Close()
	err := a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// activate runs the three dashboard fetchers and waits for them to settle.
func activate(ctx context.Context, d *dashboard.Dashboard) error {
	select {
	case <-d.Activate(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func userID(deps *app.Dependencies) string {
	if p := deps.Sessions.Current().Profile; p != nil {
		return p.ID
	}
	return ""
}

func warnAdvisories(w io.Writer, advisories []dashboard.Advisory) {
	for _, a := range advisories {
		fmt.Fprintf(w, "warning: %s\n", a.Message)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
