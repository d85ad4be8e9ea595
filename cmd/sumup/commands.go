package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/aggregate"
	"github.com/h0rv/sumup/internal/config"
	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/server"
	"github.com/h0rv/sumup/internal/settings"
	"github.com/h0rv/sumup/internal/tui"
)

var errNoCardSource = errors.New("this command needs the cards of the board: configure a local or github source")

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Power-Up capabilities over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			storage, err := c.openStorage(ctx)
			if err != nil {
				return err
			}
			// Request-sourced boards are named by each request's URL
			var cards host.CardSource
			if c.cfg.Source.Kind != config.SourceRequest {
				b, err := c.openBoard(ctx)
				if err != nil {
					return err
				}
				cards = b.cards
				c.logger.Info("Serving board", zap.String("board", b.id), zap.String("source", c.cfg.Source.Kind))
			}

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			srv := server.New(c.powerUp(), storage, cards, c.logger.Named("server"))
			return srv.ListenAndServe(ctx, addr, c.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address. Overrides server.addr.")
	return cmd
}

func newBoardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		Long: `Open the board in the terminal. Cards show their field values and the
first card of every list shows the list totals.

Logs are written to log.file while the board is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, b, err := c.session(ctx)
			if err != nil {
				return err
			}
			if sess.Cards == nil {
				return errNoCardSource
			}

			app := tui.NewAppModel(tui.Deps{
				PowerUp: c.powerUp(),
				Session: sess,
				Title:   b.title,
				Refresh: c.refreshConfig(),
				Logger:  c.logger.Named("tui"),
			}, ctx)

			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("program error: %w", err)
			}
			return nil
		},
	}
}

func newFieldsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Manage the numeric fields of the board",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the fields",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, _, err := c.session(cmd.Context())
				if err != nil {
					return err
				}
				fields, err := settings.Fields(cmd.Context(), sess)
				if err != nil {
					return err
				}
				printFields(cmd.OutOrStdout(), fields)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a field",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, _, err := c.session(cmd.Context())
				if err != nil {
					return err
				}
				f, err := settings.AddField(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", f.Name, f.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <field> <name>",
			Short: "Rename a field, by ID or current name",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, _, err := c.session(cmd.Context())
				if err != nil {
					return err
				}
				f, err := resolveField(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				renamed, err := settings.RenameField(cmd.Context(), sess, f.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", f.Name, renamed.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <field>",
			Aliases: []string{"delete"},
			Short:   "Delete a field, by ID or name. Card values are kept.",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, _, err := c.session(cmd.Context())
				if err != nil {
					return err
				}
				f, err := resolveField(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				if err := settings.DeleteField(cmd.Context(), sess, f.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", f.Name)
				return nil
			},
		},
	)
	return cmd
}

func newValuesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values",
		Short: "Read and write the field values of a card",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <card>",
			Short: "Show the values of a card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				sess, _, err := c.session(ctx)
				if err != nil {
					return err
				}
				fields, err := settings.Fields(ctx, sess)
				if err != nil {
					return err
				}
				values, err := settings.Values(ctx, sess, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, f := range fields {
					v, ok := values[f.ID]
					if !ok {
						fmt.Fprintf(out, "%s: -\n", f.Name)
						continue
					}
					fmt.Fprintf(out, "%s: %v\n", f.Name, v)
				}
				at, ok, err := settings.ValuesUpdatedAt(ctx, sess, args[0])
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "Updated %s\n", at.Local().Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <card> <field> <value>",
			Short: "Set one value of a card. An empty value clears it.",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				sess, _, err := c.session(ctx)
				if err != nil {
					return err
				}
				f, err := resolveField(ctx, sess, args[1])
				if err != nil {
					return err
				}
				if _, err := settings.SetValue(ctx, sess, args[0], f.ID, args[2]); err != nil {
					return err
				}
				if strings.TrimSpace(args[2]) != "" && !aggregate.IsNumeric(args[2]) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %q is not a number and counts as 0\n", args[2])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s of %s\n", f.Name, args[0])
				return nil
			},
		},
	)
	return cmd
}

func newSumCmd(c *cli) *cobra.Command {
	var persist, cached bool

	cmd := &cobra.Command{
		Use:   "sum <list>",
		Short: "Show the totals of a list",
		Long: `Show the totals of every field over the cards of a list. The first card
of the list carries the totals and does not count towards them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, _, err := c.session(ctx)
			if err != nil {
				return err
			}
			pu := c.powerUp()
			listID := args[0]
			sess = sess.ForList(listID)

			fields, err := settings.Fields(ctx, sess)
			if err != nil {
				return err
			}

			var totals map[string]float64
			switch {
			case cached:
				entry, ok, err := pu.CachedSum(ctx, sess, listID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("list %s has no saved totals", listID)
				}
				totals = entry.Totals
			case sess.Cards == nil:
				return errNoCardSource
			case persist:
				entry, err := pu.RefreshCache(ctx, sess, listID)
				if err != nil {
					return err
				}
				totals = entry.Totals
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved totals of %d cards\n", entry.Cards)
			default:
				totals, err = pu.ListSum(ctx, sess, listID)
				if err != nil {
					return err
				}
			}

			printTotals(cmd.OutOrStdout(), fields, totals)
			return nil
		},
	}
	cmd.Flags().BoolVar(&persist, "persist", false, "Store the totals in the board's sum cache")
	cmd.Flags().BoolVar(&cached, "cached", false, "Show the stored totals instead of computing them")
	cmd.MarkFlagsMutuallyExclusive("persist", "cached")
	return cmd
}

// resolveField finds a field by ID, then by name.
func resolveField(ctx context.Context, sess host.Session, ref string) (domain.Field, error) {
	fields, err := settings.Fields(ctx, sess)
	if err != nil {
		return domain.Field{}, err
	}
	for _, f := range fields {
		if f.ID == ref {
			return f, nil
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, ref) {
			return f, nil
		}
	}
	return domain.Field{}, fmt.Errorf("%w: %s", settings.ErrFieldNotFound, ref)
}

func printFields(w io.Writer, fields []domain.Field) {
	if len(fields) == 0 {
		fmt.Fprintln(w, "No fields")
		return
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "NAME")
	for _, f := range fields {
		t.Row(f.ID, f.Name)
	}
	fmt.Fprintln(w, t.Render())
}

func printTotals(w io.Writer, fields []domain.Field, totals map[string]float64) {
	if len(fields) == 0 {
		fmt.Fprintln(w, "No fields")
		return
	}
	for _, f := range fields {
		fmt.Fprintf(w, "∑ %s: %s\n", f.Name, aggregate.FormatNumber(totals[f.ID]))
	}
}
