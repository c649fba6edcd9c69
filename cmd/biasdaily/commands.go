package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/biasdaily/app"
	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/progress"
	"github.com/jonwraymond/biasdaily/server"
	"github.com/jonwraymond/biasdaily/validation"
)

// withApp opens the app for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := c.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("closing app", zap.Error(err))
		}
	}()
	return fn(a)
}

func (c *cli) print(w io.Writer, v any, text func(io.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printBias(w io.Writer, b content.Bias) {
	fmt.Fprintf(w, "%s (%s)\n", b.Title, b.Category.Label())
	fmt.Fprintf(w, "  %s\n", b.Summary)
	if b.Why != "" {
		fmt.Fprintf(w, "  Why: %s\n", b.Why)
	}
	if b.Counter != "" {
		fmt.Fprintf(w, "  Counter: %s\n", b.Counter)
	}
	fmt.Fprintf(w, "  id: %s\n", b.ID)
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		limit    int
		category string
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search biases by title, summary, rationale and counter-strategy",
		Example: `  biasdaily search anchor
  biasdaily search --category memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.withApp(cmd, func(a *app.App) error {
				results, err := a.Search(cmd.Context(), query, -1)
				if err != nil {
					return err
				}
				if category != "" {
					cat, err := content.ParseCategory(category)
					if err != nil {
						return err
					}
					results = results.FilterByCategory(cat)
				}
				if limit > 0 {
					results = results.Limit(limit)
				}
				return c.print(cmd.OutOrStdout(), results, func(w io.Writer) {
					if len(results) == 0 {
						fmt.Fprintln(w, "No biases found.")
						return
					}
					for _, r := range results {
						fmt.Fprintf(w, "%-32s %-16s %5.1f  %s\n",
							a.Highlight(r.Bias.Title, query), r.Bias.Category, r.Score, strings.Join(r.MatchedFields, ","))
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (0 for all)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only show one category")
	return cmd
}

func newHighlightCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "highlight <text> <query>",
		Short: "Mark occurrences of query in text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				out := a.Highlight(args[0], args[1])
				return c.print(cmd.OutOrStdout(), map[string]string{"text": out}, func(w io.Writer) {
					fmt.Fprintln(w, out)
				})
			})
		},
	}
}

func newTodayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show the bias of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				d, err := a.Today(cmd.Context())
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), d, func(w io.Writer) {
					fmt.Fprintf(w, "Bias of the day for %s\n\n", d.Date)
					printBias(w, d.Bias)
				})
			})
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				b, err := a.Bias(args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), b, func(w io.Writer) { printBias(w, b) })
			})
		},
	}
}

func newViewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "view <id>",
		Short: "Mark a bias as read and count today toward your streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				p, err := a.View(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), p, func(w io.Writer) {
					fmt.Fprintf(w, "Viewed %s (%d times)\n", p.BiasID, p.ViewCount)
				})
			})
		},
	}
}

func newFavoriteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Star or unstar a bias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				on, err := a.ToggleFavorite(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), map[string]any{"id": args[0], "favorite": on}, func(w io.Writer) {
					if on {
						fmt.Fprintf(w, "Added %s to favorites\n", args[0])
					} else {
						fmt.Fprintf(w, "Removed %s from favorites\n", args[0])
					}
				})
			})
		},
	}
}

func newFavoritesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorite biases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				favs, err := a.Favorites(cmd.Context())
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), favs, func(w io.Writer) {
					if len(favs) == 0 {
						fmt.Fprintln(w, "No favorites yet.")
						return
					}
					for _, b := range favs {
						fmt.Fprintf(w, "%-32s %s\n", b.ID, b.Title)
					}
				})
			})
		},
	}
}

func newMasterCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "master <id>",
		Short: "Toggle whether a bias is mastered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				m, err := a.ToggleMastered(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), map[string]any{"id": args[0], "mastered": m}, func(w io.Writer) {
					fmt.Fprintf(w, "%s mastered: %t\n", args[0], m)
				})
			})
		},
	}
}

func newProgressCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show reading progress and streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				stats, err := a.Stats(cmd.Context())
				if err != nil {
					return err
				}
				dist, err := a.CategoryDistribution(cmd.Context())
				if err != nil {
					return err
				}
				out := struct {
					progress.Stats
					Categories map[content.Category]int `json:"categories"`
				}{stats, dist}
				return c.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "Biases read:    %d\n", stats.TotalBiasesRead)
					fmt.Fprintf(w, "Mastered:       %d\n", stats.MasteredCount)
					fmt.Fprintf(w, "Current streak: %d\n", stats.CurrentStreak)
					fmt.Fprintf(w, "Longest streak: %d\n", stats.LongestStreak)
					if stats.LastViewedDate != "" {
						fmt.Fprintf(w, "Last viewed:    %s\n", stats.LastViewedDate)
					}
					for _, cat := range content.Categories() {
						fmt.Fprintf(w, "  %-16s %d\n", cat.Label(), dist[cat])
					}
				})
			})
		},
	}
}

func newRecommendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Suggest an unread bias from your least explored category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				b, ok, err := a.Recommend(cmd.Context())
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), map[string]any{"found": ok, "bias": b}, func(w io.Writer) {
					if !ok {
						fmt.Fprintln(w, "You have read every bias.")
						return
					}
					printBias(w, b)
				})
			})
		},
	}
}

func newAddCmd(c *cli) *cobra.Command {
	var in validation.UserBiasInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add your own bias",
		Example: `  biasdaily add --title "Meeting Fatigue" --category social \
    --summary "Agreeing with the room just to end the meeting sooner."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				b, err := a.AddUserBias(cmd.Context(), in)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), b, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s\n", b.ID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Title (3-100 characters)")
	cmd.Flags().StringVar(&in.Category, "category", "misc", "Category ID or label")
	cmd.Flags().StringVar(&in.Summary, "summary", "", "Summary (10-500 characters)")
	cmd.Flags().StringVar(&in.Why, "why", "", "Why it happens")
	cmd.Flags().StringVar(&in.Counter, "counter", "", "How to counter it")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your own biases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.DeleteUserBias(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all local data as JSON (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				exp, err := a.Export(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(args) == 1 {
					f, err := os.Create(args[0])
					if err != nil {
						return fmt.Errorf("failed to create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(exp)
			})
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge data from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}
			var exp progress.Export
			if err := json.Unmarshal(data, &exp); err != nil {
				return fmt.Errorf("failed to parse import file: %w", err)
			}
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.Import(cmd.Context(), exp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d biases, %d favorites, %d progress records\n",
					len(exp.UserBiases), len(exp.Favorites), len(exp.Progress))
				return nil
			})
		},
	}
}

func newServeCmd(c *cli) *cobra.Command {
	var (
		useHTTP bool
		addr    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve biasdaily tools over MCP (stdio by default)",
		Example: `  biasdaily serve
  biasdaily serve --http --addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				srv, err := server.New(a, server.Config{
					ServerInfo: server.ServerInfo{Name: c.cfg.Server.Name, Version: version},
					Logger:     c.logger,
				})
				if err != nil {
					return err
				}
				if useHTTP {
					if addr == "" {
						addr = c.cfg.Server.HTTPAddr
					}
					return server.ListenAndServe(cmd.Context(), addr, srv)
				}
				c.logger.Info("serving MCP over stdio")
				return server.Serve(cmd.Context(), srv, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve HTTP and SSE instead of stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
