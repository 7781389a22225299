package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage pinned package manager releases and registry metadata",
	}

	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached package manager releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.flags.config)
			if err != nil {
				return err
			}
			store, err := cfg.DistStore()
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("No cached releases")
				printDetail("Directory: %s", store.Root())
				return nil
			}

			rows := make([][]string, 0, len(entries))
			var total int64
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.Version, formatSize(e.Size), e.ModTime.Format(time.DateOnly)})
				total += e.Size
			}
			headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("Manager", "Version", "Size", "Cached").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == -1 {
						return headerStyle
					}
					if col == 0 {
						return lipgloss.NewStyle().Foreground(colorCyan)
					}
					return lipgloss.NewStyle()
				})

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			printDetail("%d releases, %s in %s", len(entries), formatSize(total), store.Root())
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var metadataOnly, releasesOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached releases and registry metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.flags.config)
			if err != nil {
				return err
			}

			if !metadataOnly {
				store, err := cfg.DistStore()
				if err != nil {
					return err
				}
				entries, err := store.List()
				if err != nil {
					return err
				}
				if err := store.Clear(); err != nil {
					return err
				}
				printSuccess("Removed %d cached releases", len(entries))
				printDetail("Directory: %s", store.Root())
			}

			if !releasesOnly {
				mc, err := cfg.OpenMetadataCache(cmd.Context())
				if err != nil {
					return err
				}
				defer mc.Close()
				if fc, ok := mc.(*cache.FileCache); ok {
					if err := fc.Clear(); err != nil {
						return err
					}
					printSuccess("Cleared registry metadata")
					printDetail("Directory: %s", fc.Dir())
				} else {
					printInfo("Metadata backend %q expires entries on its own", cfg.MetadataCache.Backend)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&metadataOnly, "metadata", false, "only clear registry metadata")
	cmd.Flags().BoolVar(&releasesOnly, "releases", false, "only clear cached releases")
	cmd.MarkFlagsMutuallyExclusive("metadata", "releases")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the release cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.flags.config)
			if err != nil {
				return err
			}
			store, err := cfg.DistStore()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Root())
			return nil
		},
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
