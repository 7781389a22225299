package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/integrations/npm"
)

// infoCommand looks a package up on the configured registry.
func (c *CLI) infoCommand() *cobra.Command {
	var (
		refresh  bool
		versions bool
	)

	cmd := &cobra.Command{
		Use:   "info <package[@version|@tag]>",
		Short: "Show registry metadata for a package",
		Long: `Show registry metadata for a package version. Without a version the
"latest" dist-tag is used. Responses are cached according to the
metadata_cache settings in the config file.

Examples:
  pmux info pnpm
  pmux info yarn@1.22.19
  pmux info @vue/cli@next --refresh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			prog := newProgress(loggerFromContext(ctx))
			var spinner *Spinner
			if stderrIsTerminal() && !c.flags.silent {
				spinner = newSpinnerWithContext(ctx, "Fetching "+args[0]+"...")
				spinner.Start()
			}
			info, err := e.registry.FetchPackage(ctx, args[0], refresh)
			if spinner != nil {
				spinner.Stop()
			}
			if err != nil {
				return err
			}
			if !c.flags.silent {
				prog.done("Fetched " + info.Name + "@" + info.Version)
			}

			printPackageInfo(info, e.registry.Registry(), versions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the metadata cache")
	cmd.Flags().BoolVar(&versions, "versions", false, "list every published version")
	return cmd
}

func printPackageInfo(info *npm.PackageInfo, registry string, versions bool) {
	fmt.Println(StyleTitle.Render(info.Name+"@"+info.Version) + " " + StyleDim.Render(registry))
	if info.Description != "" {
		printDetail("%s", info.Description)
	}
	printNewline()

	if info.License != "" {
		printKeyValue("license", info.License)
	}
	if info.HomePage != "" {
		printKeyValue("homepage", StyleLink.Render(info.HomePage))
	}
	if info.Repository != "" {
		printKeyValue("repository", info.Repository)
	}
	if node, ok := info.Engines["node"]; ok {
		printKeyValue("node", node)
	}
	printKeyValue("tarball", info.Tarball)
	if info.Integrity != "" {
		printKeyValue("integrity", info.Integrity)
	} else if info.Shasum != "" {
		printKeyValue("shasum", info.Shasum)
	}

	if len(info.DistTags) > 0 {
		tags := make([]string, 0, len(info.DistTags))
		for tag, v := range info.DistTags {
			tags = append(tags, tag+"="+v)
		}
		sort.Strings(tags)
		printKeyValue("dist-tags", strings.Join(tags, " "))
	}

	if versions {
		printKeyValue("versions", strings.Join(info.Versions, " "))
	} else {
		printKeyValue("versions", StyleNumber.Render(fmt.Sprint(len(info.Versions))))
	}
}
