package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install [package[@version]...]",
		Short: "Install packages and record them in wapm.toml",
		Long: `Install packages into wapm_packages and update wapm.lock.

Without arguments every dependency declared in wapm.toml is installed.
A bare package name installs the latest version; a version or range can
be given after '@':

  wapm install _/cowsay
  wapm install _/cowsay@0.2.0 syrusakbary/figlet@^0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]packagekey.Key, 0, len(args))
			for _, arg := range args {
				key, err := manifest.ParsePackageArg(arg)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
			return c.runUpdate(cmd.Context(), dataflow.Options{Add: keys})
		},
	}
}

// uninstallCommand creates the uninstall command.
func (c *CLI) uninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall package...",
		Aliases: []string{"remove"},
		Short:   "Remove packages from the project",
		Long: `Remove packages from wapm.toml and wapm.lock and delete their command shims.

Packages are named without a version: 'wapm uninstall _/cowsay'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUpdate(cmd.Context(), dataflow.Options{Remove: args})
		},
	}
}

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Bring wapm.lock in line with wapm.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUpdate(cmd.Context(), dataflow.Options{})
		},
	}
}

// runUpdate executes one pipeline run and prints its report.
func (c *CLI) runUpdate(ctx context.Context, opts dataflow.Options) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	p, closeCache, err := c.newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	var spinner *Spinner
	if logger.GetLevel() > LogDebug {
		spinner = newSpinnerWithContext(ctx, "Updating packages...")
		spinner.Start()
	}
	report, err := p.Update(ctx, opts)
	switch {
	case spinner == nil:
		if err == nil {
			prog.done("Update finished")
		}
	case err == nil:
		spinner.StopWithSuccess("Update finished")
	case spinner.Cancelled():
		// Interrupted; the error itself is reported by the caller.
		spinner.Stop()
	default:
		spinner.StopWithError("Update failed")
	}
	if err != nil {
		return err
	}

	printReport(report, time.Since(prog.start))
	return nil
}

// printReport summarizes an update run.
func printReport(r *dataflow.Report, elapsed time.Duration) {
	for _, k := range r.Added {
		printSuccess("Installed %s", StyleHighlight.Render(k.String()))
	}
	for _, k := range r.Removed {
		printInfo("Removed %s", StyleHighlight.Render(k.String()))
	}
	if len(r.Added) == 0 && len(r.Removed) == 0 {
		printInfo("Packages are up to date")
	}
	printStats(len(r.Retained), r.Installed, elapsed)
	if r.LockfileWritten {
		printFile(lockfile.FileName)
	}
	if r.ManifestWritten {
		printFile(manifest.FileName)
	}
}
