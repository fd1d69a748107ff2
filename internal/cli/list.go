package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed packages",
		Long:    `List the packages recorded in wapm.lock. Lockfiles written by older wapm versions are read as well.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.projectDir()
			if err != nil {
				return err
			}
			pkgs, _, err := dataflow.ReadLockfile(dataflow.FileSource{Path: filepath.Join(dir, lockfile.FileName)})
			if err != nil {
				return err
			}
			if len(pkgs) == 0 {
				printInfo("No packages installed")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPackages(pkgs))
			return nil
		},
	}
}

// renderPackages lays out one row per package in key order.
func renderPackages(pkgs lockfile.Packages) string {
	rows := make([][]string, 0, len(pkgs))
	for _, key := range pkgs.Keys().Sorted() {
		pkg := pkgs[key]
		commands := make([]string, 0, len(pkg.Commands))
		for _, cmd := range pkg.Commands {
			commands = append(commands, cmd.Name)
		}
		rows = append(rows, []string{
			key.Name,
			key.Version,
			strconv.Itoa(len(pkg.Modules)),
			strings.Join(commands, ", "),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Modules", "Commands").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			switch col {
			case 0:
				return base.Foreground(colorCyan)
			case 1:
				return base.Foreground(colorWhite)
			default:
				return base.Foreground(colorGray)
			}
		})
	return t.String()
}
