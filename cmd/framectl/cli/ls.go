package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gwframe/internal/framefile"
)

func (a *app) newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [PATTERN...]",
		Short: "List frame files by GPS time",
		Long: "List files matching the glob patterns (** matches any depth) whose " +
			"names follow the IFO-DESC-GPS-DUR.gwf convention, ordered by GPS start. " +
			"Without patterns the configured ones are used.",
		RunE: a.runLs,
	}
	cmd.Flags().Bool("gaps", false, "also report uncovered GPS intervals")
	return cmd
}

type lsView struct {
	Files []framefile.File `json:"files"`
	Gaps  [][2]uint64      `json:"gaps,omitempty"`
}

func (a *app) patterns(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.settings.Patterns) > 0 {
		return a.settings.Patterns, nil
	}
	return nil, errors.New("no patterns given and none configured (framectl config set patterns ...)")
}

func (a *app) runLs(cmd *cobra.Command, args []string) error {
	patterns, err := a.patterns(args)
	if err != nil {
		return err
	}
	files, err := framefile.Discover(patterns...)
	if err != nil {
		return err
	}
	v := lsView{Files: files}
	if gaps, _ := cmd.Flags().GetBool("gaps"); gaps {
		v.Gaps = framefile.Gaps(files)
	}

	p := a.printer(cmd)
	if p.isJSON() {
		return p.json(v)
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.Name.Observatory, f.Name.Description, fmt.Sprint(f.Name.Start), fmt.Sprint(f.Name.Duration),
			formatBytes(fileSize(f.Path)), f.Path,
		})
	}
	p.table([]string{"IFO", "DESCRIPTION", "START", "DURATION", "SIZE", "PATH"}, rows)
	if len(v.Gaps) > 0 {
		p.line("")
		for _, g := range v.Gaps {
			p.line("gap %d-%d (%ds)", g[0], g[1], g[1]-g[0])
		}
	}
	return nil
}
