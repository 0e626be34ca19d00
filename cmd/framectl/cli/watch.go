package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gwframe/internal/framefile"
)

func (a *app) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [PATTERN...]",
		Short: "Report frame files as they appear",
		Long: "Watch the directories of the glob patterns and print each new frame " +
			"file once it stops changing. Runs until interrupted.",
		RunE: a.runWatch,
	}
	cmd.Flags().Duration("settle", 2*time.Second, "quiet period before a file is reported")
	cmd.Flags().Bool("existing", false, "also report files present at startup")
	cmd.Flags().Bool("check", false, "verify each file as it is reported")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	patterns, err := a.patterns(args)
	if err != nil {
		return err
	}
	settle, _ := cmd.Flags().GetDuration("settle")
	existing, _ := cmd.Flags().GetBool("existing")
	check, _ := cmd.Flags().GetBool("check")
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}

	p := a.printer(cmd)
	a.logger.Info("watching", "patterns", patterns)
	return framefile.Watch(cmd.Context(), framefile.WatchConfig{
		Patterns: patterns,
		Settle:   settle,
		Existing: existing,
		Logger:   a.logger,
	}, func(f framefile.File) {
		if !check {
			if p.isJSON() {
				_ = p.json(f)
			} else {
				p.line("%s\t%d\t%d", f.Path, f.Name.Start, f.Name.Duration)
			}
			return
		}
		res := verifyFile(f.Path, cfg)
		if p.isJSON() {
			_ = p.json(res)
			return
		}
		status := "OK"
		if !res.ok() {
			status = fmt.Sprintf("FAIL (%d errors)", len(res.Errors))
		}
		p.line("%s\t%d frames\t%s", f.Path, res.Frames, status)
	})
}
