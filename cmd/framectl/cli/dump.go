package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gwframe/internal/framefile"
	"gwframe/internal/prefetch"
	"gwframe/internal/stream"
)

func (a *app) newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "List the structures or frames of a frame file",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runDump,
	}
	cmd.Flags().Bool("frames", false, "list assembled frames instead of raw structures")
	cmd.Flags().Bool("full", false, "include every record field in JSON output")
	cmd.Flags().Int("workers", 0, "concurrent frame decoders for --frames")
	return cmd
}

func (a *app) runDump(cmd *cobra.Command, args []string) error {
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}
	r, err := framefile.Open(args[0], cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	p := a.printer(cmd)

	if frames, _ := cmd.Flags().GetBool("frames"); frames {
		return a.dumpFrames(cmd, args[0], r, p)
	}

	full, _ := cmd.Flags().GetBool("full")
	var views []entryView
	var firstErr error
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if e.Record == nil && err != nil {
			firstErr = err
			break
		}
		views = append(views, viewEntry(e, full, err))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.isJSON() {
		if err := p.json(views); err != nil {
			return err
		}
	} else {
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			summary := v.Summary
			if v.Error != "" {
				summary += " ERROR: " + v.Error
			}
			rows = append(rows, []string{fmt.Sprint(v.Pos), v.Class, fmt.Sprint(v.Instance), summary})
		}
		p.table([]string{"OFFSET", "CLASS", "INSTANCE", "SUMMARY"}, rows)
	}
	return firstErr
}

// dumpFrames decodes frames concurrently through a prefetch loader and
// prints them in file order.
func (a *app) dumpFrames(cmd *cobra.Command, path string, r *framefile.Reader, p *printer) error {
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}
	t, err := framefile.LoadTOC(r, path, a.cacheDir(), a.logger)
	if err != nil {
		return err
	}
	src := r.Source()
	loader := prefetch.New(src, src.Size(), prefetch.Config{
		Workers: a.workers(cmd),
		Stream:  cfg,
		TOC:     t,
		Logger:  a.logger,
	})
	defer func() { _ = loader.Close() }()

	var views []frameView
	err = loader.Each(cmd.Context(), func(i int, f *stream.Frame) error {
		views = append(views, viewFrame(i, f))
		return nil
	})

	if p.isJSON() {
		if jerr := p.json(views); jerr != nil {
			return jerr
		}
	} else {
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, v.row())
		}
		p.table(frameHeader, rows)
	}
	return err
}
