package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gwframe/internal/config"
	"gwframe/internal/framefile"
	"gwframe/internal/migrate"
	"gwframe/internal/record"
	"gwframe/internal/stream"
)

func (a *app) newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Rewrite a frame file in another generation",
		Long: "Rewrite IN as OUT in the target generation, migrating every structure " +
			"one generation at a time. Structures that cannot be represented in the " +
			"target are dropped and reported. An OUT ending in .gwf.zst is compressed.",
		Args: cobra.ExactArgs(2),
		RunE: a.runConvert,
	}
	cmd.Flags().String("to", "", "target generation, e.g. 8 or v6 (default: settings, then newest)")
	cmd.Flags().Bool("history", true, "append an FrHistory entry recording the conversion")
	cmd.Flags().Bool("skip-corrupt", false, "drop frames that fail checksum verification")
	cmd.Flags().String("byte-order", "", "byte order of OUT: little or big")
	cmd.Flags().Bool("no-checksums", false, "write OUT without checksums")
	cmd.Flags().Bool("no-toc", false, "write OUT without a table of contents")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	settings := a.settings.Clone()
	if v, _ := cmd.Flags().GetString("byte-order"); v != "" {
		settings.ByteOrder = v
	}
	if cmd.Flags().Changed("no-checksums") {
		settings.NoChecksums, _ = cmd.Flags().GetBool("no-checksums")
	}
	var target record.Generation
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		g, err := config.ParseGeneration(v)
		if err != nil {
			return err
		}
		target = g
	}

	rcfg, err := a.readConfig()
	if err != nil {
		return err
	}
	wcfg, err := settings.WriteConfig(target, a.logger)
	if err != nil {
		return err
	}
	wcfg.SkipTOC, _ = cmd.Flags().GetBool("no-toc")

	r, err := framefile.Open(in, rcfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	compress := strings.HasSuffix(out, framefile.CompressedExt)
	plain := out
	if compress {
		plain = strings.TrimSuffix(out, framefile.CompressedExt) + framefile.Ext
	}
	w, err := stream.Create(plain, wcfg)
	if err != nil {
		return err
	}

	history, _ := cmd.Flags().GetBool("history")
	skip, _ := cmd.Flags().GetBool("skip-corrupt")
	program := "framectl"
	if id, err := a.home.InstallID(); err == nil {
		program = "framectl " + id.String()[:8]
	} else {
		a.logger.Debug("no install id", "error", err)
	}
	conv := migrate.New(w.Generation(), migrate.Options{
		History:     history,
		Program:     program,
		SkipCorrupt: skip,
		Logger:      a.logger,
	})

	rep, err := conv.Stream(r.Reader, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(plain)
		return err
	}

	if compress {
		if _, err := framefile.Compress(plain); err != nil {
			return err
		}
		if err := os.Remove(plain); err != nil {
			return err
		}
	}

	p := a.printer(cmd)
	if p.isJSON() {
		dropped := map[string]int{}
		for class, n := range rep.Dropped {
			dropped[class.String()] = n
		}
		return p.json(map[string]any{
			"id": rep.ID.String(), "from": rep.From.String(), "to": rep.To.String(),
			"frames": rep.Frames, "skipped": rep.Skipped, "dropped": dropped, "output": out,
		})
	}
	pairs := [][2]string{
		{"output", out},
		{"generation", fmt.Sprintf("%v -> %v", rep.From, rep.To)},
		{"frames", fmt.Sprint(rep.Frames)},
		{"skipped", fmt.Sprint(rep.Skipped)},
		{"conversion id", rep.ID.String()},
	}
	for _, k := range record.Kinds() {
		if n := rep.Dropped[k.Class]; n > 0 {
			pairs = append(pairs, [2]string{"dropped " + k.Name, fmt.Sprint(n)})
		}
	}
	p.kv(pairs)
	if rep.Skipped > 0 {
		return errors.New("some frames were skipped")
	}
	return nil
}
