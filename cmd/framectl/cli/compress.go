package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gwframe/internal/framefile"
)

func (a *app) newCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress FILE...",
		Short: "Compress frame files into seekable .gwf.zst files",
		Long: "Compress frame files with seekable zstd. Compressed files keep " +
			"random access and can be given to every other command.",
		Args: cobra.MinimumNArgs(1),
		RunE: a.runCompress,
	}
	cmd.Flags().BoolP("decompress", "d", false, "restore .gwf files from .gwf.zst files")
	cmd.Flags().Bool("keep", false, "keep the input files")
	return cmd
}

func (a *app) runCompress(cmd *cobra.Command, args []string) error {
	decompress, _ := cmd.Flags().GetBool("decompress")
	keep, _ := cmd.Flags().GetBool("keep")
	logger := a.logger.With("component", "compress")
	p := a.printer(cmd)

	var errs []error
	var rows [][]string
	for _, path := range args {
		var out string
		var err error
		if decompress {
			out, err = framefile.Decompress(path)
		} else {
			out, err = framefile.Compress(path)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		before, after := fileSize(path), fileSize(out)
		logger.Debug("done", "in", path, "out", out, "in_bytes", before, "out_bytes", after)
		if !keep {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
		}
		rows = append(rows, []string{path, out, formatBytes(before), formatBytes(after)})
	}
	p.table([]string{"INPUT", "OUTPUT", "IN", "OUT"}, rows)
	return errors.Join(errs...)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// formatBytes formats a byte count in human-readable form.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
