package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gwframe/internal/framefile"
	"gwframe/internal/toc"
)

func (a *app) newTOCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc FILE",
		Short: "Print the table of contents of a frame file",
		Long: "Print the table of contents. Files without one are scanned once " +
			"and the result is cached under the home directory.",
		Args: cobra.ExactArgs(1),
		RunE: a.runTOC,
	}
	cmd.Flags().Bool("no-cache", false, "do not read or write the sidecar cache")
	return cmd
}

type tocView struct {
	Generation string                 `json:"generation"`
	ULeapS     int16                  `json:"uleaps"`
	Frames     []toc.Frame            `json:"frames"`
	Structures []toc.SHEntry          `json:"structures"`
	Detectors  []toc.DetectorEntry    `json:"detectors"`
	Stats      map[string]toc.Stat    `json:"stats,omitempty"`
	Adc        []toc.Channel          `json:"adc,omitempty"`
	Proc       map[string][]uint64    `json:"proc,omitempty"`
	Events     map[string][]toc.Event `json:"events,omitempty"`
	Triggers   map[string][]toc.Event `json:"triggers,omitempty"`
	Channels   map[string][]uint64    `json:"channels,omitempty"`
}

func (a *app) runTOC(cmd *cobra.Command, args []string) error {
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}
	r, err := framefile.Open(args[0], cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	cache := a.cacheDir()
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cache = ""
	}
	t, err := framefile.LoadTOC(r, args[0], cache, a.logger)
	if err != nil {
		return err
	}

	p := a.printer(cmd)
	if p.isJSON() {
		v := tocView{
			Generation: t.Gen.String(),
			ULeapS:     t.ULeapS,
			Frames:     t.Frames,
			Structures: t.SH,
			Detectors:  t.Detectors,
			Stats:      t.Stats.Stat(),
			Proc:       map[string][]uint64{},
			Events:     map[string][]toc.Event{},
			Triggers:   map[string][]toc.Event{},
			Channels:   map[string][]uint64{},
		}
		for i := range t.Adc.Len() {
			c, _ := t.Adc.GetAt(i)
			v.Adc = append(v.Adc, c)
		}
		for _, name := range t.Proc.Names() {
			v.Proc[name], _ = t.Proc.Get(name)
		}
		for _, name := range t.Events.Names() {
			v.Events[name], _ = t.Events.Get(name)
		}
		for _, name := range t.Triggers.Names() {
			v.Triggers[name], _ = t.Triggers.Get(name)
		}
		for _, name := range t.Channels.Names() {
			v.Channels[name], _ = t.Channels.Get(name)
		}
		return p.json(v)
	}

	p.kv([][2]string{
		{"generation", t.Gen.String()},
		{"frames", fmt.Sprint(t.NFrames())},
		{"leap seconds", fmt.Sprint(t.ULeapS)},
		{"detectors", fmt.Sprint(len(t.Detectors))},
		{"static data", fmt.Sprint(t.Stats.Len())},
		{"adc channels", fmt.Sprint(t.Adc.Len())},
		{"processed channels", fmt.Sprint(t.Proc.Len())},
		{"event types", fmt.Sprint(t.Triggers.Len())},
		{"simulated event types", fmt.Sprint(t.Events.Len())},
		{"summary channels", fmt.Sprint(t.Channels.Len())},
	})
	p.line("")
	rows := make([][]string, 0, len(t.Frames))
	for i, f := range t.Frames {
		rows = append(rows, []string{
			fmt.Sprint(i), fmt.Sprint(f.Run), fmt.Sprint(f.Frame), f.GTime.String(),
			fmt.Sprint(f.Dt), fmt.Sprintf("%#x", f.DataQuality), fmt.Sprint(f.Position),
		})
	}
	p.table([]string{"INDEX", "RUN", "FRAME", "GPS", "DT", "DQ", "POSITION"}, rows)
	return nil
}
