package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gwframe/internal/config"
	"gwframe/internal/framefile"
	"gwframe/internal/record"
)

func (a *app) newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [FILE]",
		Short: "Print structure dictionaries",
		Long: "Print the FrSH/FrSE dictionary stored in FILE, or the built-in " +
			"dictionary of a generation when no file is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: a.runDescribe,
	}
	cmd.Flags().String("gen", "", "generation of the built-in dictionary (default: newest)")
	cmd.Flags().StringSlice("class", nil, "only these structures, by name (FrVect) or class id")
	return cmd
}

type descriptionView struct {
	Name     string           `json:"name"`
	Class    uint16           `json:"class"`
	Comment  string           `json:"comment"`
	Elements []record.Element `json:"elements"`
}

func (a *app) runDescribe(cmd *cobra.Command, args []string) error {
	classes, _ := cmd.Flags().GetStringSlice("class")
	kinds, err := selectKinds(classes)
	if err != nil {
		return err
	}

	var views []descriptionView
	if len(args) == 1 {
		cfg, err := a.readConfig()
		if err != nil {
			return err
		}
		r, err := framefile.Open(args[0], cfg)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		for _, k := range kinds {
			d, ok, err := r.Dictionary(k.Class)
			if err != nil {
				return err
			}
			if ok {
				views = append(views, viewDescription(d))
			}
		}
	} else {
		g := record.Newest
		if s, _ := cmd.Flags().GetString("gen"); s != "" {
			if g, err = config.ParseGeneration(s); err != nil {
				return err
			}
		}
		for _, k := range kinds {
			if k.Codec(g) == nil {
				continue
			}
			d, err := record.Describe(k.Class, g)
			if err != nil {
				continue
			}
			views = append(views, viewDescription(d))
		}
	}

	p := a.printer(cmd)
	if p.isJSON() {
		return p.json(views)
	}
	for i, v := range views {
		if i > 0 {
			p.line("")
		}
		p.line("%s (class %d): %s", v.Name, v.Class, v.Comment)
		rows := make([][]string, 0, len(v.Elements))
		for _, e := range v.Elements {
			rows = append(rows, []string{e.Name, e.Type, e.Comment})
		}
		p.table([]string{"FIELD", "TYPE", "COMMENT"}, rows)
	}
	return nil
}

func viewDescription(d *record.Description) descriptionView {
	return descriptionView{Name: d.Name(), Class: uint16(d.Class()), Comment: d.Comment(), Elements: d.Elements()}
}

// selectKinds resolves structure names or class ids. No names selects
// every registered structure.
func selectKinds(names []string) ([]*record.Kind, error) {
	all := record.Kinds()
	if len(names) == 0 {
		return all, nil
	}
	var out []*record.Kind
	for _, name := range names {
		var found *record.Kind
		id, numErr := strconv.ParseUint(name, 10, 16)
		for _, k := range all {
			if strings.EqualFold(k.Name, name) || (numErr == nil && uint64(k.Class) == id) {
				found = k
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("unknown structure %q", name)
		}
		out = append(out, found)
	}
	return out, nil
}
