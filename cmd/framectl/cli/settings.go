package cli

import (
	"github.com/spf13/cobra"

	"gwframe/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the saved defaults",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer(cmd)
			if p.isJSON() {
				return p.json(a.settings)
			}
			pairs := [][2]string{{"file", a.store.Path()}}
			for _, key := range config.Keys {
				v, err := a.settings.Get(key)
				if err != nil {
					return err
				}
				pairs = append(pairs, [2]string{key, v})
			}
			p.kv(pairs)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a setting; an empty VALUE resets it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings.Clone()
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := a.store.Save(s); err != nil {
				return err
			}
			a.settings = s
			a.logger.Info("setting saved", "key", args[0], "file", a.store.Path())
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer(cmd)
			id, err := a.home.InstallID()
			if err != nil {
				return err
			}
			if p.isJSON() {
				return p.json(map[string]string{"version": a.version, "install_id": id.String()})
			}
			p.kv([][2]string{{"version", a.version}, {"install id", id.String()}})
			return nil
		},
	}
}
