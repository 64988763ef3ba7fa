package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"localllm/internal/envprofile"
)

func newEnvCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "env [venv-root]",
		Short: "Apply a virtualenv activation profile and print the variables it sets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			root := cfg.Venv
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				return errors.New("a virtualenv root is required (argument or --venv)")
			}
			log := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
			a := envprofile.NewActivator(log)
			p, err := a.Load(root)
			if err != nil {
				if errors.Is(err, envprofile.ErrNotFound) {
					log.Error().Str("venv", root).Msgf("virtualenv not found: %s", root)
				}
				return err
			}
			if err := p.ApplyProcess(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range p.Vars {
				if v.Unset {
					fmt.Fprintf(out, "unset %s\n", v.Name)
					continue
				}
				fmt.Fprintf(out, "%s=%s\n", v.Name, v.Value)
			}
			return nil
		},
	}
}
