package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/gate"
)

func newHashCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash <pin>",
		Short: "Hash a PIN for the credential_hash setting",
		Example: `  kcctl hash 1234#
  kcctl hash 1234# --write -c /etc/keyclimate/config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := gate.HashPIN(args[0])
			if err != nil {
				return err
			}
			if !write {
				fmt.Fprintln(stdout, hash)
				return nil
			}
			cfg.Gate.CredentialHash = hash
			cfg.Gate.Credential = ""
			if err := cfg.Save(globalConfig); err != nil {
				return err
			}
			success(fmt.Sprintf("credential hash written to %s", globalConfig))
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the hash in the configuration file")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(globalConfig); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", globalConfig)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Default().Save(globalConfig); err != nil {
				return err
			}
			success(fmt.Sprintf("wrote %s", globalConfig))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = stdout.Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
