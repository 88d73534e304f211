package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/synthgen/internal/apikey"
	"github.com/kiranshivaraju/synthgen/internal/store"
)

func registerKeysCmd(parent *cobra.Command, env *Env) {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}

	registerKeysCreateCmd(cmd, env)

	parent.AddCommand(cmd)
}

func registerKeysCreateCmd(parent *cobra.Command, env *Env) {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		Long: `Create an API key for the HTTP API. The raw key is printed once;
only its bcrypt hash is stored.`,
		Example: `  datagen keys create --name ci`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			raw, key, err := apikey.Generate(name, env.Now())
			if err != nil {
				return err
			}

			keys, closeStore, err := env.OpenKeyStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := keys.CreateAPIKey(ctx, key); err != nil {
				if errors.Is(err, store.ErrDuplicateKey) {
					return fmt.Errorf("an active key named %q already exists", name)
				}
				return fmt.Errorf("store api key: %w", err)
			}

			fmt.Fprintln(env.Stdout, raw)
			fmt.Fprintf(env.Stderr, "created key %q (id %s, prefix %s); store it now, it is not shown again\n",
				key.Name, key.ID, key.KeyPrefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name")
	_ = cmd.MarkFlagRequired("name")

	parent.AddCommand(cmd)
}
