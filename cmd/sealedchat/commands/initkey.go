package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/sealedchat/directory"
	"github.com/opd-ai/sealedchat/keymanager"
	"github.com/opd-ai/sealedchat/storage"
)

func initKeyCmd() *cobra.Command {
	var (
		address  string
		authName string
		pin      string
	)

	cmd := &cobra.Command{
		Use:   "init-key",
		Short: "Derive the encryption keypair and publish its public half",
		RunE: func(cmd *cobra.Command, args []string) error {
			authType, err := parseAuthType(authName)
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.StoragePath)
			if err != nil {
				return err
			}
			defer store.Close()

			dir := directory.NewFileDirectory(cfg.DirectoryPath)
			manager := keymanager.NewManager(store, dir)

			result, err := manager.DeriveKey(cmd.Context(), authType, address, keymanager.SecretSource{PIN: pin})
			if err != nil {
				return err
			}

			if err := manager.PublishPublicKey(cmd.Context(), address, result.KeyPair.Public[:]); err != nil {
				return err
			}
			if err := dir.SetKeySource(address, result.KeyPair.Source); err != nil {
				return err
			}

			fmt.Printf("derived %s key for %s\n", result.KeyPair.Source, address)
			fmt.Printf("public key: %s\n", hex.EncodeToString(result.KeyPair.Public[:]))
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "account address")
	cmd.Flags().StringVar(&authName, "auth", "email", "auth type (email, digitalid, solana)")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN (at least 6 digits)")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("pin")
	return cmd
}
