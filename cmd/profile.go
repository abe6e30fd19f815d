package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/storage"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named wallet profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List profiles and their addresses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := storage.NewWalletStorage()
				if err != nil {
					return err
				}
				return listProfiles(db)
			},
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Generate a new keypair and store it as NAME",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := storage.NewWalletStorage()
				if err != nil {
					return err
				}
				_, err = createProfile(db, args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "import NAME KEYPAIR_FILE",
			Short: "Store a solana-keygen keypair file as NAME",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				w, err := ore_protocol.LoadWalletFromFile(args[1])
				if err != nil {
					return err
				}
				db, err := storage.NewWalletStorage()
				if err != nil {
					return err
				}
				if err := db.SaveWallet(args[0], w.PrivateKey); err != nil {
					return err
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("✅ Imported %s as %q", w.PublicKey(), args[0])))
				return nil
			},
		},
		&cobra.Command{
			Use:   "export NAME KEYPAIR_FILE",
			Short: "Write profile NAME as a solana-keygen keypair file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := storage.NewWalletStorage()
				if err != nil {
					return err
				}
				key, err := db.GetWallet(args[0])
				if err != nil {
					return err
				}
				if err := ore_protocol.SaveWalletToFile(&ore_protocol.Wallet{PrivateKey: key}, args[1]); err != nil {
					return err
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("✅ Wrote %s to %s", key.PublicKey(), args[1])))
				return nil
			},
		},
		&cobra.Command{
			Use:   "default NAME",
			Short: "Use NAME when no --profile is given",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := storage.NewWalletStorage()
				if err != nil {
					return err
				}
				return db.SetDefaultWallet(args[0])
			},
		},
	)
	return cmd
}

func listProfiles(db *storage.JSONDB) error {
	names, err := db.GetAllWalletNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println(promptStyle.Render("No profiles yet. Create one with `profile create NAME`."))
		return nil
	}
	wallets, err := db.GetAllWallets()
	if err != nil {
		return err
	}
	def, err := db.DefaultWallet()
	if err != nil {
		return err
	}
	for _, name := range names {
		marker := " "
		if name == def {
			marker = "*"
		}
		fmt.Printf(" %s %-16s %s\n", marker, name, wallets[name])
	}
	return nil
}

func createProfile(db *storage.JSONDB, name string) (solana.PrivateKey, error) {
	w := solana.NewWallet()
	if err := db.SaveWallet(name, w.PrivateKey); err != nil {
		return nil, err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("✅ Profile %q created", name)))
	fmt.Println(promptStyle.Render("   Address:"), w.PublicKey().String())
	return w.PrivateKey, nil
}
