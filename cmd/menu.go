package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/instruction"
	"ore-boost-cli/stake"
	"ore-boost-cli/storage"
)

const (
	menuStake      = "Stake"
	menuUnstake    = "Unstake"
	menuUnstakeAll = "Unstake All"
	menuMigrate    = "Migrate Legacy Stake"
	menuClaim      = "Claim Rewards"
	menuBalances   = "Balances"
	menuHistory    = "History"
	menuAddresses  = "Derived Addresses"
	menuSwitch     = "Switch Profile"

	menuCreateProfile = "Create New Profile"
	menuExit          = "Exit"
)

// runMenu loops over profile selection and the action menu until the user
// exits.
func runMenu(ctx context.Context) error {
	db, err := storage.NewWalletStorage()
	if err != nil {
		return fmt.Errorf("failed to open wallet storage: %w", err)
	}

	for {
		name, err := selectProfile(db)
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) || errors.Is(err, errExit) {
				fmt.Println("Exiting.")
				return nil
			}
			return err
		}

		s := flags
		s.profile, s.keypairPath = name, ""
		a, err := newApp(s, true)
		if err != nil {
			return err
		}
		runActions(ctx, a, name)
	}
}

var errExit = errors.New("user exited")

func selectProfile(db *storage.JSONDB) (string, error) {
	for {
		profiles, err := db.GetAllWalletNames()
		if err != nil {
			return "", err
		}
		if len(profiles) == 0 {
			fmt.Println(titleStyle.Render("🚀 Welcome! Let's create your first wallet profile."))
		}

		selection := ""
		prompt := &survey.Select{
			Message: promptStyle.Render("Choose a profile to continue:"),
			Options: append(profiles, menuCreateProfile, menuExit),
		}
		if err := survey.AskOne(prompt, &selection); err != nil {
			return "", err
		}

		switch selection {
		case menuExit:
			return "", errExit
		case menuCreateProfile:
			name := ""
			if err := survey.AskOne(&survey.Input{Message: "Profile name:"}, &name, survey.WithValidator(survey.Required)); err != nil {
				return "", err
			}
			if _, err := createProfile(db, name); err != nil {
				fmt.Println(warningStyle.Render("❌ " + err.Error()))
			}
		default:
			return selection, nil
		}
	}
}

func runActions(ctx context.Context, a *app, profile string) {
	fmt.Printf("\n---\n")
	fmt.Println(titleStyle.Render(fmt.Sprintf("Operating with profile: %s", profile)))
	fmt.Println(promptStyle.Render(fmt.Sprintf("Address: %s  Program version: %s", a.staker(), a.version)))
	fmt.Printf("---\n\n")

	for {
		choice := ""
		menu := &survey.Select{
			Message: promptStyle.Render("Choose an action:"),
			Options: []string{menuStake, menuUnstake, menuUnstakeAll, menuMigrate, menuClaim, menuBalances, menuHistory, menuAddresses, menuSwitch},
			Help:    "Use the arrow keys to navigate, and press Enter to select.",
		}
		if err := survey.AskOne(menu, &choice); err != nil || choice == menuSwitch {
			return
		}
		if err := runAction(ctx, a, choice); err != nil && !errors.Is(err, errCancelled) {
			fmt.Println(warningStyle.Render("❌ " + explainError(err)))
		}
		fmt.Println()
	}
}

func askMint(a *app) (solana.PublicKey, error) {
	options := make([]string, 0, len(a.cfg.Mints))
	for _, m := range a.cfg.Mints {
		options = append(options, m.Name)
	}
	name := ""
	if err := survey.AskOne(&survey.Select{Message: "Choose a token:", Options: options}, &name); err != nil {
		return solana.PublicKey{}, err
	}
	return a.resolveMint(name)
}

func askAmount(message string) (string, error) {
	amount := ""
	err := survey.AskOne(&survey.Input{Message: message}, &amount, survey.WithValidator(survey.Required))
	return amount, err
}

func runAction(ctx context.Context, a *app, choice string) error {
	switch choice {
	case menuClaim:
		return runClaim(ctx, a, a.staker())
	case menuBalances:
		return printBalances(ctx, a, a.staker())
	case menuHistory:
		events, err := a.client.GetStakeHistory(ctx, a.staker(), a.historyPrograms(), a.encoder, 20)
		if err != nil {
			return err
		}
		printHistory(ctx, a, a.staker(), events)
		return nil
	}

	mint, err := askMint(a)
	if err != nil {
		return err
	}
	if choice == menuAddresses {
		return printAddresses(a, a.staker(), mint)
	}

	op := stake.Operation{Version: a.version, Staker: a.staker(), Mint: mint}
	var res *stake.Result
	switch choice {
	case menuStake:
		op.Kind = instruction.Stake
		if op.Amount, err = askAmount("Amount to stake:"); err != nil {
			return err
		}
		return performStake(ctx, a, op)
	case menuUnstake:
		op.Kind = instruction.Unstake
		if op.Amount, err = askAmount("Amount to unstake:"); err != nil {
			return err
		}
		res, err = a.service.Perform(ctx, op)
	case menuUnstakeAll:
		op.Kind = instruction.Unstake
		res, err = a.service.UnstakeAll(ctx, op)
	case menuMigrate:
		op.Kind = instruction.Migrate
		op.Version = instruction.V2
		res, err = a.service.Migrate(ctx, op)
	default:
		return fmt.Errorf("unknown action %q", choice)
	}
	printPending(res, err)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}
