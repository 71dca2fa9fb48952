package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/packsmith/launcher/internal/model"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			printRoster()
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a legacy username/password account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				if err := survey.AskOne(&survey.Input{
					Message: "Username:",
				}, &user, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if pass == "" {
				if err := survey.AskOne(&survey.Password{
					Message: "Password:",
				}, &pass, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}

			return runOp(func() error {
				return app.Coordinator.BeginAddLegacy(user, pass)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (prompted if omitted)")

	return cmd
}

func newEditCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "edit [account]",
		Short: "Re-enter credentials for a legacy account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, model.FamilyLegacy)
			if err != nil {
				return err
			}

			if user == "" {
				if err := survey.AskOne(&survey.Input{
					Message: "Username:",
					Default: account.Username,
				}, &user, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if pass == "" {
				if err := survey.AskOne(&survey.Password{
					Message: "Password:",
				}, &pass, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}

			return runOp(func() error {
				return app.Coordinator.BeginEditLegacy(account.ID, user, pass)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (prompted if omitted)")

	return cmd
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Add a modern account by signing in through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(func() error {
				return app.Coordinator.BeginAddModern()
			})
		},
	}
}

func newReloginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relogin [account]",
		Short: "Sign a modern account in again through the browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, model.FamilyModern)
			if err != nil {
				return err
			}
			return runOp(func() error {
				return app.Coordinator.BeginRelogin(account.ID)
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [account]",
		Short: "Refresh a modern account's access token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, model.FamilyModern)
			if err != nil {
				return err
			}
			return runOp(func() error {
				return app.Coordinator.BeginRefreshModern(account.ID)
			})
		},
	}
}

func newRevalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revalidate [account]",
		Short: "Check whether a legacy account's session is still valid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, model.FamilyLegacy)
			if err != nil {
				return err
			}
			return runOp(func() error {
				return app.Coordinator.BeginRevalidateLegacy(account.ID)
			})
		},
	}
}

func newUpdateNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-name [account]",
		Short: "Fetch an account's current display name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, "")
			if err != nil {
				return err
			}
			return runOp(func() error {
				return app.Coordinator.BeginUpdateDisplayName(account.ID)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [account]",
		Short: "Remove an account from the roster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, "")
			if err != nil {
				return err
			}

			confirmed := cfg.Yes
			if !confirmed {
				if err := survey.AskOne(&survey.Confirm{
					Message: fmt.Sprintf("Delete account %q?", account.DisplayName),
					Default: false,
				}, &confirmed); err != nil {
					return err
				}
			}

			if err := app.Coordinator.Delete(account.ID, confirmed); err != nil {
				return err
			}
			reportChanges()
			return nil
		},
	}
}

func newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [account]",
		Short: "Set the selected account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(args, "")
			if err != nil {
				return err
			}
			if err := app.Coordinator.Select(account.ID); err != nil {
				return err
			}
			reportChanges()
			return nil
		},
	}
}

// runOp starts a coordinator task, cancels it on interrupt, waits for it to
// finish, and handles any re-login requests it raised.
func runOp(start func() error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			app.Coordinator.Cancel()
		}
	}()

	if err := start(); err != nil {
		return err
	}
	app.Coordinator.WaitIdle()

	// A failed refresh or validation may have flagged accounts; offer to
	// sign each one in again. A re-login can itself raise more requests.
	for {
		ids := ui.TakeRelogins()
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if err := offerRelogin(id); err != nil {
				return err
			}
		}
	}

	reportChanges()
	return nil
}

func offerRelogin(id model.AccountID) error {
	account, err := app.Store.Get(id)
	if err != nil {
		return nil
	}

	confirmed := cfg.Yes
	if !confirmed {
		if err := survey.AskOne(&survey.Confirm{
			Message: fmt.Sprintf("Account %q must sign in again. Sign in now?", account.DisplayName),
			Default: true,
		}, &confirmed); err != nil {
			return err
		}
	}
	if !confirmed {
		return nil
	}

	if !account.IsModern() {
		return fmt.Errorf("account %q uses a password; run 'launcher edit %s' to sign in again", account.DisplayName, account.ID)
	}
	if err := app.Coordinator.BeginRelogin(id); err != nil {
		return err
	}
	app.Coordinator.WaitIdle()
	return nil
}

// reportChanges re-prints the roster if any change notification arrived
func reportChanges() {
	if dirty.Swap(false) {
		printRoster()
	}
}

func printRoster() {
	accounts := app.Store.List()
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return
	}

	selected := app.Store.Selected()
	for _, account := range accounts {
		marker := " "
		if account.ID == selected {
			marker = "*"
		}
		flag := ""
		if account.MustRelogin {
			flag = " [sign-in required]"
		}
		fmt.Printf("%s %s  %s (%s)%s\n", marker, account.ID, account.DisplayName, account.Family, flag)
	}
}

// resolveAccount finds the account named by args, prompting with a picker
// when no argument was given. family restricts the candidates; pass "" to
// allow any account.
func resolveAccount(args []string, family model.Family) (model.Account, error) {
	candidates := make([]model.Account, 0)
	for _, account := range app.Store.List() {
		if family != "" && account.Family != family {
			continue
		}
		candidates = append(candidates, account)
	}
	if len(candidates) == 0 {
		return model.Account{}, fmt.Errorf("no matching accounts")
	}

	if len(args) == 1 {
		arg := args[0]
		for _, account := range candidates {
			if string(account.ID) == arg || account.Username == arg || account.DisplayName == arg {
				return account, nil
			}
		}
		return model.Account{}, fmt.Errorf("no account matching %q", arg)
	}

	options := make([]string, len(candidates))
	byLabel := make(map[string]model.Account, len(candidates))
	for i, account := range candidates {
		label := fmt.Sprintf("%s (%s)", account.DisplayName, account.Family)
		options[i] = label
		byLabel[label] = account
	}

	var picked string
	if err := survey.AskOne(&survey.Select{
		Message: "Select account:",
		Options: options,
	}, &picked); err != nil {
		return model.Account{}, err
	}
	return byLabel[picked], nil
}
