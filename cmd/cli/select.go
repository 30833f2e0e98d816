package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/chrisapx/fif-client-sub000/internal/app"
	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Pick an account and print a link to it",
	Long: `Pick one of your accounts or beneficiaries and print a fif:// link that
carries it in encrypted form. Pass the link to "fif show" to open it.`,
	RunE: func(cmd *cobra.Command, args []string) error {

		_, clientID, err := requireClient(cmd)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)

		accounts, err := application.API.GetClientAccounts(ctx, clientID)
		if err != nil {
			return handleAPIError(err)
		}

		selections := app.SelectionsFromAccounts(accounts)

		withBeneficiaries, _ := cmd.Flags().GetBool("beneficiaries")
		if withBeneficiaries {
			beneficiaries, err := application.API.ListBeneficiaries(ctx)
			if err != nil {
				return handleAPIError(err)
			}
			for _, b := range beneficiaries {
				selections = append(selections, app.SelectionFromBeneficiary(b))
			}
		}

		if len(selections) == 0 {
			return errors.New("nothing to select")
		}

		accountID, _ := cmd.Flags().GetInt64("id")

		index := -1
		for i, sel := range selections {
			if accountID > 0 && sel.ID == accountID {
				index = i
				break
			}
		}

		if index < 0 {
			options := make([]huh.Option[int], 0, len(selections))
			for i, sel := range selections {
				options = append(options, huh.NewOption(selectionLabel(sel), i))
			}

			index = 0
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[int]().
						Title("Select").
						Options(options...).
						Value(&index),
				),
			).Run()
			if err != nil {
				return fmt.Errorf("selection cancelled: %w", err)
			}
		}

		link, err := application.SelectionLink(selections[index])
		if err != nil {
			return err
		}

		fmt.Println(link)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <link|token>",
	Short: "Open a link produced by fif select",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		sel := application.ResolveSelection(args[0])
		if sel == nil {
			fmt.Println(warningStyle.Render("Nothing selected"))
			fmt.Println(mutedStyle.Render("The link is invalid, was created with another secret, or has been altered."))
			return nil
		}

		fmt.Println(headerStyle.Render(selectionLabel(*sel)))
		printField("Type", string(sel.Kind))
		printField("Id", fmt.Sprintf("%d", sel.ID))
		printField("Account", sel.AccountNo)
		if len(sel.Status) > 0 {
			printField("Status", sel.Status)
		}
		label := "Balance"
		if sel.Kind == app.SelectionBeneficiary {
			label = "Transfer limit"
		}
		printField(label, formatMoney(sel.Balance, sel.Currency))

		switch sel.Kind {
		case app.SelectionSavings:
			fmt.Println(mutedStyle.Render(fmt.Sprintf("\nfif savings %d", sel.ID)))
		case app.SelectionLoan:
			fmt.Println(mutedStyle.Render(fmt.Sprintf("\nfif loans %d", sel.ID)))
		}

		return nil
	},
}

func selectionLabel(sel app.Selection) string {
	return fmt.Sprintf("%s %s %s", sel.Kind, common.MaskAccountNumber(sel.AccountNo), sel.Name)
}

func init() {
	selectCmd.Flags().Int64("id", 0, "Select the account with this id without prompting")
	selectCmd.Flags().Bool("beneficiaries", false, "Include beneficiaries")

	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(showCmd)
}
