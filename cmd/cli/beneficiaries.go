package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/spf13/cobra"
)

var beneficiariesCmd = &cobra.Command{
	Use:     "beneficiaries",
	Aliases: []string{"beneficiary"},
	Short:   "Manage third party transfer beneficiaries",
	RunE:    runListBeneficiaries,
}

var beneficiariesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List beneficiaries",
	RunE:  runListBeneficiaries,
}

var beneficiariesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a beneficiary",
	RunE: func(cmd *cobra.Command, args []string) error {

		if _, _, err := requireClient(cmd); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		office, _ := cmd.Flags().GetString("office")
		accountNo, _ := cmd.Flags().GetString("account")
		accountKind, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetFloat64("limit")

		limitText := ""
		if limit > 0 {
			limitText = strconv.FormatFloat(limit, 'f', -1, 64)
		}

		if len(name) == 0 || len(office) == 0 || len(accountNo) == 0 {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Name").Value(&name).Validate(notEmpty("name")),
					huh.NewInput().Title("Office").Value(&office).Validate(notEmpty("office")),
					huh.NewInput().Title("Account number").Value(&accountNo).Validate(notEmpty("account number")),
					huh.NewSelect[string]().
						Title("Account type").
						Options(
							huh.NewOption("Savings", "savings"),
							huh.NewOption("Loan", "loan"),
						).
						Value(&accountKind),
					huh.NewInput().Title("Transfer limit").Placeholder("Optional").Value(&limitText),
				),
			)
			if err := form.Run(); err != nil {
				return fmt.Errorf("beneficiary prompt cancelled: %w", err)
			}
		}

		request := fineract.BeneficiaryRequest{
			Name:          strings.TrimSpace(name),
			OfficeName:    strings.TrimSpace(office),
			AccountNumber: strings.TrimSpace(accountNo),
			AccountType:   fineract.AccountTypeSavings,
		}
		if strings.EqualFold(accountKind, "loan") {
			request.AccountType = fineract.AccountTypeLoan
		}
		if len(strings.TrimSpace(limitText)) > 0 {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(limitText), 64)
			if err != nil {
				return fmt.Errorf("invalid transfer limit %q", limitText)
			}
			request.TransferLimit = parsed
		}

		result, err := application.API.AddBeneficiary(commandContext(cmd), request)
		if err != nil {
			return handleAPIError(err)
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("Beneficiary %s added (id %d)", request.Name, result.ResourceID)))
		return nil
	},
}

var beneficiariesRemoveCmd = &cobra.Command{
	Use:     "remove <beneficiary-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a beneficiary",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		beneficiaryID, err := parseID(args[0], "beneficiary id")
		if err != nil {
			return err
		}

		if _, _, err := requireClient(cmd); err != nil {
			return err
		}

		if err := application.API.DeleteBeneficiary(commandContext(cmd), beneficiaryID); err != nil {
			return handleAPIError(err)
		}

		fmt.Println(successStyle.Render("Beneficiary removed"))
		return nil
	},
}

func runListBeneficiaries(cmd *cobra.Command, args []string) error {

	if _, _, err := requireClient(cmd); err != nil {
		return err
	}

	beneficiaries, err := application.API.ListBeneficiaries(commandContext(cmd))
	if err != nil {
		return handleAPIError(err)
	}

	if len(beneficiaries) == 0 {
		fmt.Println(infoStyle.Render("No beneficiaries registered"))
		return nil
	}

	fmt.Println(headerStyle.Render("Beneficiaries"))
	for _, b := range beneficiaries {
		fmt.Printf("  %-6d %-24s %-10s %-14s %s\n", b.ID, b.Name, b.AccountType.Value, b.AccountNumber, mutedStyle.Render(b.OfficeName))
	}

	return nil
}

func init() {
	beneficiariesAddCmd.Flags().String("name", "", "Beneficiary name")
	beneficiariesAddCmd.Flags().String("office", "", "Office the beneficiary banks with")
	beneficiariesAddCmd.Flags().String("account", "", "Account number")
	beneficiariesAddCmd.Flags().String("type", "savings", "Account type (savings or loan)")
	beneficiariesAddCmd.Flags().Float64("limit", 0, "Transfer limit")

	beneficiariesCmd.AddCommand(beneficiariesListCmd)
	beneficiariesCmd.AddCommand(beneficiariesAddCmd)
	beneficiariesCmd.AddCommand(beneficiariesRemoveCmd)

	rootCmd.AddCommand(beneficiariesCmd)
}
