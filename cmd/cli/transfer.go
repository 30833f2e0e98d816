package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move money between accounts",
	Long: `Transfer money from one of your accounts to another account you are
allowed to pay into. Missing details are prompted for.`,
	RunE: runTransfer,
}

func runTransfer(cmd *cobra.Command, args []string) error {

	if _, _, err := requireClient(cmd); err != nil {
		return err
	}

	ctx := commandContext(cmd)

	template, err := application.API.GetTransferTemplate(ctx)
	if err != nil {
		return handleAPIError(err)
	}

	if len(template.FromAccountOptions) == 0 {
		return errors.New("no accounts available to transfer from")
	}

	fromID, _ := cmd.Flags().GetInt64("from")
	toID, _ := cmd.Flags().GetInt64("to")
	amount, _ := cmd.Flags().GetFloat64("amount")
	description, _ := cmd.Flags().GetString("description")
	confirmed, _ := cmd.Flags().GetBool("yes")

	from := findTransferAccount(template.FromAccountOptions, fromID)
	to := findTransferAccount(template.ToAccountOptions, toID)

	var fields []huh.Field

	fromIndex := 0
	if from == nil {
		fields = append(fields, huh.NewSelect[int]().
			Title("From account").
			Options(transferOptions(template.FromAccountOptions)...).
			Value(&fromIndex))
	}

	toIndex := 0
	if to == nil {
		if len(template.ToAccountOptions) == 0 {
			return errors.New("no accounts available to transfer to")
		}
		fields = append(fields, huh.NewSelect[int]().
			Title("To account").
			Options(transferOptions(template.ToAccountOptions)...).
			Value(&toIndex))
	}

	amountText := ""
	if amount <= 0 {
		fields = append(fields, huh.NewInput().
			Title("Amount").
			Value(&amountText).
			Validate(validateAmount))
	}

	if len(description) == 0 {
		fields = append(fields, huh.NewInput().
			Title("Description").
			Placeholder("Optional").
			Value(&description))
	}

	if len(fields) > 0 {
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return fmt.Errorf("transfer prompt cancelled: %w", err)
		}
	}

	if from == nil {
		from = &template.FromAccountOptions[fromIndex]
	}
	if to == nil {
		to = &template.ToAccountOptions[toIndex]
	}
	if amount <= 0 {
		amount, _ = strconv.ParseFloat(strings.TrimSpace(amountText), 64)
	}

	if from.AccountID == to.AccountID && from.AccountType.ID == to.AccountType.ID {
		return errors.New("cannot transfer to the same account")
	}

	if !confirmed {
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Transfer %.2f?", amount)).
					Description(fmt.Sprintf("From %s to %s", transferLabel(*from), transferLabel(*to))).
					Value(&confirmed),
			),
		).Run()
		if err != nil {
			return fmt.Errorf("transfer prompt cancelled: %w", err)
		}
		if !confirmed {
			fmt.Println(warningStyle.Render("Transfer cancelled"))
			return nil
		}
	}

	result, err := application.API.MakeTransfer(ctx, newTransferRequest(*from, *to, amount, description))
	if err != nil {
		return handleAPIError(err)
	}

	fmt.Println(successStyle.Render("Transfer submitted"))
	printField("Reference", fmt.Sprintf("%d", result.ResourceID))
	return nil
}

func newTransferRequest(from fineract.TransferAccountOption, to fineract.TransferAccountOption, amount float64, description string) fineract.TransferRequest {
	return fineract.TransferRequest{
		FromOfficeID:        from.OfficeID,
		FromClientID:        from.ClientID,
		FromAccountType:     from.AccountType.ID,
		FromAccountID:       from.AccountID,
		ToOfficeID:          to.OfficeID,
		ToClientID:          to.ClientID,
		ToAccountType:       to.AccountType.ID,
		ToAccountID:         to.AccountID,
		TransferAmount:      amount,
		TransferDescription: strings.TrimSpace(description),
	}
}

func findTransferAccount(options []fineract.TransferAccountOption, accountID int64) *fineract.TransferAccountOption {
	if accountID <= 0 {
		return nil
	}
	for i := range options {
		if options[i].AccountID == accountID {
			return &options[i]
		}
	}
	return nil
}

func transferOptions(accounts []fineract.TransferAccountOption) []huh.Option[int] {
	options := make([]huh.Option[int], 0, len(accounts))
	for i, account := range accounts {
		options = append(options, huh.NewOption(transferLabel(account), i))
	}
	return options
}

func transferLabel(account fineract.TransferAccountOption) string {
	return fmt.Sprintf("%s %s (%s)", account.AccountType.Value, common.MaskAccountNumber(account.AccountNo), account.ClientName)
}

func validateAmount(value string) error {
	amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return errors.New("enter a number")
	}
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

func init() {
	transferCmd.Flags().Int64("from", 0, "Source account id")
	transferCmd.Flags().Int64("to", 0, "Destination account id")
	transferCmd.Flags().Float64("amount", 0, "Amount to transfer")
	transferCmd.Flags().String("description", "", "Transfer description")
	transferCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(transferCmd)
}
