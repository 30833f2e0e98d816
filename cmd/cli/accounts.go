package cli

import (
	"fmt"
	"strings"

	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List your savings, loan and share accounts",
	RunE: func(cmd *cobra.Command, args []string) error {

		_, clientID, err := requireClient(cmd)
		if err != nil {
			return err
		}

		accounts, err := application.API.GetClientAccounts(commandContext(cmd), clientID)
		if err != nil {
			return handleAPIError(err)
		}

		printAccountGroup("Savings", accounts.SavingsAccounts, false)
		printAccountGroup("Loans", accounts.LoanAccounts, true)
		printAccountGroup("Shares", accounts.ShareAccounts, false)

		return nil
	},
}

var savingsCmd = &cobra.Command{
	Use:   "savings <account-id>",
	Short: "Show a savings account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		accountID, err := parseID(args[0], "account id")
		if err != nil {
			return err
		}

		if _, _, err := requireClient(cmd); err != nil {
			return err
		}

		account, err := application.API.GetSavingsAccount(commandContext(cmd), accountID)
		if err != nil {
			return handleAPIError(err)
		}

		currency := account.Currency.Code

		fmt.Println(headerStyle.Render(fmt.Sprintf("%s %s", account.SavingsProduct, account.AccountNo)))
		printField("Status", statusText(account.Status))
		printField("Balance", formatMoney(account.Summary.AccountBalance, currency))
		printField("Available", formatMoney(account.Summary.AvailableBalance, currency))
		printField("Deposits", formatMoney(account.Summary.TotalDeposits, currency))
		printField("Withdrawals", formatMoney(account.Summary.TotalWithdrawals, currency))
		printField("Interest posted", formatMoney(account.Summary.TotalInterest, currency))
		printField("Interest rate", fmt.Sprintf("%.2f%%", account.NominalInterest))

		limit, _ := cmd.Flags().GetInt("limit")
		if len(account.Transactions) > 0 {
			fmt.Println()
			printTransactions(account.Transactions, limit)
		}

		return nil
	},
}

var loansCmd = &cobra.Command{
	Use:   "loans <loan-id>",
	Short: "Show a loan and its repayment schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		loanID, err := parseID(args[0], "loan id")
		if err != nil {
			return err
		}

		if _, _, err := requireClient(cmd); err != nil {
			return err
		}

		loan, err := application.API.GetLoanAccount(commandContext(cmd), loanID)
		if err != nil {
			return handleAPIError(err)
		}

		currency := loan.Currency.Code

		fmt.Println(headerStyle.Render(fmt.Sprintf("%s %s", loan.LoanProductName, loan.AccountNo)))
		printField("Status", statusText(loan.Status))
		printField("Principal", formatMoney(loan.Principal, currency))
		printField("Interest rate", fmt.Sprintf("%.2f%% per period", loan.InterestRate))
		printField("Repayments", fmt.Sprintf("%d", loan.NumberOfRepayments))
		if !loan.Timeline.ActualDisbursement.IsZero() {
			printField("Disbursed", loan.Timeline.ActualDisbursement.String())
		}

		if loan.Summary != nil {
			printField("Outstanding", formatMoney(loan.Summary.TotalOutstanding, currency))
			if loan.Summary.TotalOverdue > 0 {
				printField("Overdue", warningStyle.Render(formatMoney(loan.Summary.TotalOverdue, currency)))
			}
		}

		if loan.Schedule != nil && len(loan.Schedule.Periods) > 0 {
			fmt.Println()
			fmt.Println(headerStyle.Render("Repayment schedule"))
			for _, period := range loan.Schedule.Periods {
				// Period zero is the disbursement row.
				if period.Period == 0 {
					continue
				}
				line := fmt.Sprintf("%3d  %s  %s", period.Period, period.DueDate.String(), amountStyle.Render(formatMoney(period.TotalDueForPeriod, currency)))
				if period.Complete {
					line = mutedStyle.Render(line + "  paid")
				}
				fmt.Println(line)
			}
		}

		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions <savings-account-id>",
	Short: "List the transactions of a savings account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		accountID, err := parseID(args[0], "account id")
		if err != nil {
			return err
		}

		if _, _, err := requireClient(cmd); err != nil {
			return err
		}

		transactions, err := application.API.GetSavingsTransactions(commandContext(cmd), accountID)
		if err != nil {
			return handleAPIError(err)
		}

		if len(transactions) == 0 {
			fmt.Println(infoStyle.Render("No transactions found"))
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		printTransactions(transactions, limit)
		return nil
	},
}

func printAccountGroup(title string, accounts []fineract.AccountSummary, loans bool) {

	if len(accounts) == 0 {
		return
	}

	fmt.Println(headerStyle.Render(title))
	for _, account := range accounts {
		balance := account.Balance
		if loans {
			balance = account.LoanBalance
		}
		fmt.Printf("  %-6d %-12s %-28s %s  %s\n",
			account.ID,
			common.MaskAccountNumber(account.AccountNo),
			account.ProductName,
			amountStyle.Render(formatMoney(balance, account.Currency.Code)),
			statusText(account.Status),
		)
	}
	fmt.Println()
}

func printTransactions(transactions []fineract.Transaction, limit int) {

	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}

	fmt.Println(headerStyle.Render("Transactions"))
	for _, tx := range transactions {
		line := fmt.Sprintf("  %s  %-22s %s %s",
			tx.Date.String(),
			tx.Kind(),
			amountStyle.Render(formatMoney(tx.Amount, tx.Currency.Code)),
			amountStyle.Render(formatMoney(tx.RunningBalance, tx.Currency.Code)),
		)
		if tx.Reversed {
			line = closedStyle.Render(line)
		}
		fmt.Println(line)
	}
}

func statusText(status fineract.Status) string {
	switch {
	case status.Active:
		return activeStyle.Render(status.Value)
	case status.Closed:
		return closedStyle.Render(status.Value)
	default:
		return mutedStyle.Render(status.Value)
	}
}

func formatMoney(amount float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %.2f", currency, amount))
}

func init() {
	savingsCmd.Flags().Int("limit", 10, "Number of recent transactions to show (0 for all)")
	transactionsCmd.Flags().Int("limit", 0, "Maximum number of transactions to show (0 for all)")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(savingsCmd)
	rootCmd.AddCommand(loansCmd)
	rootCmd.AddCommand(transactionsCmd)
}
