package app

import (
	"fmt"
	"strings"

	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/navstate"
)

type SelectionKind string

const (
	SelectionSavings     SelectionKind = "savings"
	SelectionLoan        SelectionKind = "loan"
	SelectionShare       SelectionKind = "share"
	SelectionBeneficiary SelectionKind = "beneficiary"
)

// Selection is the entity one view hands to the next.
type Selection struct {
	Kind      SelectionKind `json:"kind"`
	ID        int64         `json:"id"`
	AccountNo string        `json:"accountNo,omitempty"`
	Name      string        `json:"name,omitempty"`
	Status    string        `json:"status,omitempty"`
	Balance   float64       `json:"balance"`
	Currency  string        `json:"currency,omitempty"`
}

func SelectionFromAccount(kind SelectionKind, account fineract.AccountSummary) Selection {

	balance := account.Balance
	if kind == SelectionLoan {
		balance = account.LoanBalance
	}

	return Selection{
		Kind:      kind,
		ID:        account.ID,
		AccountNo: account.AccountNo,
		Name:      account.ProductName,
		Status:    account.Status.Value,
		Balance:   balance,
		Currency:  account.Currency.Code,
	}
}

// SelectionsFromAccounts flattens a client's accounts, savings first.
func SelectionsFromAccounts(accounts *fineract.ClientAccounts) []Selection {

	if accounts == nil {
		return nil
	}

	selections := make([]Selection, 0, len(accounts.SavingsAccounts)+len(accounts.LoanAccounts)+len(accounts.ShareAccounts))
	for _, account := range accounts.SavingsAccounts {
		selections = append(selections, SelectionFromAccount(SelectionSavings, account))
	}
	for _, account := range accounts.LoanAccounts {
		selections = append(selections, SelectionFromAccount(SelectionLoan, account))
	}
	for _, account := range accounts.ShareAccounts {
		selections = append(selections, SelectionFromAccount(SelectionShare, account))
	}
	return selections
}

func SelectionFromBeneficiary(beneficiary fineract.Beneficiary) Selection {
	return Selection{
		Kind:      SelectionBeneficiary,
		ID:        beneficiary.ID,
		AccountNo: beneficiary.AccountNumber,
		Name:      beneficiary.Name,
		Balance:   beneficiary.TransferLimit,
	}
}

// SelectionLink encodes sel into a link to its detail view.
func (a *App) SelectionLink(sel Selection) (string, error) {
	return a.Codec.URL(fmt.Sprintf("fif://%s/details", sel.Kind), sel)
}

// ResolveSelection accepts a link produced by SelectionLink or a bare
// token. Anything that does not decode resolves to nil.
func (a *App) ResolveSelection(input string) *Selection {

	input = strings.TrimSpace(input)

	token := input
	if strings.Contains(input, "?") {
		var ok bool
		if token, ok = navstate.TokenFromURL(input); !ok {
			return nil
		}
	}

	sel := navstate.DecodeAs[Selection](a.Codec, token)
	if sel == nil || len(sel.Kind) == 0 {
		return nil
	}
	return sel
}
