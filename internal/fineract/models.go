package fineract

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date. Fineract serializes dates as [year, month, day]
// arrays in responses and as formatted strings in requests.
type Date struct {
	time.Time
}

const DateFormat = "02 January 2006"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalJSON(data []byte) error {

	if string(data) == "null" {
		d.Time = time.Time{}
		return nil
	}

	var parts []int
	if err := json.Unmarshal(data, &parts); err == nil {
		if len(parts) != 3 {
			return fmt.Errorf("invalid date array of length %d", len(parts))
		}
		*d = NewDate(parts[0], time.Month(parts[1]), parts[2])
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("invalid date: %s", string(data))
	}

	for _, layout := range []string{"2006-01-02", DateFormat, time.RFC3339} {
		if parsed, err := time.Parse(layout, text); err == nil {
			*d = NewDate(parsed.Year(), parsed.Month(), parsed.Day())
			return nil
		}
	}

	return fmt.Errorf("invalid date: %s", text)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal([]int{d.Year(), int(d.Month()), d.Day()})
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

type Currency struct {
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	DisplaySymbol string `json:"displaySymbol,omitempty"`
	DecimalPlaces int    `json:"decimalPlaces"`
}

// Status is the lifecycle status Fineract attaches to clients and accounts.
type Status struct {
	ID     int    `json:"id"`
	Code   string `json:"code"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
	Closed bool   `json:"closed,omitempty"`
}

type EnumOption struct {
	ID    int    `json:"id"`
	Code  string `json:"code"`
	Value string `json:"value"`
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AuthResponse is returned by the self service authentication endpoint.
type AuthResponse struct {
	Username            string   `json:"username"`
	UserID              int64    `json:"userId"`
	AuthenticationKey   string   `json:"base64EncodedAuthenticationKey"`
	Authenticated       bool     `json:"authenticated"`
	OfficeID            int64    `json:"officeId"`
	OfficeName          string   `json:"officeName"`
	Roles               []Role   `json:"roles"`
	Permissions         []string `json:"permissions"`
	Clients             []int64  `json:"clients"`
	IsSelfServiceUser   bool     `json:"isSelfServiceUser"`
	ShouldRenewPassword bool     `json:"shouldRenewPassword"`
}

// ClientProfile is a Fineract client: the member who owns accounts.
type ClientProfile struct {
	ID             int64  `json:"id"`
	AccountNo      string `json:"accountNo"`
	ExternalID     string `json:"externalId,omitempty"`
	DisplayName    string `json:"displayName"`
	FirstName      string `json:"firstname,omitempty"`
	LastName       string `json:"lastname,omitempty"`
	MobileNo       string `json:"mobileNo,omitempty"`
	EmailAddress   string `json:"emailAddress,omitempty"`
	OfficeID       int64  `json:"officeId"`
	OfficeName     string `json:"officeName"`
	Status         Status `json:"status"`
	ActivationDate Date   `json:"activationDate"`
}

type clientPage struct {
	TotalFilteredRecords int             `json:"totalFilteredRecords"`
	PageItems            []ClientProfile `json:"pageItems"`
}

// AccountSummary is a row of the client accounts overview.
type AccountSummary struct {
	ID          int64       `json:"id"`
	AccountNo   string      `json:"accountNo"`
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	ShortName   string      `json:"shortProductName,omitempty"`
	Status      Status      `json:"status"`
	Currency    Currency    `json:"currency"`
	Balance     float64     `json:"accountBalance"`
	LoanBalance float64     `json:"loanBalance,omitempty"`
	AccountType *EnumOption `json:"accountType,omitempty"`
	LoanType    *EnumOption `json:"loanType,omitempty"`
	Timeline    *Timeline   `json:"timeline,omitempty"`
}

type Timeline struct {
	SubmittedOnDate    Date `json:"submittedOnDate"`
	ApprovedOnDate     Date `json:"approvedOnDate,omitempty"`
	ActivatedOnDate    Date `json:"activatedOnDate,omitempty"`
	ActualDisbursement Date `json:"actualDisbursementDate,omitempty"`
	ExpectedMaturity   Date `json:"expectedMaturityDate,omitempty"`
	ClosedOnDate       Date `json:"closedOnDate,omitempty"`
}

type ClientAccounts struct {
	SavingsAccounts []AccountSummary `json:"savingsAccounts"`
	LoanAccounts    []AccountSummary `json:"loanAccounts"`
	ShareAccounts   []AccountSummary `json:"shareAccounts"`
}

type Transaction struct {
	ID              int64      `json:"id"`
	TransactionType EnumOption `json:"transactionType"`
	Type            EnumOption `json:"type"`
	AccountID       int64      `json:"accountId,omitempty"`
	AccountNo       string     `json:"accountNo,omitempty"`
	Date            Date       `json:"date"`
	Currency        Currency   `json:"currency"`
	Amount          float64    `json:"amount"`
	RunningBalance  float64    `json:"runningBalance"`
	Reversed        bool       `json:"reversed"`
	Principal       float64    `json:"principalPortion,omitempty"`
	Interest        float64    `json:"interestPortion,omitempty"`
	Fees            float64    `json:"feeChargesPortion,omitempty"`
	Penalties       float64    `json:"penaltyChargesPortion,omitempty"`
}

// Kind returns the human readable transaction type from whichever of the
// two type fields the endpoint filled in.
func (t Transaction) Kind() string {
	if len(t.TransactionType.Value) > 0 {
		return t.TransactionType.Value
	}
	return t.Type.Value
}

type SavingsSummary struct {
	Currency         Currency `json:"currency"`
	TotalDeposits    float64  `json:"totalDeposits"`
	TotalWithdrawals float64  `json:"totalWithdrawals"`
	TotalInterest    float64  `json:"totalInterestPosted"`
	AccountBalance   float64  `json:"accountBalance"`
	AvailableBalance float64  `json:"availableBalance"`
}

type SavingsAccount struct {
	ID               int64          `json:"id"`
	AccountNo        string         `json:"accountNo"`
	ClientID         int64          `json:"clientId"`
	ClientName       string         `json:"clientName"`
	SavingsProductID int64          `json:"savingsProductId"`
	SavingsProduct   string         `json:"savingsProductName"`
	Status           Status         `json:"status"`
	Currency         Currency       `json:"currency"`
	NominalInterest  float64        `json:"nominalAnnualInterestRate"`
	Summary          SavingsSummary `json:"summary"`
	Transactions     []Transaction  `json:"transactions,omitempty"`
}

type LoanSummary struct {
	Currency             Currency `json:"currency"`
	PrincipalDisbursed   float64  `json:"principalDisbursed"`
	PrincipalOutstanding float64  `json:"principalOutstanding"`
	InterestOutstanding  float64  `json:"interestOutstanding"`
	TotalOutstanding     float64  `json:"totalOutstanding"`
	TotalOverdue         float64  `json:"totalOverdue"`
	TotalRepayment       float64  `json:"totalRepayment"`
}

type RepaymentPeriod struct {
	Period            int     `json:"period"`
	FromDate          Date    `json:"fromDate"`
	DueDate           Date    `json:"dueDate"`
	Complete          bool    `json:"complete"`
	PrincipalDue      float64 `json:"principalDue"`
	InterestDue       float64 `json:"interestDue"`
	TotalDueForPeriod float64 `json:"totalDueForPeriod"`
	TotalOutstanding  float64 `json:"totalOutstandingForPeriod"`
}

type RepaymentSchedule struct {
	Currency Currency          `json:"currency"`
	Periods  []RepaymentPeriod `json:"periods"`
}

type LoanAccount struct {
	ID                 int64              `json:"id"`
	AccountNo          string             `json:"accountNo"`
	ClientID           int64              `json:"clientId"`
	ClientName         string             `json:"clientName"`
	LoanProductID      int64              `json:"loanProductId"`
	LoanProductName    string             `json:"loanProductName"`
	Status             Status             `json:"status"`
	Currency           Currency           `json:"currency"`
	Principal          float64            `json:"principal"`
	ApprovedPrincipal  float64            `json:"approvedPrincipal"`
	InterestRate       float64            `json:"interestRatePerPeriod"`
	NumberOfRepayments int                `json:"numberOfRepayments"`
	Timeline           Timeline           `json:"timeline"`
	Summary            *LoanSummary       `json:"summary,omitempty"`
	Schedule           *RepaymentSchedule `json:"repaymentSchedule,omitempty"`
	Transactions       []Transaction      `json:"transactions,omitempty"`
}

// Account types used by the transfer endpoints.
const (
	AccountTypeLoan    = 1
	AccountTypeSavings = 2
)

type TransferAccountOption struct {
	AccountID   int64      `json:"accountId"`
	AccountNo   string     `json:"accountNo"`
	AccountType EnumOption `json:"accountType"`
	ClientID    int64      `json:"clientId"`
	ClientName  string     `json:"clientName"`
	OfficeID    int64      `json:"officeId"`
	OfficeName  string     `json:"officeName"`
}

type TransferTemplate struct {
	FromAccountTypeOptions []EnumOption            `json:"fromAccountTypeOptions"`
	ToAccountTypeOptions   []EnumOption            `json:"toAccountTypeOptions"`
	FromAccountOptions     []TransferAccountOption `json:"fromAccountOptions"`
	ToAccountOptions       []TransferAccountOption `json:"toAccountOptions"`
}

// TransferRequest is the body of a self service account transfer.
type TransferRequest struct {
	FromOfficeID        int64   `json:"fromOfficeId"`
	FromClientID        int64   `json:"fromClientId"`
	FromAccountType     int     `json:"fromAccountType"`
	FromAccountID       int64   `json:"fromAccountId"`
	ToOfficeID          int64   `json:"toOfficeId"`
	ToClientID          int64   `json:"toClientId"`
	ToAccountType       int     `json:"toAccountType"`
	ToAccountID         int64   `json:"toAccountId"`
	TransferDate        string  `json:"transferDate"`
	TransferAmount      float64 `json:"transferAmount"`
	TransferDescription string  `json:"transferDescription"`
	DateFormat          string  `json:"dateFormat"`
	Locale              string  `json:"locale"`
}

// ResourceResponse is the generic acknowledgement of a write.
type ResourceResponse struct {
	ResourceID int64 `json:"resourceId"`
	ClientID   int64 `json:"clientId,omitempty"`
	OfficeID   int64 `json:"officeId,omitempty"`
}

type Beneficiary struct {
	ID            int64      `json:"id,omitempty"`
	Name          string     `json:"name"`
	OfficeName    string     `json:"officeName"`
	ClientName    string     `json:"clientName,omitempty"`
	AccountType   EnumOption `json:"accountType"`
	AccountNumber string     `json:"accountNumber"`
	TransferLimit float64    `json:"transferLimit"`
}

// BeneficiaryRequest registers a third party transfer beneficiary.
type BeneficiaryRequest struct {
	Name          string  `json:"name"`
	OfficeName    string  `json:"officeName"`
	AccountNumber string  `json:"accountNumber"`
	AccountType   int     `json:"accountType"`
	TransferLimit float64 `json:"transferLimit,omitempty"`
	Locale        string  `json:"locale"`
}
