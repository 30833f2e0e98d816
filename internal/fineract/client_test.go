package fineract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "bWlmb3M6cGFzc3dvcmQ=" // mifos:password

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Endpoint: server.URL, Tenant: "bank"})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	assert.NoError(t, err)
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		endpoint string
		expected string
		wantErr  bool
	}{
		{"https://bank.example.com", "https://bank.example.com/fineract-provider/api/v1", false},
		{"https://bank.example.com/", "https://bank.example.com/fineract-provider/api/v1", false},
		{"https://bank.example.com/fineract-provider/api/v1", "https://bank.example.com/fineract-provider/api/v1", false},
		{"", "", true},
		{"bank.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			result, err := resolveBaseURL(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, APIBasePath+"/self/authentication", r.URL.Path)
		assert.Equal(t, "bank", r.Header.Get(TenantHeader))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "mifos", username)
		assert.Equal(t, "password", password)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mifos", body["username"])

		writeJSON(t, w, http.StatusOK, `{
			"username": "mifos",
			"userId": 1,
			"base64EncodedAuthenticationKey": "`+testToken+`",
			"authenticated": true,
			"officeId": 1,
			"officeName": "Head Office",
			"roles": [{"id": 2, "name": "Self Service User"}],
			"clients": [7],
			"isSelfServiceUser": true
		}`)
	})

	// A stale token must not replace the explicit credentials.
	client.SetToken("stale")

	auth, err := client.Authenticate(context.Background(), "mifos", "password")
	require.NoError(t, err)
	assert.Equal(t, testToken, auth.AuthenticationKey)
	assert.Equal(t, []int64{7}, auth.Clients)
	assert.Equal(t, "Self Service User", auth.Roles[0].Name)
	assert.Equal(t, "stale", client.Token())
}

func TestAuthenticate_Unauthorized(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, `{
			"developerMessage": "Invalid authentication details were passed in api request.",
			"httpStatusCode": "401",
			"defaultUserMessage": "Unauthenticated. Please login.",
			"userMessageGlobalisationCode": "error.msg.not.authenticated",
			"errors": []
		}`)
	})

	_, err := client.Authenticate(context.Background(), "mifos", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "error.msg.not.authenticated", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "Unauthenticated. Please login.")

	_, err = client.Authenticate(context.Background(), "", "")
	assert.Error(t, err)
}

func TestAuthenticate_NotAuthenticatedBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"username": "mifos", "authenticated": false}`)
	})

	_, err := client.Authenticate(context.Background(), "mifos", "password")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenIsSentAsBasicAuthorization(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic "+testToken, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, `{"totalFilteredRecords": 1, "pageItems": [
			{"id": 7, "accountNo": "000000007", "displayName": "Nakato Ssebuliba",
			 "officeId": 1, "officeName": "Head Office",
			 "status": {"id": 300, "code": "clientStatusType.active", "value": "Active", "active": true},
			 "activationDate": [2023, 4, 12]}
		]}`)
	})

	client.SetToken(testToken)

	clients, err := client.GetClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, int64(7), clients[0].ID)
	assert.True(t, clients[0].Status.Active)
	assert.Equal(t, NewDate(2023, time.April, 12), clients[0].ActivationDate)

	decoded, err := base64.StdEncoding.DecodeString(testToken)
	require.NoError(t, err)
	assert.Equal(t, "mifos:password", string(decoded))
}

func TestGetClient(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIBasePath+"/self/clients/7", r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{"id": 7, "accountNo": "000000007", "displayName": "Nakato Ssebuliba",
			"officeName": "Head Office", "status": {"value": "Active", "active": true}}`)
	})

	var profile *ClientProfile
	profile, err := client.GetClient(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Nakato Ssebuliba", profile.DisplayName)
	assert.Equal(t, "Head Office", profile.OfficeName)
	assert.True(t, profile.Status.Active)
}

func TestGetClientAccounts(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIBasePath+"/self/clients/7/accounts", r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{
			"savingsAccounts": [
				{"id": 42, "accountNo": "000000042", "productName": "Voluntary Savings",
				 "status": {"value": "Active", "active": true},
				 "currency": {"code": "UGX", "decimalPlaces": 0}, "accountBalance": 125000}
			],
			"loanAccounts": [
				{"id": 3, "accountNo": "000000003", "productName": "Business Loan",
				 "status": {"value": "Active", "active": true}, "loanBalance": 500000,
				 "loanType": {"id": 1, "code": "accountType.individual", "value": "Individual"}}
			]
		}`)
	})

	accounts, err := client.GetClientAccounts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, accounts.SavingsAccounts, 1)
	require.Len(t, accounts.LoanAccounts, 1)
	assert.Empty(t, accounts.ShareAccounts)
	assert.Equal(t, 125000.0, accounts.SavingsAccounts[0].Balance)
	assert.Equal(t, "UGX", accounts.SavingsAccounts[0].Currency.Code)
	assert.Equal(t, 500000.0, accounts.LoanAccounts[0].LoanBalance)
	assert.Equal(t, "Individual", accounts.LoanAccounts[0].LoanType.Value)
}

func TestGetSavingsTransactions(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIBasePath+"/self/savingsaccounts/42", r.URL.Path)
		assert.Equal(t, "transactions", r.URL.Query().Get("associations"))
		writeJSON(t, w, http.StatusOK, `{
			"id": 42, "accountNo": "000000042", "savingsProductName": "Voluntary Savings",
			"summary": {"accountBalance": 125000, "availableBalance": 120000},
			"transactions": [
				{"id": 2, "transactionType": {"id": 2, "value": "Withdrawal"}, "date": [2024, 1, 15],
				 "amount": 5000, "runningBalance": 125000, "reversed": false},
				{"id": 1, "transactionType": {"id": 1, "value": "Deposit"}, "date": [2024, 1, 2],
				 "amount": 130000, "runningBalance": 130000, "reversed": false}
			]
		}`)
	})

	transactions, err := client.GetSavingsTransactions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "Withdrawal", transactions[0].Kind())
	assert.Equal(t, "2024-01-15", transactions[0].Date.String())
	assert.Equal(t, 130000.0, transactions[1].RunningBalance)
}

func TestGetLoanAccount(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIBasePath+"/self/loans/3", r.URL.Path)
		assert.Equal(t, "repaymentSchedule,transactions", r.URL.Query().Get("associations"))
		writeJSON(t, w, http.StatusOK, `{
			"id": 3, "accountNo": "000000003", "loanProductName": "Business Loan",
			"principal": 600000, "numberOfRepayments": 6,
			"timeline": {"submittedOnDate": [2024, 1, 1], "actualDisbursementDate": [2024, 1, 5]},
			"summary": {"totalOutstanding": 500000, "totalOverdue": 0},
			"repaymentSchedule": {"periods": [
				{"period": 1, "fromDate": [2024, 1, 5], "dueDate": [2024, 2, 5], "complete": true, "totalDueForPeriod": 110000}
			]},
			"transactions": [
				{"id": 9, "type": {"id": 1, "value": "Disbursement"}, "date": [2024, 1, 5], "amount": 600000}
			]
		}`)
	})

	loan, err := client.GetLoanAccount(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Business Loan", loan.LoanProductName)
	assert.Equal(t, NewDate(2024, time.January, 5), loan.Timeline.ActualDisbursement)
	require.NotNil(t, loan.Summary)
	assert.Equal(t, 500000.0, loan.Summary.TotalOutstanding)
	require.NotNil(t, loan.Schedule)
	require.Len(t, loan.Schedule.Periods, 1)
	assert.True(t, loan.Schedule.Periods[0].Complete)
	assert.Equal(t, "Disbursement", loan.Transactions[0].Kind())
}

func TestMakeTransfer(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, APIBasePath+"/self/accounttransfers", r.URL.Path)

		var body TransferRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(42), body.FromAccountID)
		assert.Equal(t, int64(43), body.ToAccountID)
		assert.Equal(t, AccountTypeSavings, body.ToAccountType)
		assert.Equal(t, 2500.0, body.TransferAmount)
		assert.Equal(t, DateFormat, body.DateFormat)
		assert.Equal(t, DefaultLocale, body.Locale)
		assert.NotEmpty(t, body.TransferDate)

		writeJSON(t, w, http.StatusOK, `{"resourceId": 88, "savingsId": 42}`)
	})

	result, err := client.MakeTransfer(context.Background(), TransferRequest{
		FromAccountID:   42,
		FromAccountType: AccountTypeSavings,
		ToAccountID:     43,
		ToAccountType:   AccountTypeSavings,
		TransferAmount:  2500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(88), result.ResourceID)

	_, err = client.MakeTransfer(context.Background(), TransferRequest{TransferAmount: 0})
	assert.Error(t, err)
}

func TestMakeTransfer_ValidationError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, `{
			"httpStatusCode": "400",
			"defaultUserMessage": "Validation errors exist.",
			"errors": [
				{"defaultUserMessage": "Insufficient account balance.", "parameterName": "transferAmount"}
			]
		}`)
	})

	_, err := client.MakeTransfer(context.Background(), TransferRequest{TransferAmount: 1e9})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "fineract: 400 Validation errors exist.: Insufficient account balance.", apiErr.Error())
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestBeneficiaries(t *testing.T) {
	var deleted bool

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == APIBasePath+"/self/beneficiaries/tpt":
			writeJSON(t, w, http.StatusOK, `[
				{"id": 1, "name": "Mum", "officeName": "Head Office", "clientName": "Sarah",
				 "accountType": {"id": 2, "value": "Savings Account"}, "accountNumber": "000000050", "transferLimit": 100000}
			]`)
		case r.Method == http.MethodPost && r.URL.Path == APIBasePath+"/self/beneficiaries/tpt":
			var body BeneficiaryRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Mum", body.Name)
			assert.Equal(t, DefaultLocale, body.Locale)
			writeJSON(t, w, http.StatusOK, `{"resourceId": 1}`)
		case r.Method == http.MethodDelete && r.URL.Path == APIBasePath+"/self/beneficiaries/tpt/1":
			deleted = true
			writeJSON(t, w, http.StatusOK, `{"resourceId": 1}`)
		default:
			writeJSON(t, w, http.StatusNotFound, `{"defaultUserMessage": "Not found"}`)
		}
	})

	beneficiaries, err := client.ListBeneficiaries(context.Background())
	require.NoError(t, err)
	require.Len(t, beneficiaries, 1)
	assert.Equal(t, "000000050", beneficiaries[0].AccountNumber)

	result, err := client.AddBeneficiary(context.Background(), BeneficiaryRequest{
		Name:          "Mum",
		OfficeName:    "Head Office",
		AccountNumber: "000000050",
		AccountType:   AccountTypeSavings,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ResourceID)

	require.NoError(t, client.DeleteBeneficiary(context.Background(), 1))
	assert.True(t, deleted)

	err = client.DeleteBeneficiary(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDate(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`[2024, 2, 29]`), &d))
	assert.Equal(t, NewDate(2024, time.February, 29), d)

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01"`), &d))
	assert.Equal(t, "2024-03-01", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"05 March 2024"`), &d))
	assert.Equal(t, "2024-03-05", d.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())

	assert.Error(t, json.Unmarshal([]byte(`[2024, 2]`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &d))

	data, err := json.Marshal(NewDate(2024, time.June, 7))
	require.NoError(t, err)
	assert.JSONEq(t, `[2024, 6, 7]`, string(data))
}
