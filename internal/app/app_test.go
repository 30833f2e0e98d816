package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/activity"
	"github.com/chrisapx/fif-client-sub000/internal/auth"
	"github.com/chrisapx/fif-client-sub000/internal/config"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authBody = `{
	"username": "mifos",
	"userId": 1,
	"base64EncodedAuthenticationKey": "bWlmb3M6cGFzc3dvcmQ=",
	"authenticated": true,
	"officeName": "Head Office",
	"clients": [7]
}`

func newTestApp(t *testing.T, opts ...Option) (*App, *storage.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, authBody)
	}))
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Fineract.Endpoint = server.URL
	cfg.NavState.Secret = "test-secret"
	cfg.Session.SessionDuration = time.Minute
	cfg.Session.InactivityTimeout = 10 * time.Second

	kv := storage.NewMemoryStore()
	opts = append([]Option{WithStore(kv), WithDeviceID("device-1")}, opts...)

	a, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return a, kv
}

func TestNew_RequiresValidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(config.DefaultConfig(), WithStore(storage.NewMemoryStore()))
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Fineract.Endpoint = "https://bank.example.com"
	_, err = New(cfg, WithStore(storage.NewMemoryStore()))
	assert.ErrorIs(t, err, config.ErrMissingSecret)
}

func TestApp_SessionExpiryClearsLoginButKeepsBiometric(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a, kv := newTestApp(t, WithClock(clock))

	_, err := a.RequireLogin()
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	_, err = a.Auth.Login(context.Background(), "mifos", "password")
	require.NoError(t, err)
	require.NoError(t, a.Auth.EnrollBiometric())

	user, clientID, err := a.RequireClient()
	require.NoError(t, err)
	assert.Equal(t, "mifos", user.Username)
	assert.Equal(t, int64(7), clientID)

	expired := make(chan struct{})
	a.Session.Init(func() { close(expired) }, nil)

	a.Activity.Emit(activity.KeyPress, "test")
	clock.Advance(10 * time.Second)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("session did not expire")
	}

	assert.False(t, a.Auth.Store().IsAuthenticated())
	assert.Empty(t, a.API.Token())
	assert.True(t, a.Auth.Store().IsBiometricEnrolled())
	assert.NotEmpty(t, storage.KeysWithPrefix(kv, auth.BiometricPrefix))
}

func TestApp_Selection(t *testing.T) {
	a, _ := newTestApp(t)

	sel := SelectionFromAccount(SelectionSavings, fineract.AccountSummary{
		ID:          42,
		AccountNo:   "000000042",
		ProductName: "Voluntary Savings",
		Status:      fineract.Status{Value: "Active", Active: true},
		Currency:    fineract.Currency{Code: "UGX"},
		Balance:     125000,
	})

	link, err := a.SelectionLink(sel)
	require.NoError(t, err)
	assert.Contains(t, link, "fif://savings/details?state=")

	resolved := a.ResolveSelection(link)
	require.NotNil(t, resolved)
	assert.Equal(t, sel, *resolved)

	token := link[len("fif://savings/details?state="):]
	resolved = a.ResolveSelection(token)
	require.NotNil(t, resolved)
	assert.Equal(t, int64(42), resolved.ID)

	assert.Nil(t, a.ResolveSelection("garbage-not-encrypted"))
	assert.Nil(t, a.ResolveSelection("fif://savings/details?tab=1"))

	loan := SelectionFromAccount(SelectionLoan, fineract.AccountSummary{ID: 3, Balance: 1, LoanBalance: 500})
	assert.Equal(t, 500.0, loan.Balance)

	beneficiary := SelectionFromBeneficiary(fineract.Beneficiary{ID: 5, Name: "Mum", AccountNumber: "000000050"})
	assert.Equal(t, SelectionBeneficiary, beneficiary.Kind)
}

func TestSelectionsFromAccounts(t *testing.T) {
	assert.Nil(t, SelectionsFromAccounts(nil))

	selections := SelectionsFromAccounts(&fineract.ClientAccounts{
		SavingsAccounts: []fineract.AccountSummary{{ID: 1}, {ID: 2}},
		LoanAccounts:    []fineract.AccountSummary{{ID: 3, LoanBalance: 90}},
		ShareAccounts:   []fineract.AccountSummary{{ID: 4}},
	})

	require.Len(t, selections, 4)
	assert.Equal(t, SelectionSavings, selections[0].Kind)
	assert.Equal(t, SelectionLoan, selections[2].Kind)
	assert.Equal(t, 90.0, selections[2].Balance)
	assert.Equal(t, SelectionShare, selections[3].Kind)
}
