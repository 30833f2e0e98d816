// Package fineract is a thin client for the Apache Fineract self service
// API. Response shapes follow the server; nothing here computes balances,
// interest or schedules.
package fineract

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	APIBasePath     = "/fineract-provider/api/v1"
	TenantHeader    = "Fineract-Platform-TenantId"
	RequestIDHeader = "X-Request-ID"

	DefaultTenant  = "default"
	DefaultLocale  = "en"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Tenant   string        `mapstructure:"tenant"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Locale   string        `mapstructure:"locale"`

	// Insecure skips TLS verification, for development servers with
	// self signed certificates.
	Insecure bool `mapstructure:"insecure"`
}

// Client talks to one Fineract tenant. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	config Config

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config) (*Client, error) {

	baseURL, err := resolveBaseURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	if len(cfg.Tenant) == 0 {
		cfg.Tenant = DefaultTenant
	}
	if len(cfg.Locale) == 0 {
		cfg.Locale = DefaultLocale
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{config: cfg}

	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader(TenantHeader, cfg.Tenant).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", common.GetUserAgent()).
		OnBeforeRequest(c.authorize)

	if cfg.Insecure {
		logrus.Warnln("TLS verification is disabled for the banking API")
		c.http.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	logrus.WithFields(logrus.Fields{
		"url":    baseURL,
		"tenant": cfg.Tenant,
	}).Debugln("Created Fineract client")

	return c, nil
}

func resolveBaseURL(endpoint string) (string, error) {

	endpoint = strings.TrimSpace(endpoint)
	if len(endpoint) == 0 {
		return "", errors.New("fineract endpoint is not configured")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || len(parsed.Scheme) == 0 || len(parsed.Host) == 0 {
		return "", fmt.Errorf("invalid fineract endpoint: %s", endpoint)
	}

	endpoint = strings.TrimSuffix(endpoint, "/")
	if strings.HasSuffix(endpoint, "/api/v1") {
		return endpoint, nil
	}
	return endpoint + APIBasePath, nil
}

// SetToken sets the credential sent as Basic authorization on every
// request. An empty token clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {

	r.SetHeader(RequestIDHeader, uuid.NewString())

	// Explicit basic auth on the request wins
	if r.UserInfo != nil {
		return nil
	}

	if token := c.Token(); len(token) > 0 {
		r.SetHeader("Authorization", "Basic "+token)
	}
	return nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func (c *Client) execute(req *resty.Request, method string, path string, out any) error {

	resp, err := req.Execute(method, path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).WithError(err).Errorln("Failed to reach banking API")
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}

	logrus.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode(),
		"elapsed": resp.Time(),
	}).Debugln("Banking API request completed")

	if resp.IsError() {
		apiErr := newAPIError(resp.StatusCode(), resp.Body())
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode(),
		}).WithError(apiErr).Warnln("Banking API returned an error")
		return apiErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}

	return nil
}

// Authenticate exchanges a username and password for an authentication key.
// It does not change the client token; callers decide whether to keep it.
func (c *Client) Authenticate(ctx context.Context, username string, password string) (*AuthResponse, error) {

	if len(username) == 0 || len(password) == 0 {
		return nil, errors.New("username and password are required")
	}

	req := c.request(ctx).
		SetBasicAuth(username, password).
		SetBody(map[string]string{
			"username": username,
			"password": password,
		})

	var auth AuthResponse
	if err := c.execute(req, http.MethodPost, "/self/authentication", &auth); err != nil {
		return nil, err
	}

	if !auth.Authenticated || len(auth.AuthenticationKey) == 0 {
		return nil, fmt.Errorf("authentication rejected for %s: %w", username, ErrUnauthorized)
	}

	return &auth, nil
}

func (c *Client) GetClients(ctx context.Context) ([]ClientProfile, error) {

	var page clientPage
	if err := c.execute(c.request(ctx), http.MethodGet, "/self/clients", &page); err != nil {
		return nil, err
	}

	return page.PageItems, nil
}

func (c *Client) GetClient(ctx context.Context, clientID int64) (*ClientProfile, error) {

	var client ClientProfile
	path := fmt.Sprintf("/self/clients/%d", clientID)
	if err := c.execute(c.request(ctx), http.MethodGet, path, &client); err != nil {
		return nil, err
	}

	return &client, nil
}

func (c *Client) GetClientAccounts(ctx context.Context, clientID int64) (*ClientAccounts, error) {

	var accounts ClientAccounts
	path := fmt.Sprintf("/self/clients/%d/accounts", clientID)
	if err := c.execute(c.request(ctx), http.MethodGet, path, &accounts); err != nil {
		return nil, err
	}

	return &accounts, nil
}

func (c *Client) GetSavingsAccount(ctx context.Context, accountID int64) (*SavingsAccount, error) {

	req := c.request(ctx).SetQueryParam("associations", "transactions")

	var account SavingsAccount
	path := fmt.Sprintf("/self/savingsaccounts/%d", accountID)
	if err := c.execute(req, http.MethodGet, path, &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// GetSavingsTransactions returns the transactions of a savings account,
// most recent first as the server orders them.
func (c *Client) GetSavingsTransactions(ctx context.Context, accountID int64) ([]Transaction, error) {

	account, err := c.GetSavingsAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return account.Transactions, nil
}

func (c *Client) GetLoanAccount(ctx context.Context, loanID int64) (*LoanAccount, error) {

	req := c.request(ctx).SetQueryParam("associations", "repaymentSchedule,transactions")

	var loan LoanAccount
	path := fmt.Sprintf("/self/loans/%d", loanID)
	if err := c.execute(req, http.MethodGet, path, &loan); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (c *Client) GetTransferTemplate(ctx context.Context) (*TransferTemplate, error) {

	var template TransferTemplate
	if err := c.execute(c.request(ctx), http.MethodGet, "/self/accounttransfers/template", &template); err != nil {
		return nil, err
	}

	return &template, nil
}

// MakeTransfer submits a transfer between accounts. A missing date,
// date format or locale is filled in with today's date and the defaults.
func (c *Client) MakeTransfer(ctx context.Context, transfer TransferRequest) (*ResourceResponse, error) {

	if transfer.TransferAmount <= 0 {
		return nil, errors.New("transfer amount must be positive")
	}

	if len(transfer.DateFormat) == 0 {
		transfer.DateFormat = DateFormat
	}
	if len(transfer.Locale) == 0 {
		transfer.Locale = c.config.Locale
	}
	if len(transfer.TransferDate) == 0 {
		transfer.TransferDate = time.Now().Format(DateFormat)
	}

	req := c.request(ctx).SetBody(transfer)

	var result ResourceResponse
	if err := c.execute(req, http.MethodPost, "/self/accounttransfers", &result); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"from":     transfer.FromAccountID,
		"to":       transfer.ToAccountID,
		"resource": result.ResourceID,
	}).Infoln("Transfer submitted")

	return &result, nil
}

func (c *Client) ListBeneficiaries(ctx context.Context) ([]Beneficiary, error) {

	var beneficiaries []Beneficiary
	if err := c.execute(c.request(ctx), http.MethodGet, "/self/beneficiaries/tpt", &beneficiaries); err != nil {
		return nil, err
	}

	return beneficiaries, nil
}

func (c *Client) AddBeneficiary(ctx context.Context, beneficiary BeneficiaryRequest) (*ResourceResponse, error) {

	if len(beneficiary.Locale) == 0 {
		beneficiary.Locale = c.config.Locale
	}

	req := c.request(ctx).SetBody(beneficiary)

	var result ResourceResponse
	if err := c.execute(req, http.MethodPost, "/self/beneficiaries/tpt", &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) DeleteBeneficiary(ctx context.Context, beneficiaryID int64) error {
	path := fmt.Sprintf("/self/beneficiaries/tpt/%d", beneficiaryID)
	return c.execute(c.request(ctx), http.MethodDelete, path, nil)
}
