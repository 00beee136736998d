package ynab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public YNAB v1 API endpoint.
const DefaultBaseURL = "https://api.ynab.com/v1"

const requestTimeout = 30 * time.Second

// NotFoundError reports a budget or account name that could not be resolved
// to an ID, along with the names that were available.
type NotFoundError struct {
	Kind      string // "budget" or "account"
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s named %q not found, available ones: '%s'",
		e.Kind, e.Name, strings.Join(e.Available, "', '"))
}

// Client talks to the YNAB v1 API on behalf of one API key.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, log: log}
}

// Budgets returns all budgets visible to the API key.
func (c *Client) Budgets(ctx context.Context) ([]Budget, error) {
	var out budgetsResponse
	if err := c.get(ctx, "/budgets", &out); err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	return out.Data.Budgets, nil
}

// Accounts returns all accounts within one budget.
func (c *Client) Accounts(ctx context.Context, budgetID string) ([]Account, error) {
	var out accountsResponse
	if err := c.get(ctx, "/budgets/"+budgetID+"/accounts", &out); err != nil {
		return nil, fmt.Errorf("listing accounts of budget %s: %w", budgetID, err)
	}
	return out.Data.Accounts, nil
}

// ResolveBudget maps a budget name to its ID.
func (c *Client) ResolveBudget(ctx context.Context, name string) (string, error) {
	budgets, err := c.Budgets(ctx)
	if err != nil {
		return "", err
	}

	byName := make(map[string]string, len(budgets))
	for _, b := range budgets {
		byName[b.Name] = b.ID
	}

	id, ok := byName[name]
	if !ok {
		return "", &NotFoundError{Kind: "budget", Name: name, Available: sortedNames(byName)}
	}

	c.log.Info().Str("budget", name).Str("budget_id", id).Msg("resolved budget")
	return id, nil
}

// ResolveAccount maps an account name within a budget to its ID.
func (c *Client) ResolveAccount(ctx context.Context, budgetID, name string) (string, error) {
	accounts, err := c.Accounts(ctx, budgetID)
	if err != nil {
		return "", err
	}

	byName := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byName[a.Name] = a.ID
	}

	id, ok := byName[name]
	if !ok {
		return "", &NotFoundError{Kind: "account", Name: name, Available: sortedNames(byName)}
	}

	c.log.Info().Str("account", name).Str("account_id", id).Msg("resolved account")
	return id, nil
}

// CreateTransactions pushes the whole batch in one call. YNAB suppresses
// transactions whose import_id it has already seen and reports them back.
func (c *Client) CreateTransactions(ctx context.Context, budgetID string, txns []Transaction) (CreateResult, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(createTransactionsRequest{Transactions: txns}).
		Post("/budgets/" + budgetID + "/transactions")
	if err != nil {
		return CreateResult{}, fmt.Errorf("creating transactions: %w", err)
	}
	if res.StatusCode() != http.StatusCreated && res.StatusCode() != http.StatusOK {
		return CreateResult{}, apiError(res)
	}

	var out createTransactionsResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return CreateResult{}, fmt.Errorf("unmarshaling create response: %w", err)
	}

	if n := len(out.Data.DuplicateImportIDs); n > 0 {
		c.log.Info().
			Int("count", n).
			Strs("import_ids", out.Data.DuplicateImportIDs).
			Msg("duplicate transactions suppressed by YNAB")
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	res, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return apiError(res)
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

func apiError(res *resty.Response) error {
	var e errorResponse
	if err := json.Unmarshal(res.Body(), &e); err == nil && e.Error.Detail != "" {
		return fmt.Errorf("ynab api error %s: %s", res.Status(), e.Error.Detail)
	}
	return fmt.Errorf("unexpected response %s: %s", res.Status(), res.Body())
}

func sortedNames(byName map[string]string) []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
