package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Account maps one N26 login to its YNAB target account.
type Account struct {
	Username    string `toml:"username" validate:"required"`
	Password    string `toml:"password" validate:"required"`
	MFAType     string `toml:"mfa_type" validate:"omitempty,oneof=app sms"`
	DeviceToken string `toml:"device_token" validate:"omitempty,uuid4"`
	YNABAccount string `toml:"ynab_account" validate:"required"`
}

// YNAB holds the destination API credentials and target budget.
type YNAB struct {
	APIKey     string `toml:"api_key" validate:"required"`
	BudgetName string `toml:"budget_name" validate:"required"`
}

// Config is the merged view of n26.toml and ynab.toml.
type Config struct {
	Accounts map[string]Account
	YNAB     YNAB
}

// AccountNotConfiguredError reports a lookup for an account name that is
// absent from n26.toml.
type AccountNotConfiguredError struct {
	Name       string
	Configured []string
}

func (e *AccountNotConfiguredError) Error() string {
	if len(e.Configured) == 0 {
		return fmt.Sprintf("account %q not found in n26.toml (no accounts configured)", e.Name)
	}
	return fmt.Sprintf("account %q not found in n26.toml, configured ones: '%s'",
		e.Name, strings.Join(e.Configured, "', '"))
}

const (
	bankFile   = "n26.toml"
	budgetFile = "ynab.toml"
)

// Load reads n26.toml and ynab.toml from dir and validates both.
func Load(dir string) (*Config, error) {
	accounts, err := loadAccounts(filepath.Join(dir, bankFile))
	if err != nil {
		return nil, err
	}

	ynab, err := loadYNAB(filepath.Join(dir, budgetFile))
	if err != nil {
		return nil, err
	}

	return &Config{Accounts: accounts, YNAB: ynab}, nil
}

func loadAccounts(path string) (map[string]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bank config: %w", err)
	}

	var accounts map[string]Account
	if err := toml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", bankFile, err)
	}

	v := validator.New()
	for name, a := range accounts {
		if err := v.Struct(a); err != nil {
			return nil, fmt.Errorf("invalid account %q in %s: %w", name, bankFile, err)
		}
	}
	return accounts, nil
}

func loadYNAB(path string) (YNAB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return YNAB{}, fmt.Errorf("reading budget config: %w", err)
	}

	var wrapper struct {
		YNAB YNAB `toml:"ynab"`
	}
	if err := toml.Unmarshal(data, &wrapper); err != nil {
		return YNAB{}, fmt.Errorf("parsing %s: %w", budgetFile, err)
	}

	if err := validator.New().Struct(wrapper.YNAB); err != nil {
		return YNAB{}, fmt.Errorf("invalid %s: %w", budgetFile, err)
	}
	return wrapper.YNAB, nil
}

// Account returns the named bank account entry.
func (c *Config) Account(name string) (Account, error) {
	a, ok := c.Accounts[name]
	if !ok {
		names := make([]string, 0, len(c.Accounts))
		for n := range c.Accounts {
			names = append(names, n)
		}
		sort.Strings(names)
		return Account{}, &AccountNotConfiguredError{Name: name, Configured: names}
	}
	return a, nil
}

// TokenPath returns the session-token file for an account, kept next to the
// config files so repeated runs can reuse an established session.
func TokenPath(dir, accountName string) string {
	return filepath.Join(dir, "token_data_"+accountName)
}
