package ynab

// Wire types for the YNAB v1 API, https://api.ynab.com/v1.

// Cleared states accepted by the transactions endpoint.
const (
	ClearedUncleared  = "uncleared"
	ClearedCleared    = "cleared"
	ClearedReconciled = "reconciled"
)

// Transaction is one transaction in a create request.
type Transaction struct {
	ID        string  `json:"id,omitempty"`
	ImportID  string  `json:"import_id"`
	AccountID string  `json:"account_id"`
	Date      string  `json:"date"`   // YYYY-MM-DD
	Amount    int64   `json:"amount"` // milliunits
	Cleared   string  `json:"cleared"`
	Approved  bool    `json:"approved"`
	Deleted   bool    `json:"deleted"`
	PayeeName *string `json:"payee_name,omitempty"`
}

// Budget is a budget summary.
type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is an account within a budget.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Closed  bool   `json:"closed,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type budgetsResponse struct {
	Data struct {
		Budgets []Budget `json:"budgets"`
	} `json:"data"`
}

type accountsResponse struct {
	Data struct {
		Accounts []Account `json:"accounts"`
	} `json:"data"`
}

type createTransactionsRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// CreateResult reports what the bulk create actually stored.
type CreateResult struct {
	TransactionIDs     []string `json:"transaction_ids"`
	DuplicateImportIDs []string `json:"duplicate_import_ids"`
}

type createTransactionsResponse struct {
	Data CreateResult `json:"data"`
}

type errorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}
