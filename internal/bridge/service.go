// Package bridge sequences one sync run: fetch from the bank under the
// two-factor retry policy, trace the raw fetch, filter, resolve the
// destination budget and account, translate, and push the batch.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/n26-ynab/bridge/internal/model"
	"github.com/n26-ynab/bridge/internal/n26"
	"github.com/n26-ynab/bridge/internal/retry"
	"github.com/n26-ynab/bridge/internal/trace"
	"github.com/n26-ynab/bridge/internal/translate"
	"github.com/n26-ynab/bridge/internal/ynab"
)

// SourceClient fetches the full transaction list from the bank. A fetch that
// fails because the out-of-band approval lapsed reports n26.ErrApprovalTimeout.
type SourceClient interface {
	Transactions(ctx context.Context) ([]model.Transaction, error)
}

// DestinationClient resolves names and pushes the translated batch.
type DestinationClient interface {
	ResolveBudget(ctx context.Context, name string) (string, error)
	ResolveAccount(ctx context.Context, budgetID, name string) (string, error)
	CreateTransactions(ctx context.Context, budgetID string, txns []ynab.Transaction) (ynab.CreateResult, error)
}

// Params configures a Service.
type Params struct {
	Source      SourceClient
	Destination DestinationClient
	Logger      zerolog.Logger

	AccountName string // bank account name, used for the trace filename
	BudgetName  string
	YNABAccount string

	LogsDir string // trace output directory

	Retries    int           // additional fetch attempts after an approval timeout
	RetryDelay time.Duration // sleep between attempts

	// Now is the run timestamp source; defaults to time.Now.
	Now func() time.Time
}

// Service runs the bridge end to end.
type Service struct {
	p   Params
	log zerolog.Logger
}

// NewService creates a Service.
func NewService(p Params) *Service {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	return &Service{p: p, log: p.Logger}
}

// Run executes one full sync. Any failure aborts the run; re-running is safe
// because YNAB deduplicates on import_id.
func (s *Service) Run(ctx context.Context) error {
	txns, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Int("count", len(txns)).Msg("transactions retrieved")

	// Trace the raw fetch before filtering so the audit file shows exactly
	// what the bank returned.
	tracePath, err := trace.Write(s.p.LogsDir, s.p.AccountName, s.p.Now(), txns)
	if err != nil {
		return err
	}
	s.log.Debug().Str("path", tracePath).Msg("wrote fetch trace")

	filtered := translate.Filter(txns)
	s.log.Info().Int("count", len(filtered)).Msg("transactions remaining after provisional filter")

	budgetID, err := s.p.Destination.ResolveBudget(ctx, s.p.BudgetName)
	if err != nil {
		return err
	}
	accountID, err := s.p.Destination.ResolveAccount(ctx, budgetID, s.p.YNABAccount)
	if err != nil {
		return err
	}

	payload, err := translate.TranslateAll(filtered, accountID)
	if err != nil {
		return err
	}

	result, err := s.p.Destination.CreateTransactions(ctx, budgetID, payload)
	if err != nil {
		return err
	}

	s.log.Info().
		Int("pushed", len(payload)).
		Int("duplicates", len(result.DuplicateImportIDs)).
		Str("budget", s.p.BudgetName).
		Str("account", s.p.YNABAccount).
		Msg("transactions pushed to YNAB")
	return nil
}

// fetch downloads the transaction list, retrying only when the two-factor
// approval lapses. Every other error aborts immediately.
func (s *Service) fetch(ctx context.Context) ([]model.Transaction, error) {
	var txns []model.Transaction

	op := func() error {
		var err error
		txns, err = s.p.Source.Transactions(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, n26.ErrApprovalTimeout):
			s.log.Warn().
				Dur("delay", s.p.RetryDelay).
				Msg("no app approval received, will retry after delay")
			return err
		default:
			return retry.Permanent(err)
		}
	}

	err := retry.Constant(ctx, s.p.RetryDelay, uint64(s.p.Retries), op)
	if err != nil {
		if errors.Is(err, n26.ErrApprovalTimeout) {
			return nil, &n26.AuthTimeoutError{Retries: s.p.Retries}
		}
		return nil, fmt.Errorf("fetching N26 transactions: %w", err)
	}
	return txns, nil
}
