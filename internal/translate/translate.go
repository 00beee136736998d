package translate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/n26-ynab/bridge/internal/model"
	"github.com/n26-ynab/bridge/internal/ynab"
)

// provisionalTypes are N26 type codes for holds/authorizations. The bank later
// replaces these with permanent records carrying different IDs, so pushing them
// would create duplicates in YNAB that import_id matching cannot catch.
var provisionalTypes = map[string]struct{}{
	"AA": {},
	"AE": {},
	"AV": {},
}

var milliunits = decimal.NewFromInt(1000)

// MalformedRecordError reports a source record missing a required field.
type MalformedRecordError struct {
	ID    string
	Field string
}

func (e *MalformedRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed source transaction: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed source transaction %s: missing %s", e.ID, e.Field)
}

// Filter removes provisional transactions, preserving the order of the rest.
func Filter(txns []model.Transaction) []model.Transaction {
	kept := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if _, provisional := provisionalTypes[t.Type]; provisional {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// Translate maps one source transaction onto the YNAB schema for accountID.
//
// The source ID doubles as the import_id, which is what lets YNAB suppress
// duplicates when the same record is pushed on a later run. Amounts move from
// major currency units to milliunits, truncated toward zero. The visible
// timestamp (milliseconds) becomes a local calendar date.
func Translate(t model.Transaction, accountID string) (ynab.Transaction, error) {
	if t.ID == "" {
		return ynab.Transaction{}, &MalformedRecordError{Field: "id"}
	}
	if t.VisibleTS == 0 {
		return ynab.Transaction{}, &MalformedRecordError{ID: t.ID, Field: "visibleTS"}
	}

	out := ynab.Transaction{
		ID:        t.ID,
		ImportID:  t.ID,
		AccountID: accountID,
		Date:      time.UnixMilli(t.VisibleTS).Format("2006-01-02"),
		Amount:    t.Amount.Mul(milliunits).IntPart(),
		Cleared:   ynab.ClearedUncleared,
		Approved:  false,
		Deleted:   false,
	}
	if t.HasMerchant() {
		name := t.MerchantName
		out.PayeeName = &name
	}
	return out, nil
}

// TranslateAll maps a whole batch, failing on the first malformed record.
func TranslateAll(txns []model.Transaction, accountID string) ([]ynab.Transaction, error) {
	out := make([]ynab.Transaction, 0, len(txns))
	for i, t := range txns {
		yt, err := Translate(t, accountID)
		if err != nil {
			return nil, fmt.Errorf("translating transaction %d: %w", i, err)
		}
		out = append(out, yt)
	}
	return out, nil
}
