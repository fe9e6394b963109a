// Package feefines covers the backend fee, fine and manual block resources
// plus the fee paid wire command.
package feefines

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/users"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/verification"
)

// defaultPaymentMethod is what bulk payments are recorded as; self-service
// terminals do not report the tender used.
const defaultPaymentMethod = "Credit Card"

// ManualBlocksPage is the backend's manual block list for one patron.
type ManualBlocksPage struct {
	ManualBlocks []ManualBlock `json:"manualblocks"`
	TotalRecords int           `json:"totalRecords"`
}

// ManualBlock is a staff-placed restriction on a patron account.
type ManualBlock struct {
	Desc      string `json:"desc"`
	Borrowing bool   `json:"borrowing"`
	Renewals  bool   `json:"renewals"`
	Requests  bool   `json:"requests"`
}

// AccountsPage is the backend's open fee/fine account list for one patron.
type AccountsPage struct {
	Accounts     []Account `json:"accounts"`
	TotalRecords int       `json:"totalRecords"`
}

// Account is one open fee or fine.
type Account struct {
	ID          string  `json:"id"`
	Remaining   float64 `json:"remaining"`
	FeeFineType string  `json:"feeFineType"`
	Title       string  `json:"title"`
}

// Total sums the remaining balance across all open accounts.
func (p *AccountsPage) Total() float64 {
	if p == nil {
		return 0
	}
	var total float64
	for _, a := range p.Accounts {
		total += a.Remaining
	}
	return total
}

// IDs collects the open account ids for a bulk payment.
func (p *AccountsPage) IDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

// FineItems renders one display line per open account:
// `<id> $<remaining> "<type>" <title>`.
func (p *AccountsPage) FineItems() []string {
	if p == nil {
		return nil
	}
	items := make([]string, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		items = append(items, fmt.Sprintf("%s %s %q %s",
			a.ID, Currency(a.Remaining), a.FeeFineType, a.Title))
	}
	return items
}

// Currency renders an amount the way terminals display money.
func Currency(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// FormatTotal renders the fee total for the BV field. The wire carries the
// bare decimal, not a currency string.
func FormatTotal(total float64) string {
	return strconv.FormatFloat(total, 'f', -1, 32)
}

// UserLookup resolves patron identifiers; satisfied by users.Repository.
type UserLookup interface {
	FindByIdentifier(ctx context.Context, identifier string, sess *session.Session) (*users.User, error)
}

// Repository reads fee state and performs payments.
type Repository struct {
	provider backend.Provider
	users    UserLookup
	now      func() time.Time
	log      zerolog.Logger
}

func NewRepository(provider backend.Provider, users UserLookup, log zerolog.Logger) *Repository {
	return &Repository{
		provider: provider,
		users:    users,
		now:      time.Now,
		log:      log.With().Str("component", "feefines").Logger(),
	}
}

// ManualBlocksByUserID returns the patron's manual blocks, nil on any
// backend failure.
func (r *Repository) ManualBlocksByUserID(ctx context.Context, userID string,
	sess *session.Session) *ManualBlocksPage {
	path := "/manualblocks?query=" + url.QueryEscape("userId=="+userID)
	page := &ManualBlocksPage{}
	if !r.retrieve(ctx, path, sess, page) {
		return nil
	}
	return page
}

// AccountsByUserID returns the patron's open fee/fine accounts, nil on any
// backend failure.
func (r *Repository) AccountsByUserID(ctx context.Context, userID string,
	sess *session.Session) *AccountsPage {
	// the double space matches the backend's stored query grammar
	path := "/accounts?query=" + url.QueryEscape("(userId=="+userID+"  and status.name==Open)")
	page := &AccountsPage{}
	if !r.retrieve(ctx, path, sess, page) {
		return nil
	}
	return page
}

// FeePaid settles the supplied amount against all open accounts of the
// patron. Overpayment is rejected before any backend write.
func (r *Repository) FeePaid(ctx context.Context, feePaid sip.FeePaid,
	sess *session.Session) *sip.FeePaidResponse {
	response := &sip.FeePaidResponse{
		TransactionDate:  r.now(),
		InstitutionID:    feePaid.InstitutionID,
		PatronIdentifier: feePaid.PatronIdentifier,
		TransactionID:    feePaid.TransactionID,
	}

	amountPaid, err := strconv.ParseFloat(feePaid.FeeAmount, 64)
	if err != nil {
		r.log.Info().Str("amount", feePaid.FeeAmount).Msg("unparseable fee amount")
		return response
	}

	user, err := r.users.FindByIdentifier(ctx, feePaid.PatronIdentifier, sess)
	if err != nil || user == nil {
		r.log.Warn().Err(err).Msg("fee paid user lookup failed")
		response.ScreenMessage = []string{verification.MessageInvalidPatron}
		return response
	}

	accounts := r.AccountsByUserID(ctx, user.ID, sess)
	if accounts == nil {
		return response
	}

	if owed := accounts.Total(); owed < amountPaid {
		response.ScreenMessage = []string{fmt.Sprintf(
			"Paid amount (%s) is more than amount owed (%s). "+
				"Please limit payment to no more than the amount owed.",
			Currency(amountPaid), Currency(owed))}
		return response
	}

	body := map[string]any{
		"amount":         feePaid.FeeAmount,
		"accountIds":     accounts.IDs(),
		"notifyPatron":   true,
		"servicePointId": sess.Location,
		"userName":       sess.Username,
		"paymentMethod":  defaultPaymentMethod,
	}

	resource, err := r.provider.Create(ctx, backend.Request{
		Path:    "/accounts-bulk/pay",
		Headers: backend.BaseHeaders(),
		Body:    body,
		Session: sess,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("bulk payment degraded")
		return response
	}
	if !resource.OK() {
		response.ScreenMessage = resource.ErrorMessages
		return response
	}

	response.PaymentAccepted = true
	return response
}

func (r *Repository) retrieve(ctx context.Context, path string,
	sess *session.Session, out any) bool {
	resource, err := r.provider.Retrieve(ctx, backend.Request{
		Path:    path,
		Headers: backend.BaseHeaders(),
		Session: sess,
	})
	if err != nil || !resource.OK() {
		r.log.Warn().Err(err).Str("path", path).Msg("feefines read degraded")
		return false
	}
	if err := resource.Decode(out); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("feefines read decode failed")
		return false
	}
	return true
}
