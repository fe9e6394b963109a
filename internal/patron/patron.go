// Package patron assembles the patron information, patron status and end
// session responses. One command fans out independent backend lookups, each
// branch fills its own slice of an accumulator, and a single reducer builds
// the immutable response after every branch has joined.
package patron

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/circulation"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/feefines"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/users"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/verification"
)

// MessageBlockedPatron is shown whenever manual blocks raise any status bit.
const MessageBlockedPatron = "There are unresolved issues with your account. " +
	"Please see a staff member for assistance."

// countCap bounds every reported count; the wire slot is four digits.
const countCap = 9999

// CirculationReads is the slice of the circulation repository the patron
// commands consume.
type CirculationReads interface {
	RequestsByUserID(ctx context.Context, userID string, statuses []sip.RequestStatus,
		startItem, endItem *int, sess *session.Session) *circulation.RequestsPage
	LoansByUserID(ctx context.Context, userID string, sess *session.Session) *circulation.LoansPage
	OverdueLoansByUserID(ctx context.Context, userID string, dueDate time.Time,
		startItem, endItem *int, sess *session.Session) *circulation.LoansPage
	RecallRequestsByItemID(ctx context.Context, itemID string,
		sess *session.Session) *circulation.RequestsPage
}

// FeeReads is the slice of the fee/fines repository the patron commands
// consume.
type FeeReads interface {
	ManualBlocksByUserID(ctx context.Context, userID string,
		sess *session.Session) *feefines.ManualBlocksPage
	AccountsByUserID(ctx context.Context, userID string,
		sess *session.Session) *feefines.AccountsPage
}

// PatronVerifier runs the credential gate.
type PatronVerifier interface {
	Verify(ctx context.Context, identifier, password string,
		sess *session.Session) (verification.Verification, error)
}

// Repository serves the patron-facing wire commands.
type Repository struct {
	circulation CirculationReads
	feefines    FeeReads
	verifier    PatronVerifier
	now         func() time.Time
	log         zerolog.Logger
}

func NewRepository(circ CirculationReads, fees FeeReads, verifier PatronVerifier,
	log zerolog.Logger) *Repository {
	return &Repository{
		circulation: circ,
		feefines:    fees,
		verifier:    verifier,
		now:         time.Now,
		log:         log.With().Str("component", "patron").Logger(),
	}
}

// accumulator collects branch results during the patron information fan-out.
// Each branch writes only its own fields, so the goroutines never contend.
type accumulator struct {
	status         sip.PatronStatusSet
	blockedMessage []string

	holdCount        int
	holdItems        []string
	unavailableCount int
	unavailableItems []string
	overdueCount     int
	overdueItems     []string
	chargedCount     int
	chargedItems     []string
	recallCount      int
	recallItems      []string

	feeAmount string
	fineCount int
	fineItems []string
}

// PatronInformation answers the patron information command.
func (r *Repository) PatronInformation(ctx context.Context, info sip.PatronInformation,
	sess *session.Session) *sip.PatronInformationResponse {
	sess.PasswordVerificationRequired = true

	v, err := r.verifier.Verify(ctx, info.PatronIdentifier, info.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("patron information verification degraded")
		return r.invalidPatronInformation(info)
	}
	if !v.OK() || v.User == nil || !v.User.IsActive() || v.User.ID == "" {
		return r.invalidPatronInformation(info)
	}

	user := v.User
	acc := r.gather(ctx, user.ID, info.Summary, info.StartItem, info.EndItem, sess)

	response := &sip.PatronInformationResponse{
		PatronStatus:          acc.status,
		Language:              info.Language,
		TransactionDate:       r.now(),
		HoldItemsCount:        acc.holdCount,
		OverdueItemsCount:     acc.overdueCount,
		ChargedItemsCount:     acc.chargedCount,
		FineItemsCount:        acc.fineCount,
		RecallItemsCount:      acc.recallCount,
		UnavailableHoldsCount: acc.unavailableCount,
		InstitutionID:         info.InstitutionID,
		PatronIdentifier:      info.PatronIdentifier,
		PersonalName:          personalName(user, info.PatronIdentifier),
		ValidPatron:           true,
		ValidPatronPassword:   v.OK(),
		FeeAmount:             acc.feeAmount,
		HoldItems:             acc.holdItems,
		OverdueItems:          acc.overdueItems,
		ChargedItems:          acc.chargedItems,
		FineItems:             acc.fineItems,
		RecallItems:           acc.recallItems,
		UnavailableHoldItems:  acc.unavailableItems,
		HomeAddress:           user.HomeAddress(),
		PatronClass:           user.PatronGroup,
		ScreenMessage:         acc.blockedMessage,
	}
	if user.Personal != nil {
		response.EmailAddress = user.Personal.Email
		response.HomePhoneNumber = user.Personal.Phone
		response.PatronBirthDate = birthDate(user.Personal.DateOfBirth)
	}
	return response
}

// gather runs the seven-way fan-out. A failed branch leaves its accumulator
// fields zeroed; the reducer never sees an error.
func (r *Repository) gather(ctx context.Context, userID string, summary sip.Summary,
	startItem, endItem *int, sess *session.Session) *accumulator {
	acc := &accumulator{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		blocks := r.feefines.ManualBlocksByUserID(ctx, userID, sess)
		acc.status = blockStatus(blocks)
		if !acc.status.Empty() {
			acc.blockedMessage = []string{MessageBlockedPatron}
		}
		return nil
	})

	g.Go(func() error {
		holds := r.circulation.RequestsByUserID(ctx, userID,
			[]sip.RequestStatus{sip.RequestStatusOpenAwaitingPickup},
			startItem, endItem, sess)
		if holds != nil {
			acc.holdCount = capCount(holds.TotalRecords)
			if summary == sip.SummaryHoldItems {
				acc.holdItems = requestLines(holds.Requests)
			}
		}
		return nil
	})

	g.Go(func() error {
		holds := r.circulation.RequestsByUserID(ctx, userID,
			[]sip.RequestStatus{
				sip.RequestStatusOpenNotYetFilled,
				sip.RequestStatusOpenAwaitingDelivery,
				sip.RequestStatusOpenInTransit,
			},
			startItem, endItem, sess)
		if holds != nil {
			acc.unavailableCount = capCount(holds.TotalRecords)
			if summary == sip.SummaryUnavailableHolds {
				acc.unavailableItems = requestLines(holds.Requests)
			}
		}
		return nil
	})

	g.Go(func() error {
		overdue := r.circulation.OverdueLoansByUserID(ctx, userID, r.now(),
			startItem, endItem, sess)
		if overdue != nil {
			acc.overdueCount = capCount(overdue.TotalRecords)
			if summary == sip.SummaryOverdueItems {
				acc.overdueItems = loanLines(overdue.Loans)
			}
		}
		return nil
	})

	g.Go(func() error {
		loans := r.circulation.LoansByUserID(ctx, userID, sess)
		if loans != nil {
			acc.chargedCount = capCount(loans.TotalRecords)
			if summary == sip.SummaryChargedItems {
				acc.chargedItems = loanLines(loans.Loans)
			}
		}
		return nil
	})

	g.Go(func() error {
		count, items := r.recalls(ctx, userID, startItem, endItem, sess)
		acc.recallCount = capCount(count)
		if summary == sip.SummaryRecallItems {
			acc.recallItems = items
		}
		return nil
	})

	g.Go(func() error {
		accounts := r.feefines.AccountsByUserID(ctx, userID, sess)
		if accounts != nil {
			acc.feeAmount = feefines.FormatTotal(accounts.Total())
			acc.fineCount = capCount(len(accounts.Accounts))
			if summary == sip.SummaryFineItems {
				acc.fineItems = accounts.FineItems()
			}
		}
		return nil
	})

	// branches degrade internally and never return an error
	_ = g.Wait()
	return acc
}

// recalls queries every open loan's item for recall requests. The count is
// the number of items with at least one hit; the itemized list carries each
// hit's first title, sorted, with protocol pagination applied.
func (r *Repository) recalls(ctx context.Context, userID string, startItem, endItem *int,
	sess *session.Session) (int, []string) {
	loans := r.circulation.LoansByUserID(ctx, userID, sess)
	if loans == nil {
		return 0, nil
	}

	titles := make([]string, 0, len(loans.Loans))
	g, ctx := errgroup.WithContext(ctx)
	hits := make([]*circulation.RequestsPage, len(loans.Loans))
	for i, loan := range loans.Loans {
		i, loan := i, loan
		g.Go(func() error {
			hits[i] = r.circulation.RecallRequestsByItemID(ctx, loan.ItemID, sess)
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, page := range hits {
		if page == nil || page.TotalRecords == 0 || len(page.Requests) == 0 {
			continue
		}
		count++
		titles = append(titles, page.Requests[0].Instance.Title)
	}

	sort.Strings(titles)
	skip := 0
	if startItem != nil {
		skip = *startItem - 1
	}
	maxSize := countCap
	if endItem != nil {
		maxSize = *endItem - skip
	}
	if skip > len(titles) {
		skip = len(titles)
	}
	titles = titles[skip:]
	if len(titles) > maxSize {
		titles = titles[:maxSize]
	}
	return count, titles
}

// PatronStatus answers the patron status command: personal data, block
// derived status bits and the fee total, without the itemized lookups.
func (r *Repository) PatronStatus(ctx context.Context, status sip.PatronStatusRequest,
	sess *session.Session) *sip.PatronStatusResponse {
	sess.PasswordVerificationRequired = true

	v, err := r.verifier.Verify(ctx, status.PatronIdentifier, status.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("patron status verification degraded")
		return r.invalidPatronStatus(status)
	}
	if !v.OK() || v.User == nil || !v.User.IsActive() || v.User.ID == "" {
		return r.invalidPatronStatus(status)
	}

	user := v.User
	response := &sip.PatronStatusResponse{
		Language:            status.Language,
		TransactionDate:     r.now(),
		InstitutionID:       status.InstitutionID,
		PatronIdentifier:    status.PatronIdentifier,
		PersonalName:        personalName(user, status.PatronIdentifier),
		ValidPatron:         true,
		ValidPatronPassword: v.OK(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		blocks := r.feefines.ManualBlocksByUserID(gctx, user.ID, sess)
		response.PatronStatus = blockStatus(blocks)
		if !response.PatronStatus.Empty() {
			response.ScreenMessage = []string{MessageBlockedPatron}
		}
		return nil
	})
	g.Go(func() error {
		if accounts := r.feefines.AccountsByUserID(gctx, user.ID, sess); accounts != nil {
			response.FeeAmount = feefines.FormatTotal(accounts.Total())
		}
		return nil
	})
	_ = g.Wait()

	return response
}

// EndPatronSession ends the patron's terminal exchange. The session ends
// unless verification explicitly failed; a missing password requirement must
// not block logout.
func (r *Repository) EndPatronSession(ctx context.Context, end sip.EndPatronSession,
	sess *session.Session) *sip.EndSessionResponse {
	endSession := true
	v, err := r.verifier.Verify(ctx, end.PatronIdentifier, end.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("end session verification degraded")
	} else if v.Verified != nil && !*v.Verified {
		endSession = false
	}

	return &sip.EndSessionResponse{
		EndSession:       endSession,
		TransactionDate:  r.now(),
		InstitutionID:    end.InstitutionID,
		PatronIdentifier: end.PatronIdentifier,
	}
}

func (r *Repository) invalidPatronInformation(info sip.PatronInformation) *sip.PatronInformationResponse {
	return &sip.PatronInformationResponse{
		PatronStatus:     sip.AllPatronStatuses(),
		Language:         sip.LanguageUnknown,
		TransactionDate:  r.now(),
		InstitutionID:    info.InstitutionID,
		PatronIdentifier: info.PatronIdentifier,
		// personal name is required on the wire; the identifier is the
		// only safe stand-in
		PersonalName:  info.PatronIdentifier,
		ScreenMessage: []string{verification.MessageInvalidPatron},
	}
}

func (r *Repository) invalidPatronStatus(status sip.PatronStatusRequest) *sip.PatronStatusResponse {
	return &sip.PatronStatusResponse{
		PatronStatus:     sip.AllPatronStatuses(),
		Language:         sip.LanguageUnknown,
		TransactionDate:  r.now(),
		InstitutionID:    status.InstitutionID,
		PatronIdentifier: status.PatronIdentifier,
		PersonalName:     status.PatronIdentifier,
		ScreenMessage:    []string{verification.MessageInvalidPatron},
	}
}

// blockStatus folds manual blocks into patron status bits: a borrowing block
// raises everything, renewal and request blocks raise their narrow bits.
func blockStatus(blocks *feefines.ManualBlocksPage) sip.PatronStatusSet {
	var status sip.PatronStatusSet
	if blocks == nil || blocks.TotalRecords == 0 {
		return status
	}
	for _, block := range blocks.ManualBlocks {
		if block.Borrowing {
			return sip.AllPatronStatuses()
		}
		if block.Renewals {
			status = status.With(sip.RenewalPrivilegesDenied)
		}
		if block.Requests {
			status = status.With(sip.HoldPrivilegesDenied, sip.RecallPrivilegesDenied)
		}
	}
	return status
}

func capCount(count int) int {
	if count > countCap {
		return countCap
	}
	return count
}

// requestLines renders "barcode due-date title" per request; requests carry
// no due date so the middle slot stays empty.
func requestLines(requests []circulation.Request) []string {
	lines := make([]string, 0, len(requests))
	for _, req := range requests {
		if req.Item.Barcode == "" {
			continue
		}
		lines = append(lines, itemLine(req.Item.Barcode, "", req.Instance.Title))
	}
	return lines
}

// loanLines renders "barcode due-date title" per loan.
func loanLines(loans []circulation.Loan) []string {
	lines := make([]string, 0, len(loans))
	for _, loan := range loans {
		if loan.Item.Barcode == "" {
			continue
		}
		lines = append(lines, itemLine(loan.Item.Barcode, loan.DueDate, loan.Item.Title))
	}
	return lines
}

func itemLine(barcode, dueDate, title string) string {
	date := ""
	if dueDate != "" {
		if t, err := sip.ParseBackendTime(dueDate); err == nil {
			date = sip.FormatDueDate(t)
		}
	}
	return barcode + " " + date + " " + title
}

func personalName(user *users.User, fallback string) string {
	if name := user.DisplayName(); name != "" {
		return name
	}
	return fallback
}

// birthDate renders the backend's timestamp as the wire's eight digit date,
// or empty when unparseable.
func birthDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := sip.ParseBackendTime(raw)
	if err != nil {
		return ""
	}
	return t.Format("20060102")
}
