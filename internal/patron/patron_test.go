package patron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/circulation"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/feefines"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/users"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/verification"
)

type fakeCirculation struct {
	requestsByUser func(statuses []sip.RequestStatus) *circulation.RequestsPage
	loansByUser    func() *circulation.LoansPage
	overdueLoans   func() *circulation.LoansPage
	recallsByItem  func(itemID string) *circulation.RequestsPage
}

func (f *fakeCirculation) RequestsByUserID(_ context.Context, _ string,
	statuses []sip.RequestStatus, _, _ *int, _ *session.Session) *circulation.RequestsPage {
	if f.requestsByUser == nil {
		return nil
	}
	return f.requestsByUser(statuses)
}

func (f *fakeCirculation) LoansByUserID(context.Context, string, *session.Session) *circulation.LoansPage {
	if f.loansByUser == nil {
		return nil
	}
	return f.loansByUser()
}

func (f *fakeCirculation) OverdueLoansByUserID(_ context.Context, _ string, _ time.Time,
	_, _ *int, _ *session.Session) *circulation.LoansPage {
	if f.overdueLoans == nil {
		return nil
	}
	return f.overdueLoans()
}

func (f *fakeCirculation) RecallRequestsByItemID(_ context.Context, itemID string,
	_ *session.Session) *circulation.RequestsPage {
	if f.recallsByItem == nil {
		return nil
	}
	return f.recallsByItem(itemID)
}

type fakeFees struct {
	blocks   *feefines.ManualBlocksPage
	accounts *feefines.AccountsPage
}

func (f *fakeFees) ManualBlocksByUserID(context.Context, string, *session.Session) *feefines.ManualBlocksPage {
	return f.blocks
}

func (f *fakeFees) AccountsByUserID(context.Context, string, *session.Session) *feefines.AccountsPage {
	return f.accounts
}

type stubVerifier struct {
	v   verification.Verification
	err error
}

func (s *stubVerifier) Verify(context.Context, string, string,
	*session.Session) (verification.Verification, error) {
	return s.v, s.err
}

func activePatron() *users.User {
	active := true
	return &users.User{
		ID:          "u-1",
		Barcode:     "12345",
		Username:    "patron7",
		Active:      &active,
		PatronGroup: "staff",
		Personal: &users.Personal{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Email:       "ada@example.org",
			Phone:       "555-0100",
			DateOfBirth: "1990-03-04T00:00:00.000+0000",
		},
	}
}

func verifiedPatron() *stubVerifier {
	ok := true
	return &stubVerifier{v: verification.Verification{User: activePatron(), Verified: &ok}}
}

func newPatronRepo(circ CirculationReads, fees FeeReads, verifier PatronVerifier) *Repository {
	repo := NewRepository(circ, fees, verifier, zerolog.Nop())
	repo.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return repo
}

func requestPage(total int, entries ...circulation.Request) *circulation.RequestsPage {
	return &circulation.RequestsPage{Requests: entries, TotalRecords: total}
}

func request(barcode, title string) circulation.Request {
	var r circulation.Request
	r.Item.Barcode = barcode
	r.Instance.Title = title
	return r
}

func loan(itemID, barcode, dueDate, title string) circulation.Loan {
	l := circulation.Loan{ItemID: itemID, DueDate: dueDate}
	l.Item.Barcode = barcode
	l.Item.Title = title
	return l
}

func TestPatronInformation(t *testing.T) {
	circ := &fakeCirculation{
		requestsByUser: func(statuses []sip.RequestStatus) *circulation.RequestsPage {
			if len(statuses) == 1 && statuses[0] == sip.RequestStatusOpenAwaitingPickup {
				return requestPage(2, request("b-1", "Dune"))
			}
			return requestPage(1, request("b-9", "Foundation"))
		},
		loansByUser: func() *circulation.LoansPage {
			return &circulation.LoansPage{
				Loans: []circulation.Loan{
					loan("i-1", "b-2", "2024-07-01T23:59:59.000+0000", "Neuromancer"),
				},
				TotalRecords: 1,
			}
		},
		overdueLoans: func() *circulation.LoansPage {
			return &circulation.LoansPage{
				Loans: []circulation.Loan{
					loan("i-1", "b-2", "2024-06-01T23:59:59.000+0000", "Neuromancer"),
				},
				TotalRecords: 1,
			}
		},
	}
	fees := &fakeFees{accounts: &feefines.AccountsPage{
		Accounts: []feefines.Account{
			{ID: "a-1", Remaining: 7.5, FeeFineType: "Overdue fine", Title: "Dune"},
		},
		TotalRecords: 1,
	}}
	repo := newPatronRepo(circ, fees, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		Language:         "001",
		InstitutionID:    "diku",
		PatronIdentifier: "12345",
		PatronPassword:   "secret",
		Summary:          sip.SummaryHoldItems,
	}, sess)

	assert.True(t, sess.PasswordVerificationRequired)
	assert.True(t, resp.PatronStatus.Empty())
	assert.Equal(t, "001", resp.Language)
	assert.Equal(t, 2, resp.HoldItemsCount)
	assert.Equal(t, 1, resp.UnavailableHoldsCount)
	assert.Equal(t, 1, resp.OverdueItemsCount)
	assert.Equal(t, 1, resp.ChargedItemsCount)
	assert.Equal(t, 1, resp.FineItemsCount)
	assert.Equal(t, "Ada Lovelace", resp.PersonalName)
	assert.True(t, resp.ValidPatron)
	assert.True(t, resp.ValidPatronPassword)
	assert.Equal(t, "7.5", resp.FeeAmount)
	assert.Equal(t, []string{"b-1  Dune"}, resp.HoldItems)
	assert.Empty(t, resp.OverdueItems)
	assert.Empty(t, resp.FineItems)
	assert.Equal(t, "ada@example.org", resp.EmailAddress)
	assert.Equal(t, "555-0100", resp.HomePhoneNumber)
	assert.Equal(t, "19900304", resp.PatronBirthDate)
	assert.Equal(t, "staff", resp.PatronClass)
	assert.Empty(t, resp.ScreenMessage)
}

func TestPatronInformation_OverdueSummaryLines(t *testing.T) {
	circ := &fakeCirculation{
		overdueLoans: func() *circulation.LoansPage {
			return &circulation.LoansPage{
				Loans: []circulation.Loan{
					loan("i-1", "b-2", "2024-06-01T23:59:59.000+0000", "Neuromancer"),
					loan("i-2", "", "2024-06-02T23:59:59.000+0000", "No Barcode"),
				},
				TotalRecords: 2,
			}
		},
	}
	repo := newPatronRepo(circ, &fakeFees{}, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		PatronIdentifier: "12345",
		Summary:          sip.SummaryOverdueItems,
	}, sess)

	assert.Equal(t, 2, resp.OverdueItemsCount)
	// Loans without an item barcode are dropped from the itemized list.
	assert.Equal(t, []string{"b-2 2024-06-01 Neuromancer"}, resp.OverdueItems)
}

func TestPatronInformation_InvalidPatron(t *testing.T) {
	notOK := false
	verifier := &stubVerifier{v: verification.Verification{
		Verified:      &notOK,
		ErrorMessages: []string{verification.MessageInvalidPatron},
	}}
	repo := newPatronRepo(&fakeCirculation{}, &fakeFees{}, verifier)
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		InstitutionID:    "diku",
		PatronIdentifier: "nobody",
		PatronPassword:   "wrong",
	}, sess)

	assert.Equal(t, sip.AllPatronStatuses(), resp.PatronStatus)
	assert.Equal(t, sip.LanguageUnknown, resp.Language)
	assert.Equal(t, "nobody", resp.PersonalName)
	assert.False(t, resp.ValidPatron)
	assert.False(t, resp.ValidPatronPassword)
	assert.Zero(t, resp.HoldItemsCount)
	assert.Equal(t, []string{verification.MessageInvalidPatron}, resp.ScreenMessage)
}

func TestPatronInformation_TransportDegradesToInvalid(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("connection refused")}
	repo := newPatronRepo(&fakeCirculation{}, &fakeFees{}, verifier)
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		PatronIdentifier: "12345",
	}, sess)

	assert.Equal(t, sip.AllPatronStatuses(), resp.PatronStatus)
	assert.False(t, resp.ValidPatron)
}

func TestPatronInformation_BlockedPatron(t *testing.T) {
	fees := &fakeFees{blocks: &feefines.ManualBlocksPage{
		ManualBlocks: []feefines.ManualBlock{{Desc: "lost card", Borrowing: true}},
		TotalRecords: 1,
	}}
	repo := newPatronRepo(&fakeCirculation{}, fees, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		PatronIdentifier: "12345",
	}, sess)

	assert.Equal(t, sip.AllPatronStatuses(), resp.PatronStatus)
	assert.Equal(t, []string{MessageBlockedPatron}, resp.ScreenMessage)
	// The patron is still valid; only privileges are withdrawn.
	assert.True(t, resp.ValidPatron)
}

func TestPatronInformation_DegradedBranchesZeroOut(t *testing.T) {
	// Every backend read fails; the response still renders with zero counts.
	repo := newPatronRepo(&fakeCirculation{}, &fakeFees{}, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronInformation(context.Background(), sip.PatronInformation{
		PatronIdentifier: "12345",
	}, sess)

	assert.True(t, resp.PatronStatus.Empty())
	assert.True(t, resp.ValidPatron)
	assert.Zero(t, resp.HoldItemsCount)
	assert.Zero(t, resp.ChargedItemsCount)
	assert.Empty(t, resp.FeeAmount)
}

func TestRecalls(t *testing.T) {
	circ := &fakeCirculation{
		loansByUser: func() *circulation.LoansPage {
			return &circulation.LoansPage{
				Loans: []circulation.Loan{
					{ItemID: "i-1"}, {ItemID: "i-2"}, {ItemID: "i-3"},
				},
				TotalRecords: 3,
			}
		},
		recallsByItem: func(itemID string) *circulation.RequestsPage {
			switch itemID {
			case "i-1":
				return requestPage(1, request("b-1", "Neuromancer"))
			case "i-3":
				return requestPage(1, request("b-3", "Dune"))
			default:
				return requestPage(0)
			}
		},
	}
	repo := newPatronRepo(circ, &fakeFees{}, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	count, titles := repo.recalls(context.Background(), "u-1", nil, nil, sess)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Dune", "Neuromancer"}, titles)

	// Pagination slices the sorted titles, not the count.
	start, end := 2, 2
	count, titles = repo.recalls(context.Background(), "u-1", &start, &end, sess)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Neuromancer"}, titles)
}

func TestPatronStatus(t *testing.T) {
	fees := &fakeFees{
		blocks: &feefines.ManualBlocksPage{
			ManualBlocks: []feefines.ManualBlock{{Renewals: true}},
			TotalRecords: 1,
		},
		accounts: &feefines.AccountsPage{
			Accounts:     []feefines.Account{{ID: "a-1", Remaining: 2.5}},
			TotalRecords: 1,
		},
	}
	repo := newPatronRepo(&fakeCirculation{}, fees, verifiedPatron())
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronStatus(context.Background(), sip.PatronStatusRequest{
		Language:         "001",
		InstitutionID:    "diku",
		PatronIdentifier: "12345",
	}, sess)

	assert.True(t, resp.PatronStatus.Has(sip.RenewalPrivilegesDenied))
	assert.False(t, resp.PatronStatus.Has(sip.ChargePrivilegesDenied))
	assert.Equal(t, "Ada Lovelace", resp.PersonalName)
	assert.True(t, resp.ValidPatron)
	assert.Equal(t, "2.5", resp.FeeAmount)
	assert.Equal(t, []string{MessageBlockedPatron}, resp.ScreenMessage)
}

func TestPatronStatus_InvalidPatron(t *testing.T) {
	repo := newPatronRepo(&fakeCirculation{}, &fakeFees{},
		&stubVerifier{v: verification.Verification{}})
	sess := session.New("diku", '|', "UTC")

	resp := repo.PatronStatus(context.Background(), sip.PatronStatusRequest{
		PatronIdentifier: "nobody",
	}, sess)

	assert.Equal(t, sip.AllPatronStatuses(), resp.PatronStatus)
	assert.Equal(t, "nobody", resp.PersonalName)
	assert.False(t, resp.ValidPatron)
}

func TestEndPatronSession(t *testing.T) {
	tests := []struct {
		name     string
		verifier *stubVerifier
		want     bool
	}{
		{"verified", verifiedPatron(), true},
		{"no verification required", &stubVerifier{v: verification.Verification{}}, true},
		{"rejected", func() *stubVerifier {
			notOK := false
			return &stubVerifier{v: verification.Verification{Verified: &notOK}}
		}(), false},
		{"transport failure", &stubVerifier{err: errors.New("connection refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newPatronRepo(&fakeCirculation{}, &fakeFees{}, tt.verifier)
			sess := session.New("diku", '|', "UTC")

			resp := repo.EndPatronSession(context.Background(), sip.EndPatronSession{
				InstitutionID:    "diku",
				PatronIdentifier: "12345",
			}, sess)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.EndSession)
		})
	}
}

func TestBlockStatus(t *testing.T) {
	assert.True(t, blockStatus(nil).Empty())
	assert.True(t, blockStatus(&feefines.ManualBlocksPage{}).Empty())

	borrowing := &feefines.ManualBlocksPage{
		ManualBlocks: []feefines.ManualBlock{{Borrowing: true}},
		TotalRecords: 1,
	}
	assert.Equal(t, sip.AllPatronStatuses(), blockStatus(borrowing))

	narrow := &feefines.ManualBlocksPage{
		ManualBlocks: []feefines.ManualBlock{{Renewals: true}, {Requests: true}},
		TotalRecords: 2,
	}
	status := blockStatus(narrow)
	assert.True(t, status.Has(sip.RenewalPrivilegesDenied))
	assert.True(t, status.Has(sip.HoldPrivilegesDenied))
	assert.True(t, status.Has(sip.RecallPrivilegesDenied))
	assert.False(t, status.Has(sip.ChargePrivilegesDenied))
}

func TestCapCount(t *testing.T) {
	assert.Equal(t, 42, capCount(42))
	assert.Equal(t, countCap, capCount(250000))
}

func TestItemLine(t *testing.T) {
	assert.Equal(t, "b-1 2024-07-01 Dune",
		itemLine("b-1", "2024-07-01T23:59:59.000+0000", "Dune"))
	assert.Equal(t, "b-1  Dune", itemLine("b-1", "", "Dune"))
	assert.Equal(t, "b-1  Dune", itemLine("b-1", "garbage", "Dune"))
}
