package sip

// CirculationStatus is the protocol's closed vocabulary for an item's
// circulation state, rendered as a two digit code on the wire.
type CirculationStatus int

const (
	CirculationStatusOther CirculationStatus = iota + 1
	CirculationStatusOnOrder
	CirculationStatusAvailable
	CirculationStatusCharged
	CirculationStatusChargedNotToBeRecalled
	CirculationStatusInProcess
	CirculationStatusRecalled
	CirculationStatusWaitingOnHoldShelf
	CirculationStatusInTransit
	CirculationStatusMissing
	CirculationStatusLost
	CirculationStatusClaimedReturned
)

// circulationStatusByBackend maps the backend's free text item status names to
// circulation statuses. The table is total through LookupCirculationStatus:
// any name not listed resolves to CirculationStatusOther.
var circulationStatusByBackend = map[string]CirculationStatus{
	"Available":                    CirculationStatusAvailable,
	"Awaiting pickup":              CirculationStatusWaitingOnHoldShelf,
	"Awaiting delivery":            CirculationStatusInTransit,
	"Checked out":                  CirculationStatusCharged,
	"In transit":                   CirculationStatusInTransit,
	"Paged":                        CirculationStatusRecalled,
	"On order":                     CirculationStatusOnOrder,
	"In process":                   CirculationStatusInProcess,
	"Declared lost":                CirculationStatusLost,
	"Claimed returned":             CirculationStatusClaimedReturned,
	"Lost and paid":                CirculationStatusLost,
	"Intellectual item":            CirculationStatusOther,
	"In process (non-requestable)": CirculationStatusInProcess,
	"Long missing":                 CirculationStatusMissing,
	"Missing":                      CirculationStatusMissing,
	"Unavailable":                  CirculationStatusOther,
	"Restricted":                   CirculationStatusOther,
	"Aged to lost":                 CirculationStatusLost,
}

// LookupCirculationStatus resolves a backend item status name. It never fails:
// unrecognized names map to CirculationStatusOther.
func LookupCirculationStatus(backendName string) CirculationStatus {
	if status, ok := circulationStatusByBackend[backendName]; ok {
		return status
	}
	return CirculationStatusOther
}

// PatronStatus identifies one bit of the fourteen character patron status
// block. The order matches the wire layout.
type PatronStatus int

const (
	ChargePrivilegesDenied PatronStatus = iota
	RenewalPrivilegesDenied
	RecallPrivilegesDenied
	HoldPrivilegesDenied
	CardReportedLost
	TooManyItemsCharged
	TooManyItemsOverdue
	TooManyRenewals
	TooManyClaimsOfItemsReturned
	TooManyItemsLost
	ExcessiveOutstandingFines
	ExcessiveOutstandingFees
	RecallOverdue
	TooManyItemsBilled

	patronStatusCount = 14
)

// PatronStatusSet is a bit set over the fourteen patron status flags.
type PatronStatusSet uint16

func (s PatronStatusSet) Has(status PatronStatus) bool {
	return s&(1<<uint(status)) != 0
}

func (s PatronStatusSet) With(statuses ...PatronStatus) PatronStatusSet {
	for _, status := range statuses {
		s |= 1 << uint(status)
	}
	return s
}

func (s PatronStatusSet) Empty() bool {
	return s == 0
}

// AllPatronStatuses returns the set with every flag raised, used for blocked
// and invalid patrons.
func AllPatronStatuses() PatronStatusSet {
	return PatronStatusSet(1<<patronStatusCount - 1)
}

// Summary selects which count category of a patron information response also
// carries an itemized list.
type Summary int

const (
	SummaryNone Summary = iota
	SummaryHoldItems
	SummaryOverdueItems
	SummaryChargedItems
	SummaryFineItems
	SummaryRecallItems
	SummaryUnavailableHolds
)

// summaryPositions maps the character position within the ten character
// summary slot of a patron information command to a category.
var summaryPositions = [...]Summary{
	SummaryHoldItems,
	SummaryOverdueItems,
	SummaryChargedItems,
	SummaryFineItems,
	SummaryRecallItems,
	SummaryUnavailableHolds,
}

// RequestStatus is the backend's request (hold) status vocabulary.
type RequestStatus int

const (
	RequestStatusNone RequestStatus = iota
	RequestStatusOpenNotYetFilled
	RequestStatusOpenAwaitingPickup
	RequestStatusOpenInTransit
	RequestStatusOpenAwaitingDelivery
	RequestStatusClosedFilled
	RequestStatusClosedCancelled
	RequestStatusClosedUnfilled
	RequestStatusClosedPickupExpired
)

var requestStatusValues = map[RequestStatus]string{
	RequestStatusNone:                 "",
	RequestStatusOpenNotYetFilled:     "Open - Not yet filled",
	RequestStatusOpenAwaitingPickup:   "Open - Awaiting pickup",
	RequestStatusOpenInTransit:        "Open - In transit",
	RequestStatusOpenAwaitingDelivery: "Open - Awaiting delivery",
	RequestStatusClosedFilled:         "Closed - Filled",
	RequestStatusClosedCancelled:      "Closed - Cancelled",
	RequestStatusClosedUnfilled:       "Closed - Unfilled",
	RequestStatusClosedPickupExpired:  "Closed - Pickup expired",
}

// Value returns the backend's string form of the request status.
func (s RequestStatus) Value() string {
	return requestStatusValues[s]
}

// Language codes as sent in the three character language slot.
const (
	LanguageUnknown = "000"
	LanguageEnglish = "001"
)

// Backend item status name for checked out items, needed by the item
// information chain to decide whether a loan lookup applies.
const ItemStatusCheckedOut = "Checked out"
