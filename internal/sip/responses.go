package sip

import "time"

// Response objects mirror the reply layout of each wire command. They are
// immutable once built; the patron repository assembles its responses through
// an accumulator merged by a single reducer after all backend branches join.

type CheckinResponse struct {
	OK                bool
	Resensitize       bool
	MagneticMedia     *bool
	Alert             bool
	TransactionDate   time.Time
	InstitutionID     string
	ItemIdentifier    string
	PermanentLocation string
	TitleIdentifier   string
	SortBin           string
	PatronIdentifier  string
	MediaType         string
	ItemProperties    string
	ScreenMessage     []string
	PrintLine         []string
}

type CheckoutResponse struct {
	OK               bool
	RenewalOK        bool
	MagneticMedia    *bool
	Desensitize      bool
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	ItemIdentifier   string
	TitleIdentifier  string
	DueDate          time.Time
	FeeType          string
	SecurityInhibit  *bool
	CurrencyType     string
	FeeAmount        string
	MediaType        string
	TransactionID    string
	ScreenMessage    []string
	PrintLine        []string
}

type RenewResponse struct {
	OK               bool
	RenewalOK        bool
	MagneticMedia    *bool
	Desensitize      bool
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	ItemIdentifier   string
	TitleIdentifier  string
	DueDate          time.Time
	FeeType          string
	CurrencyType     string
	FeeAmount        string
	MediaType        string
	TransactionID    string
	ScreenMessage    []string
	PrintLine        []string
}

type RenewAllResponse struct {
	OK              bool
	RenewedCount    int
	UnrenewedCount  int
	TransactionDate time.Time
	InstitutionID   string
	RenewedItems    []string
	UnrenewedItems  []string
	ScreenMessage   []string
	PrintLine       []string
}

type PatronStatusResponse struct {
	PatronStatus         PatronStatusSet
	Language             string
	TransactionDate      time.Time
	InstitutionID        string
	PatronIdentifier     string
	PersonalName         string
	ValidPatron          bool
	ValidPatronPassword  bool
	CurrencyType         string
	FeeAmount            string
	ScreenMessage        []string
	PrintLine            []string
}

type PatronInformationResponse struct {
	PatronStatus          PatronStatusSet
	Language              string
	TransactionDate       time.Time
	HoldItemsCount        int
	OverdueItemsCount     int
	ChargedItemsCount     int
	FineItemsCount        int
	RecallItemsCount      int
	UnavailableHoldsCount int
	InstitutionID         string
	PatronIdentifier      string
	PersonalName          string
	HoldItemsLimit        *int
	OverdueItemsLimit     *int
	ChargedItemsLimit     *int
	ValidPatron           bool
	ValidPatronPassword   bool
	CurrencyType          string
	FeeAmount             string
	FeeLimit              string
	HoldItems             []string
	OverdueItems          []string
	ChargedItems          []string
	FineItems             []string
	RecallItems           []string
	UnavailableHoldItems  []string
	HomeAddress           string
	EmailAddress          string
	HomePhoneNumber       string
	PatronBirthDate       string
	PatronClass           string
	ScreenMessage         []string
	PrintLine             []string
}

type EndSessionResponse struct {
	EndSession       bool
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	ScreenMessage    []string
	PrintLine        []string
}

type FeePaidResponse struct {
	PaymentAccepted  bool
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	TransactionID    string
	ScreenMessage    []string
	PrintLine        []string
}

type ItemInformationResponse struct {
	CirculationStatus CirculationStatus
	SecurityMarker    int
	FeeType           string
	TransactionDate   time.Time
	HoldQueueLength   *int
	DueDate           time.Time
	RecallDate        time.Time
	HoldPickupDate    time.Time
	ItemIdentifier    string
	TitleIdentifier   string
	Owner             string
	CurrencyType      string
	FeeAmount         string
	MediaType         string
	PermanentLocation string
	CurrentLocation   string
	ItemProperties    string
	HoldPatronID      string
	HoldPatronName    string
	ScreenMessage     []string
	PrintLine         []string
}

// SecurityMarkerNone is the only marker this gateway reports; the backend has
// no equivalent concept.
const SecurityMarkerNone = 1

type ACSStatusResponse struct {
	OnlineStatus      bool
	CheckinOK         bool
	CheckoutOK        bool
	ACSRenewalPolicy  bool
	StatusUpdateOK    bool
	OfflineOK         bool
	TimeoutPeriod     int
	RetriesAllowed    int
	DateTimeSync      time.Time
	ProtocolVersion   string
	InstitutionID     string
	LibraryName       string
	SupportedMessages string
	TerminalLocation  string
	ScreenMessage     []string
	PrintLine         []string
}

type LoginResponse struct {
	OK bool
}
