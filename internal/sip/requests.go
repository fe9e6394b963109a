package sip

import "time"

// Command is the two digit message identifier leading every wire message.
type Command string

const (
	CommandPatronStatusRequest Command = "23"
	CommandCheckout            Command = "11"
	CommandCheckin             Command = "09"
	CommandItemInformation     Command = "17"
	CommandPatronInformation   Command = "63"
	CommandEndPatronSession    Command = "35"
	CommandFeePaid             Command = "37"
	CommandRenew               Command = "29"
	CommandRenewAll            Command = "65"
	CommandSCStatus            Command = "99"
	CommandLogin               Command = "93"
)

// Request objects are immutable value objects, one per wire command, created
// by the parser and consumed exactly once by a repository method.

type Checkin struct {
	NoBlock          bool
	TransactionDate  time.Time
	ReturnDate       time.Time
	CurrentLocation  string
	InstitutionID    string
	ItemIdentifier   string
	TerminalPassword string
	ItemProperties   string
	Cancel           bool
}

type Checkout struct {
	SCRenewalPolicy  bool
	NoBlock          bool
	TransactionDate  time.Time
	NBDueDate        time.Time
	InstitutionID    string
	PatronIdentifier string
	ItemIdentifier   string
	TerminalPassword string
	ItemProperties   string
	PatronPassword   string
	FeeAcknowledged  bool
	Cancel           bool
}

type Renew struct {
	ThirdPartyAllowed bool
	NoBlock           bool
	TransactionDate   time.Time
	NBDueDate         time.Time
	InstitutionID     string
	PatronIdentifier  string
	PatronPassword    string
	ItemIdentifier    string
	TitleIdentifier   string
	TerminalPassword  string
	ItemProperties    string
	FeeAcknowledged   bool
}

type RenewAll struct {
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	PatronPassword   string
	TerminalPassword string
	FeeAcknowledged  bool
}

type PatronStatusRequest struct {
	Language         string
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	TerminalPassword string
	PatronPassword   string
}

type PatronInformation struct {
	Language         string
	TransactionDate  time.Time
	Summary          Summary
	InstitutionID    string
	PatronIdentifier string
	TerminalPassword string
	PatronPassword   string
	// StartItem and EndItem are 1-based inclusive bounds; nil means the
	// terminal did not constrain the page.
	StartItem *int
	EndItem   *int
}

type EndPatronSession struct {
	TransactionDate  time.Time
	InstitutionID    string
	PatronIdentifier string
	TerminalPassword string
	PatronPassword   string
}

type FeePaid struct {
	TransactionDate  time.Time
	FeeType          string
	PaymentType      string
	CurrencyType     string
	FeeAmount        string
	InstitutionID    string
	PatronIdentifier string
	TerminalPassword string
	PatronPassword   string
	FeeIdentifier    string
	TransactionID    string
}

type ItemInformation struct {
	TransactionDate  time.Time
	InstitutionID    string
	ItemIdentifier   string
	TerminalPassword string
}

type SCStatus struct {
	StatusCode      int
	MaxPrintWidth   *int
	ProtocolVersion string
}

type Login struct {
	UIDAlgorithm  byte
	PWDAlgorithm  byte
	LoginUserID   string
	LoginPassword string
	LocationCode  string
}
