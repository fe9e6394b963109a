package sip

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Parser decodes raw wire messages into typed request objects. It is stateless
// across messages; a scanner carries the cursor for one buffer.
type Parser struct {
	delimiter byte
	loc       *time.Location
	log       zerolog.Logger
}

// NewParser builds a parser for one connection's negotiated delimiter and the
// terminal's timezone.
func NewParser(delimiter byte, loc *time.Location, log zerolog.Logger) *Parser {
	return &Parser{
		delimiter: delimiter,
		loc:       loc,
		log:       log.With().Str("component", "sip-parser").Logger(),
	}
}

// Parse decodes a message body (terminator and error detection already
// stripped) into the matching request object.
func (p *Parser) Parse(body []byte) (Command, any, error) {
	if len(body) < 2 {
		return "", nil, fmt.Errorf("command code: %w", ErrTruncatedMessage)
	}
	command := Command(body[:2])
	s := &scanner{parser: p, buf: body, pos: 2}

	var (
		req any
		err error
	)
	switch command {
	case CommandCheckin:
		req, err = s.checkin()
	case CommandCheckout:
		req, err = s.checkout()
	case CommandRenew:
		req, err = s.renew()
	case CommandRenewAll:
		req, err = s.renewAll()
	case CommandPatronStatusRequest:
		req, err = s.patronStatus()
	case CommandPatronInformation:
		req, err = s.patronInformation()
	case CommandEndPatronSession:
		req, err = s.endPatronSession()
	case CommandFeePaid:
		req, err = s.feePaid()
	case CommandItemInformation:
		req, err = s.itemInformation()
	case CommandSCStatus:
		req, err = s.scStatus()
	case CommandLogin:
		req, err = s.login()
	default:
		return command, nil, fmt.Errorf("%w: %q", ErrUnknownCommand, string(command))
	}
	if err != nil {
		return command, nil, fmt.Errorf("parse %s: %w", command, err)
	}
	return command, req, nil
}

// scanner advances a shared cursor over one message buffer.
type scanner struct {
	parser *Parser
	buf    []byte
	pos    int
}

// fieldIdentifier reads exactly two characters. Unknown identifiers are
// tolerated and logged so an over-chatty terminal cannot kill the exchange.
func (s *scanner) fieldIdentifier() (Field, error) {
	if s.pos+2 > len(s.buf) {
		return FieldUnknown, fmt.Errorf("field identifier: %w", ErrTruncatedMessage)
	}
	identifier := string(s.buf[s.pos : s.pos+2])
	s.pos += 2

	field := FindField(identifier)
	if field == FieldUnknown {
		s.parser.log.Warn().Str("identifier", identifier).Msg("unknown field")
	}
	return field, nil
}

// variableField scans to the configured delimiter, returns the value, and
// advances the cursor past the delimiter. Running off the buffer without a
// delimiter is a framing error, unless the last consumed character was itself
// the delimiter.
func (s *scanner) variableField(field Field) (string, error) {
	start := s.pos
	for s.pos < len(s.buf) && s.buf[s.pos] != s.parser.delimiter {
		s.pos++
	}

	if s.pos == len(s.buf) {
		if s.pos == 0 || s.buf[s.pos-1] != s.parser.delimiter {
			return "", fmt.Errorf("field %s: %w", field, ErrMissingDelimiter)
		}
		return string(s.buf[start:s.pos]), nil
	}

	value := string(s.buf[start:s.pos])
	s.pos++
	return value, nil
}

// fixed reads an exact width slot.
func (s *scanner) fixed(width int) (string, error) {
	if s.pos+width > len(s.buf) {
		return "", fmt.Errorf("fixed slot of width %d: %w", width, ErrTruncatedMessage)
	}
	value := string(s.buf[s.pos : s.pos+width])
	s.pos += width
	return value, nil
}

// dateTime reads an 18 character slot. All blank slots are dummy entries from
// terminals that send no clock and map to the Unix epoch.
func (s *scanner) dateTime() (time.Time, error) {
	slot, err := s.fixed(dateTimeSlotWidth)
	if err != nil {
		return time.Time{}, err
	}
	return parseWireDateTime(slot, s.parser.loc)
}

// boolean reads a single character slot; Y/y is true, anything else false.
// There is no error case: the cursor always advances one position.
func (s *scanner) boolean() bool {
	if s.pos >= len(s.buf) {
		return false
	}
	c := s.buf[s.pos]
	s.pos++
	return c == 'Y' || c == 'y'
}

// intField converts a variable field value to an integer. Non numeric content
// is logged and yields nil, which callers must treat as absent, not zero.
func (s *scanner) intField(field Field, value string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		s.parser.log.Warn().Str("field", string(field)).Str("value", value).
			Msg("field is not a number, ignoring")
		return nil
	}
	return &n
}

func (s *scanner) checkin() (*Checkin, error) {
	req := &Checkin{}
	req.NoBlock = s.boolean()

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}
	if req.ReturnDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldCurrentLocation:
			req.CurrentLocation = value
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldItemIdentifier:
			req.ItemIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldItemProperties:
			req.ItemProperties = value
		case FieldCancel:
			req.Cancel = convertBoolean(value)
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) checkout() (*Checkout, error) {
	req := &Checkout{}
	req.SCRenewalPolicy = s.boolean()
	req.NoBlock = s.boolean()

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}
	if req.NBDueDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldItemIdentifier:
			req.ItemIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldItemProperties:
			req.ItemProperties = value
		case FieldPatronPassword:
			req.PatronPassword = value
		case FieldFeeAcknowledged:
			req.FeeAcknowledged = convertBoolean(value)
		case FieldCancel:
			req.Cancel = convertBoolean(value)
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) renew() (*Renew, error) {
	req := &Renew{}
	req.ThirdPartyAllowed = s.boolean()
	req.NoBlock = s.boolean()

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}
	if req.NBDueDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldPatronPassword:
			req.PatronPassword = value
		case FieldItemIdentifier:
			req.ItemIdentifier = value
		case FieldTitleIdentifier:
			req.TitleIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldItemProperties:
			req.ItemProperties = value
		case FieldFeeAcknowledged:
			req.FeeAcknowledged = convertBoolean(value)
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) renewAll() (*RenewAll, error) {
	req := &RenewAll{}

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldPatronPassword:
			req.PatronPassword = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldFeeAcknowledged:
			req.FeeAcknowledged = convertBoolean(value)
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) patronStatus() (*PatronStatusRequest, error) {
	req := &PatronStatusRequest{}

	var err error
	if req.Language, err = s.fixed(3); err != nil {
		return nil, err
	}
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldPatronPassword:
			req.PatronPassword = value
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) patronInformation() (*PatronInformation, error) {
	req := &PatronInformation{}

	var err error
	if req.Language, err = s.fixed(3); err != nil {
		return nil, err
	}
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}
	summary, err := s.fixed(10)
	if err != nil {
		return nil, err
	}
	req.Summary = parseSummary(summary)

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldPatronPassword:
			req.PatronPassword = value
		case FieldStartItem:
			req.StartItem = s.intField(field, value)
		case FieldEndItem:
			req.EndItem = s.intField(field, value)
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) endPatronSession() (*EndPatronSession, error) {
	req := &EndPatronSession{}

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldPatronPassword:
			req.PatronPassword = value
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) feePaid() (*FeePaid, error) {
	req := &FeePaid{}

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}
	if req.FeeType, err = s.fixed(2); err != nil {
		return nil, err
	}
	if req.PaymentType, err = s.fixed(2); err != nil {
		return nil, err
	}
	if req.CurrencyType, err = s.fixed(3); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldFeeAmount:
			req.FeeAmount = value
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldPatronIdentifier:
			req.PatronIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		case FieldPatronPassword:
			req.PatronPassword = value
		case FieldFeeIdentifier:
			req.FeeIdentifier = value
		case FieldTransactionID:
			req.TransactionID = value
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) itemInformation() (*ItemInformation, error) {
	req := &ItemInformation{}

	var err error
	if req.TransactionDate, err = s.dateTime(); err != nil {
		return nil, err
	}

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldInstitutionID:
			req.InstitutionID = value
		case FieldItemIdentifier:
			req.ItemIdentifier = value
		case FieldTerminalPassword:
			req.TerminalPassword = value
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) scStatus() (*SCStatus, error) {
	req := &SCStatus{}

	code, err := s.fixed(1)
	if err != nil {
		return nil, err
	}
	if n, convErr := strconv.Atoi(code); convErr == nil {
		req.StatusCode = n
	}
	width, err := s.fixed(3)
	if err != nil {
		return nil, err
	}
	req.MaxPrintWidth = s.intField(FieldUnknown, width)
	if req.ProtocolVersion, err = s.fixed(4); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *scanner) login() (*Login, error) {
	req := &Login{}

	algorithms, err := s.fixed(2)
	if err != nil {
		return nil, err
	}
	req.UIDAlgorithm = algorithms[0]
	req.PWDAlgorithm = algorithms[1]

	err = s.eachField(func(field Field, value string) {
		switch field {
		case FieldLoginUserID:
			req.LoginUserID = value
		case FieldLoginPassword:
			req.LoginPassword = value
		case FieldLocationCode:
			req.LocationCode = value
		}
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// eachField iterates the variable field section of the message. Unknown
// fields have their value consumed and dropped.
func (s *scanner) eachField(apply func(field Field, value string)) error {
	for s.pos < len(s.buf) {
		field, err := s.fieldIdentifier()
		if err != nil {
			return err
		}
		value, err := s.variableField(field)
		if err != nil {
			return err
		}
		apply(field, value)
	}
	return nil
}

func parseSummary(slot string) Summary {
	for i := 0; i < len(slot) && i < len(summaryPositions); i++ {
		if slot[i] == 'Y' || slot[i] == 'y' {
			return summaryPositions[i]
		}
	}
	return SummaryNone
}

func convertBoolean(value string) bool {
	return strings.EqualFold(value, "Y")
}
