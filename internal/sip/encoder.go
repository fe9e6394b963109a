package sip

import (
	"bytes"
	"fmt"
	"time"
)

// Encoder renders typed response objects back into wire frames using the
// connection's negotiated delimiter and timezone.
type Encoder struct {
	delimiter      byte
	loc            *time.Location
	errorDetection bool
}

func NewEncoder(delimiter byte, loc *time.Location, errorDetection bool) *Encoder {
	return &Encoder{delimiter: delimiter, loc: loc, errorDetection: errorDetection}
}

// Encode renders a response frame. seq is the sequence number for the error
// detection trailer; pass a negative value to omit it. The caller appends the
// message terminator.
func (e *Encoder) Encode(resp any, seq int) ([]byte, error) {
	f := &frame{encoder: e}

	switch r := resp.(type) {
	case *CheckinResponse:
		f.checkinResponse(r)
	case *CheckoutResponse:
		f.checkoutResponse(r)
	case *RenewResponse:
		f.renewResponse(r)
	case *RenewAllResponse:
		f.renewAllResponse(r)
	case *PatronStatusResponse:
		f.patronStatusResponse(r)
	case *PatronInformationResponse:
		f.patronInformationResponse(r)
	case *EndSessionResponse:
		f.endSessionResponse(r)
	case *FeePaidResponse:
		f.feePaidResponse(r)
	case *ItemInformationResponse:
		f.itemInformationResponse(r)
	case *ACSStatusResponse:
		f.acsStatusResponse(r)
	case *LoginResponse:
		f.loginResponse(r)
	default:
		return nil, fmt.Errorf("no wire encoding for %T", resp)
	}

	out := f.buf.Bytes()
	if e.errorDetection {
		out = AppendErrorDetection(out, seq)
	}
	return out, nil
}

// Checksum computes the two's complement low byte of the sum of all bytes.
// Wire peers reject frames whose trailing checksum does not make the whole
// frame sum to zero modulo 256.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

const hexDigits = "0123456789ABCDEF"

// AppendErrorDetection appends the sequence number field (when seq >= 0) and
// the checksum field to a finished frame.
func AppendErrorDetection(msg []byte, seq int) []byte {
	if seq >= 0 {
		msg = append(msg, 'A', 'Y', byte('0'+seq%10))
	}
	msg = append(msg, 'A', 'Z')
	cs := Checksum(msg)
	return append(msg, hexDigits[cs>>4], hexDigits[cs&0x0f])
}

// VerifyFrame checks and strips the error detection trailer of an inbound
// frame, returning the bare message body. Frames without a trailer pass
// through untouched.
func VerifyFrame(body []byte) ([]byte, error) {
	if len(body) < 4 || !bytes.Equal(body[len(body)-4:len(body)-2], []byte("AZ")) {
		return body, nil
	}
	want, ok := parseHexByte(body[len(body)-2], body[len(body)-1])
	if !ok {
		return nil, ErrChecksumMismatch
	}
	if Checksum(body[:len(body)-2]) != want {
		return nil, ErrChecksumMismatch
	}
	body = body[:len(body)-4]
	// An optional sequence number field precedes the checksum.
	if len(body) >= 3 && bytes.Equal(body[len(body)-3:len(body)-1], []byte("AY")) {
		body = body[:len(body)-3]
	}
	return body, nil
}

// FrameSequence returns the sequence number carried in the frame's error
// detection trailer, or -1 when the frame has none. Responses echo the
// request's sequence number.
func FrameSequence(body []byte) int {
	if len(body) < 7 || !bytes.Equal(body[len(body)-4:len(body)-2], []byte("AZ")) {
		return -1
	}
	seq := body[len(body)-5]
	if !bytes.Equal(body[len(body)-7:len(body)-5], []byte("AY")) || seq < '0' || seq > '9' {
		return -1
	}
	return int(seq - '0')
}

func parseHexByte(hi, lo byte) (byte, bool) {
	h := bytes.IndexByte([]byte(hexDigits), upperHex(hi))
	l := bytes.IndexByte([]byte(hexDigits), upperHex(lo))
	if h < 0 || l < 0 {
		return 0, false
	}
	return byte(h<<4 | l), true
}

func upperHex(c byte) byte {
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 'A'
	}
	return c
}

// frame accumulates one outbound message.
type frame struct {
	encoder *Encoder
	buf     bytes.Buffer
}

func (f *frame) command(code Command) {
	f.buf.WriteString(string(code))
}

// okFlag renders the protocol's 0/1 acknowledge slot.
func (f *frame) okFlag(v bool) {
	if v {
		f.buf.WriteByte('1')
	} else {
		f.buf.WriteByte('0')
	}
}

func (f *frame) yn(v bool) {
	if v {
		f.buf.WriteByte('Y')
	} else {
		f.buf.WriteByte('N')
	}
}

// ynu renders a tri-state slot; nil means the gateway cannot tell.
func (f *frame) ynu(v *bool) {
	switch {
	case v == nil:
		f.buf.WriteByte('U')
	case *v:
		f.buf.WriteByte('Y')
	default:
		f.buf.WriteByte('N')
	}
}

func (f *frame) fixedInt(v, width int) {
	if v < 0 {
		v = 0
	}
	fmt.Fprintf(&f.buf, "%0*d", width, v)
}

func (f *frame) dateTime(t time.Time) {
	f.buf.WriteString(formatWireDateTime(t, f.encoder.loc))
}

func (f *frame) patronStatus(set PatronStatusSet) {
	for i := 0; i < patronStatusCount; i++ {
		if set.Has(PatronStatus(i)) {
			f.buf.WriteByte('Y')
		} else {
			f.buf.WriteByte(' ')
		}
	}
}

func (f *frame) fixedString(v string, width int) {
	for len(v) < width {
		v += " "
	}
	f.buf.WriteString(v[:width])
}

// field emits a delimiter terminated variable field.
func (f *frame) field(code Field, value string) {
	f.buf.WriteString(string(code))
	f.buf.WriteString(value)
	f.buf.WriteByte(f.encoder.delimiter)
}

// fieldOpt emits the field only when it has a value.
func (f *frame) fieldOpt(code Field, value string) {
	if value != "" {
		f.field(code, value)
	}
}

// fieldEach emits one instance of the field per value.
func (f *frame) fieldEach(code Field, values []string) {
	for _, v := range values {
		f.field(code, v)
	}
}

func (f *frame) fieldDate(code Field, t time.Time) {
	if t.IsZero() {
		return
	}
	f.field(code, formatWireDateTime(t, f.encoder.loc))
}

func (f *frame) fieldIntOpt(code Field, v *int) {
	if v != nil {
		f.field(code, fmt.Sprintf("%04d", *v))
	}
}

func (f *frame) checkinResponse(r *CheckinResponse) {
	f.command("10")
	f.okFlag(r.OK)
	f.yn(r.Resensitize)
	f.ynu(r.MagneticMedia)
	f.yn(r.Alert)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldItemIdentifier, r.ItemIdentifier)
	f.field(FieldPermanentLocation, r.PermanentLocation)
	f.fieldOpt(FieldTitleIdentifier, r.TitleIdentifier)
	f.fieldOpt(FieldSortBin, r.SortBin)
	f.fieldOpt(FieldPatronIdentifier, r.PatronIdentifier)
	f.fieldOpt(FieldMediaType, r.MediaType)
	f.fieldOpt(FieldItemProperties, r.ItemProperties)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) checkoutResponse(r *CheckoutResponse) {
	f.command("12")
	f.okFlag(r.OK)
	f.yn(r.RenewalOK)
	f.ynu(r.MagneticMedia)
	f.yn(r.Desensitize)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.field(FieldItemIdentifier, r.ItemIdentifier)
	f.field(FieldTitleIdentifier, r.TitleIdentifier)
	f.fieldDate(FieldDueDate, r.DueDate)
	f.fieldOpt(FieldFeeType, r.FeeType)
	if r.SecurityInhibit != nil {
		if *r.SecurityInhibit {
			f.field(FieldSecurityInhibit, "Y")
		} else {
			f.field(FieldSecurityInhibit, "N")
		}
	}
	f.fieldOpt(FieldCurrencyType, r.CurrencyType)
	f.fieldOpt(FieldFeeAmount, r.FeeAmount)
	f.fieldOpt(FieldMediaType, r.MediaType)
	f.fieldOpt(FieldTransactionID, r.TransactionID)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) renewResponse(r *RenewResponse) {
	f.command("30")
	f.okFlag(r.OK)
	f.yn(r.RenewalOK)
	f.ynu(r.MagneticMedia)
	f.yn(r.Desensitize)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.field(FieldItemIdentifier, r.ItemIdentifier)
	f.field(FieldTitleIdentifier, r.TitleIdentifier)
	f.fieldDate(FieldDueDate, r.DueDate)
	f.fieldOpt(FieldFeeType, r.FeeType)
	f.fieldOpt(FieldCurrencyType, r.CurrencyType)
	f.fieldOpt(FieldFeeAmount, r.FeeAmount)
	f.fieldOpt(FieldMediaType, r.MediaType)
	f.fieldOpt(FieldTransactionID, r.TransactionID)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) renewAllResponse(r *RenewAllResponse) {
	f.command("66")
	f.okFlag(r.OK)
	f.fixedInt(r.RenewedCount, 4)
	f.fixedInt(r.UnrenewedCount, 4)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.fieldEach(FieldRenewedItems, r.RenewedItems)
	f.fieldEach(FieldUnrenewedItems, r.UnrenewedItems)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) patronStatusResponse(r *PatronStatusResponse) {
	f.command("24")
	f.patronStatus(r.PatronStatus)
	f.fixedString(r.Language, 3)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.field(FieldPersonalName, r.PersonalName)
	f.field(FieldValidPatron, ynString(r.ValidPatron))
	f.field(FieldValidPatronPassword, ynString(r.ValidPatronPassword))
	f.fieldOpt(FieldCurrencyType, r.CurrencyType)
	f.fieldOpt(FieldFeeAmount, r.FeeAmount)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) patronInformationResponse(r *PatronInformationResponse) {
	f.command("64")
	f.patronStatus(r.PatronStatus)
	f.fixedString(r.Language, 3)
	f.dateTime(r.TransactionDate)
	f.fixedInt(r.HoldItemsCount, 4)
	f.fixedInt(r.OverdueItemsCount, 4)
	f.fixedInt(r.ChargedItemsCount, 4)
	f.fixedInt(r.FineItemsCount, 4)
	f.fixedInt(r.RecallItemsCount, 4)
	f.fixedInt(r.UnavailableHoldsCount, 4)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.field(FieldPersonalName, r.PersonalName)
	f.fieldIntOpt(FieldHoldItemsLimit, r.HoldItemsLimit)
	f.fieldIntOpt(FieldOverdueItemsLimit, r.OverdueItemsLimit)
	f.fieldIntOpt(FieldChargedItemsLimit, r.ChargedItemsLimit)
	f.field(FieldValidPatron, ynString(r.ValidPatron))
	f.field(FieldValidPatronPassword, ynString(r.ValidPatronPassword))
	f.fieldOpt(FieldCurrencyType, r.CurrencyType)
	f.fieldOpt(FieldFeeAmount, r.FeeAmount)
	f.fieldOpt(FieldFeeLimit, r.FeeLimit)
	f.fieldEach(FieldHoldItems, r.HoldItems)
	f.fieldEach(FieldOverdueItems, r.OverdueItems)
	f.fieldEach(FieldChargedItems, r.ChargedItems)
	f.fieldEach(FieldFineItems, r.FineItems)
	f.fieldEach(FieldRecallItems, r.RecallItems)
	f.fieldEach(FieldUnavailableHoldItems, r.UnavailableHoldItems)
	f.fieldOpt(FieldHomeAddress, r.HomeAddress)
	f.fieldOpt(FieldEmailAddress, r.EmailAddress)
	f.fieldOpt(FieldHomePhoneNumber, r.HomePhoneNumber)
	f.fieldOpt(FieldPatronBirthDate, r.PatronBirthDate)
	f.fieldOpt(FieldPatronClass, r.PatronClass)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) endSessionResponse(r *EndSessionResponse) {
	f.command("36")
	f.yn(r.EndSession)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) feePaidResponse(r *FeePaidResponse) {
	f.command("38")
	f.yn(r.PaymentAccepted)
	f.dateTime(r.TransactionDate)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.field(FieldPatronIdentifier, r.PatronIdentifier)
	f.fieldOpt(FieldTransactionID, r.TransactionID)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) itemInformationResponse(r *ItemInformationResponse) {
	f.command("18")
	f.fixedInt(int(r.CirculationStatus), 2)
	f.fixedInt(r.SecurityMarker, 2)
	feeType := r.FeeType
	if feeType == "" {
		feeType = "01"
	}
	f.fixedString(feeType, 2)
	f.dateTime(r.TransactionDate)
	f.fieldIntOpt(FieldHoldQueueLength, r.HoldQueueLength)
	f.fieldDate(FieldDueDate, r.DueDate)
	f.fieldDate(FieldRecallDate, r.RecallDate)
	f.fieldDate(FieldHoldPickupDate, r.HoldPickupDate)
	f.field(FieldItemIdentifier, r.ItemIdentifier)
	f.field(FieldTitleIdentifier, r.TitleIdentifier)
	f.fieldOpt(FieldOwner, r.Owner)
	f.fieldOpt(FieldCurrencyType, r.CurrencyType)
	f.fieldOpt(FieldFeeAmount, r.FeeAmount)
	f.fieldOpt(FieldMediaType, r.MediaType)
	f.fieldOpt(FieldPermanentLocation, r.PermanentLocation)
	f.fieldOpt(FieldCurrentLocation, r.CurrentLocation)
	f.fieldOpt(FieldItemProperties, r.ItemProperties)
	f.fieldOpt(FieldHoldPatronID, r.HoldPatronID)
	f.fieldOpt(FieldHoldPatronName, r.HoldPatronName)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) acsStatusResponse(r *ACSStatusResponse) {
	f.command("98")
	f.yn(r.OnlineStatus)
	f.yn(r.CheckinOK)
	f.yn(r.CheckoutOK)
	f.yn(r.ACSRenewalPolicy)
	f.yn(r.StatusUpdateOK)
	f.yn(r.OfflineOK)
	f.fixedInt(r.TimeoutPeriod, 3)
	f.fixedInt(r.RetriesAllowed, 3)
	f.dateTime(r.DateTimeSync)
	f.fixedString(r.ProtocolVersion, 4)
	f.field(FieldInstitutionID, r.InstitutionID)
	f.fieldOpt(FieldLibraryName, r.LibraryName)
	f.field(FieldSupportedMessages, r.SupportedMessages)
	f.fieldOpt(FieldTerminalLocation, r.TerminalLocation)
	f.fieldEach(FieldScreenMessage, r.ScreenMessage)
	f.fieldEach(FieldPrintLine, r.PrintLine)
}

func (f *frame) loginResponse(r *LoginResponse) {
	f.command("94")
	f.okFlag(r.OK)
}

func ynString(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}
