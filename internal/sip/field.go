package sip

// Field is a two character SIP2 variable field identifier.
type Field string

// Variable field identifiers used by the commands this gateway speaks.
// Identifiers not listed here are tolerated on input and reported as
// FieldUnknown so a chatty terminal cannot take the connection down.
const (
	FieldUnknown Field = "??"

	FieldInstitutionID        Field = "AO"
	FieldPatronIdentifier     Field = "AA"
	FieldItemIdentifier       Field = "AB"
	FieldTerminalPassword     Field = "AC"
	FieldPatronPassword       Field = "AD"
	FieldPersonalName         Field = "AE"
	FieldScreenMessage        Field = "AF"
	FieldPrintLine            Field = "AG"
	FieldDueDate              Field = "AH"
	FieldTitleIdentifier      Field = "AJ"
	FieldLibraryName          Field = "AM"
	FieldTerminalLocation     Field = "AN"
	FieldCurrentLocation      Field = "AP"
	FieldPermanentLocation    Field = "AQ"
	FieldHoldItems            Field = "AS"
	FieldOverdueItems         Field = "AT"
	FieldChargedItems         Field = "AU"
	FieldFineItems            Field = "AV"
	FieldHomeAddress          Field = "BD"
	FieldEmailAddress         Field = "BE"
	FieldHomePhoneNumber      Field = "BF"
	FieldOwner                Field = "BG"
	FieldCurrencyType         Field = "BH"
	FieldCancel               Field = "BI"
	FieldTransactionID        Field = "BK"
	FieldValidPatron          Field = "BL"
	FieldRenewedItems         Field = "BM"
	FieldUnrenewedItems       Field = "BN"
	FieldFeeAcknowledged      Field = "BO"
	FieldStartItem            Field = "BP"
	FieldEndItem              Field = "BQ"
	FieldFeeType              Field = "BT"
	FieldRecallItems          Field = "BU"
	FieldFeeAmount            Field = "BV"
	FieldSupportedMessages    Field = "BX"
	FieldHoldItemsLimit       Field = "BZ"
	FieldOverdueItemsLimit    Field = "CA"
	FieldChargedItemsLimit    Field = "CB"
	FieldFeeLimit             Field = "CC"
	FieldUnavailableHoldItems Field = "CD"
	FieldHoldQueueLength      Field = "CF"
	FieldFeeIdentifier        Field = "CG"
	FieldItemProperties       Field = "CH"
	FieldSecurityInhibit      Field = "CI"
	FieldRecallDate           Field = "CJ"
	FieldMediaType            Field = "CK"
	FieldSortBin              Field = "CL"
	FieldHoldPickupDate       Field = "CM"
	FieldLoginUserID          Field = "CN"
	FieldLoginPassword        Field = "CO"
	FieldLocationCode         Field = "CP"
	FieldValidPatronPassword  Field = "CQ"
	FieldHoldPatronID         Field = "CY"
	FieldHoldPatronName       Field = "DA"
	FieldSequenceNumber       Field = "AY"
	FieldChecksum             Field = "AZ"
	FieldPatronBirthDate      Field = "PB"
	FieldPatronClass          Field = "PC"
)

var knownFields = map[Field]struct{}{
	FieldInstitutionID: {}, FieldPatronIdentifier: {}, FieldItemIdentifier: {},
	FieldTerminalPassword: {}, FieldPatronPassword: {}, FieldPersonalName: {},
	FieldScreenMessage: {}, FieldPrintLine: {}, FieldDueDate: {},
	FieldTitleIdentifier: {}, FieldLibraryName: {}, FieldTerminalLocation: {},
	FieldCurrentLocation: {}, FieldPermanentLocation: {}, FieldHoldItems: {},
	FieldOverdueItems: {}, FieldChargedItems: {}, FieldFineItems: {},
	FieldHomeAddress: {}, FieldEmailAddress: {}, FieldHomePhoneNumber: {},
	FieldOwner: {}, FieldCurrencyType: {}, FieldCancel: {}, FieldTransactionID: {},
	FieldValidPatron: {}, FieldRenewedItems: {}, FieldUnrenewedItems: {},
	FieldFeeAcknowledged: {}, FieldStartItem: {}, FieldEndItem: {},
	FieldFeeType: {}, FieldRecallItems: {}, FieldFeeAmount: {},
	FieldSupportedMessages: {}, FieldHoldItemsLimit: {}, FieldOverdueItemsLimit: {},
	FieldChargedItemsLimit: {}, FieldFeeLimit: {}, FieldUnavailableHoldItems: {},
	FieldHoldQueueLength: {}, FieldFeeIdentifier: {}, FieldItemProperties: {},
	FieldSecurityInhibit: {}, FieldRecallDate: {}, FieldMediaType: {},
	FieldSortBin: {}, FieldHoldPickupDate: {}, FieldLoginUserID: {},
	FieldLoginPassword: {}, FieldLocationCode: {}, FieldValidPatronPassword: {},
	FieldHoldPatronID: {}, FieldHoldPatronName: {}, FieldSequenceNumber: {},
	FieldChecksum: {}, FieldPatronBirthDate: {}, FieldPatronClass: {},
}

// FindField resolves a two character identifier to a known field, or
// FieldUnknown when the identifier is not one this gateway understands.
func FindField(identifier string) Field {
	f := Field(identifier)
	if _, ok := knownFields[f]; ok {
		return f
	}
	return FieldUnknown
}
