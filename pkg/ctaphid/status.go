package ctaphid

import "fmt"

// statusKind tags which range a Status byte fell into.
type statusKind int

const (
	statusStandard statusKind = iota
	statusExtension
	statusVendor
	statusRetired
	statusUnknown
)

// Status is the classified form of a CTAP2 status byte. It localizes the
// range checks spec §4.8 describes: a byte is either one of the enumerated
// standard codes, an extension-range code, a vendor-range code, a retired
// code kept around for compatibility, or genuinely unspecified.
type Status struct {
	kind statusKind
	code StatusCode
	raw  byte
}

// Code returns the standard StatusCode. Only meaningful when Standard.
func (s Status) Code() StatusCode { return s.code }

// Raw returns the untranslated status byte, for any kind.
func (s Status) Raw() byte { return s.raw }

func (s Status) IsStandard() bool  { return s.kind == statusStandard }
func (s Status) IsExtension() bool { return s.kind == statusExtension }
func (s Status) IsVendor() bool    { return s.kind == statusVendor }
func (s Status) IsRetired() bool   { return s.kind == statusRetired }
func (s Status) IsUnknown() bool   { return s.kind == statusUnknown }

// IsSuccess reports whether this is the standard OK status.
func (s Status) IsSuccess() bool {
	return s.kind == statusStandard && s.code == CTAP2_OK
}

func (s Status) String() string {
	switch s.kind {
	case statusStandard:
		return s.code.String()
	case statusExtension:
		return fmt.Sprintf("extension-specific(0x%02x)", s.raw)
	case statusVendor:
		return fmt.Sprintf("vendor-specific(0x%02x)", s.raw)
	case statusRetired:
		return fmt.Sprintf("retired(0x%02x)", s.raw)
	default:
		return fmt.Sprintf("unspecified(0x%02x)", s.raw)
	}
}

var knownStandardCodes = map[StatusCode]struct{}{
	CTAP2_OK:                           {},
	CTAP1_ERR_INVALID_COMMAND:          {},
	CTAP1_ERR_INVALID_PARAMETER:        {},
	CTAP1_ERR_INVALID_LENGTH:           {},
	CTAP1_ERR_INVALID_SEQ:              {},
	CTAP1_ERR_TIMEOUT:                  {},
	CTAP1_ERR_CHANNEL_BUSY:             {},
	CTAP1_ERR_LOCK_REQUIRED:            {},
	CTAP1_ERR_INVALID_CHANNEL:          {},
	CTAP2_ERR_CBOR_UNEXPECTED_TYPE:     {},
	CTAP2_ERR_INVALID_CBOR:             {},
	CTAP2_ERR_MISSING_PARAMETER:        {},
	CTAP2_ERR_LIMIT_EXCEEDED:           {},
	CTAP2_ERR_UNSUPPORTED_EXTENSION:    {},
	CTAP2_ERR_FP_DATABASE_FULL:         {},
	CTAP2_ERR_LARGE_BLOB_STORAGE_FULL:  {},
	CTAP2_ERR_CREDENTIAL_EXCLUDED:      {},
	CTAP2_ERR_PROCESSING:               {},
	CTAP2_ERR_INVALID_CREDENTIAL:       {},
	CTAP2_ERR_USER_ACTION_PENDING:      {},
	CTAP2_ERR_OPERATION_PENDING:        {},
	CTAP2_ERR_NO_OPERATIONS:            {},
	CTAP2_ERR_UNSUPPORTED_ALGORITHM:    {},
	CTAP2_ERR_OPERATION_DENIED:         {},
	CTAP2_ERR_KEY_STORE_FULL:           {},
	CTAP2_ERR_NO_OPERATION_PENDING:     {},
	CTAP2_ERR_UNSUPPORTED_OPTION:       {},
	CTAP2_ERR_INVALID_OPTION:           {},
	CTAP2_ERR_KEEPALIVE_CANCEL:         {},
	CTAP2_ERR_NO_CREDENTIALS:           {},
	CTAP2_ERR_USER_ACTION_TIMEOUT:      {},
	CTAP2_ERR_NOT_ALLOWED:              {},
	CTAP2_ERR_PIN_INVALID:              {},
	CTAP2_ERR_PIN_BLOCKED:              {},
	CTAP2_ERR_PIN_AUTH_INVALID:         {},
	CTAP2_ERR_PIN_AUTH_BLOCKED:         {},
	CTAP2_ERR_PIN_NOT_SET:              {},
	CTAP2_ERR_PIN_REQUIRED:             {},
	CTAP2_ERR_PIN_POLICY_VIOLATION:     {},
	CTAP2_ERR_PIN_TOKEN_EXPIRED:        {},
	CTAP2_ERR_REQUEST_TOO_LARGE:        {},
	CTAP2_ERR_ACTION_TIMEOUT:           {},
	CTAP2_ERR_UP_REQUIRED:              {},
	CTAP2_ERR_UV_BLOCKED:               {},
	CTAP1_ERR_OTHER:                    {},
}

var retiredCodes = map[StatusCode]struct{}{
	CTAP2_ERR_CBOR_PARSING_REMOVED:      {},
	CTAP2_ERR_INVALID_CBOR_TYPE_REMOVED: {},
}

// ClassifyStatus implements spec §4.8. It never returns an error: an
// unspecified byte (not standard, not in any range, not retired) is a
// device-conformance failure and is reported via the returned Status's
// IsUnknown marker so the caller can escalate: Session.CBOR is the one
// place that turns this into the spec-mandated fatal assertion (a panic).
func ClassifyStatus(b byte) Status {
	code := StatusCode(b)

	if _, ok := retiredCodes[code]; ok {
		return Status{kind: statusRetired, code: code, raw: b}
	}
	if _, ok := knownStandardCodes[code]; ok {
		return Status{kind: statusStandard, code: code, raw: b}
	}
	if code >= statusExtensionFirst && code <= statusExtensionLast {
		return Status{kind: statusExtension, raw: b}
	}
	if code >= statusVendorFirst && code <= statusVendorLast {
		return Status{kind: statusVendor, raw: b}
	}
	return Status{kind: statusUnknown, raw: b}
}
