package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Facade categories shared by every upstream provider.
	ReasonMissingCredential    ReasonCode = "missing_credential"
	ReasonTransportFault       ReasonCode = "transport_fault"
	ReasonUpstreamRejected     ReasonCode = "upstream_rejected"
	ReasonMalformedResponse    ReasonCode = "malformed_response"
	ReasonTranscriptionFailure ReasonCode = "transcription_failure"

	// Connection-level faults. These terminate a session.
	ReasonProtocolViolation ReasonCode = "protocol_violation"
	ReasonTransportClosed   ReasonCode = "transport_closed"
)

var descriptions = map[ReasonCode]string{
	ReasonMissingCredential:    "missing credential",
	ReasonTransportFault:       "network fault",
	ReasonUpstreamRejected:     "request rejected",
	ReasonMalformedResponse:    "malformed response",
	ReasonTranscriptionFailure: "transcription failed",
	ReasonProtocolViolation:    "protocol violation",
	ReasonTransportClosed:      "connection closed",
}

// Describe returns a short human label for a reason code.
func Describe(reason ReasonCode) string {
	if d, ok := descriptions[reason]; ok {
		return d
	}
	return "unknown error"
}
