package model

// CameraState is the classifier's primary state for a single frame.
// The polling loop maps each state to a display badge and to side effects.
//
// Design decision: We use string-backed constants rather than iota because
// the values arrive verbatim in the service's JSON responses, and string
// constants make the wire mapping obvious without a translation table.
type CameraState string

const (
	// StateSearching means no label or code was recognized in the frame.
	// This is the steady "nothing yet" state and never produces a notification.
	StateSearching CameraState = "SEARCHING"

	// StateAnalyzing means the service accepted the frame and is still
	// working on it (an analysis is in flight server-side).
	StateAnalyzing CameraState = "ANALYZING"

	// StateFound means the frame matched a label or code and the result
	// payload carries its identifying fields.
	StateFound CameraState = "FOUND"

	// StateScanned means the target was recognized but had already been
	// recorded earlier in this session or a previous one.
	StateScanned CameraState = "SCANNED"

	// StateError means the service could not process the frame.
	StateError CameraState = "ERROR"
)

// ParseCameraState maps a wire value to a CameraState.
// Unknown or empty values map to StateSearching so that a misbehaving
// server can never wedge the loop in an unrecognized state.
func ParseCameraState(s string) CameraState {
	switch CameraState(s) {
	case StateAnalyzing, StateFound, StateScanned, StateError:
		return CameraState(s)
	default:
		return StateSearching
	}
}

// DisplayName returns a human-readable label for status badges.
func (s CameraState) DisplayName() string {
	switch s {
	case StateSearching:
		return "Searching"
	case StateAnalyzing:
		return "Analyzing"
	case StateFound:
		return "Found"
	case StateScanned:
		return "Scanned"
	case StateError:
		return "Error"
	default:
		return "Searching"
	}
}

// Terminalish reports whether the state represents a hit rather than
// an ongoing search. Hits reset the idle damping counter.
func (s CameraState) Terminalish() bool {
	return s == StateFound || s == StateScanned
}

// ResponseState is the analyzer's sub-state, reported alongside the
// primary state. It distinguishes "nothing happening" from "the server
// is mid-analysis", which drives the busy polling cadence.
type ResponseState string

const (
	// ResponseIdle means no analysis is in progress.
	ResponseIdle ResponseState = "IDLE"

	// ResponseResponding means the analyzer is still producing a result.
	// The loop stretches its interval while this is reported.
	ResponseResponding ResponseState = "RESPONDING"

	// ResponseComplete means the analyzer finished for this frame.
	ResponseComplete ResponseState = "COMPLETE"

	// ResponseError means the analyzer failed for this frame.
	ResponseError ResponseState = "ERROR"
)

// ParseResponseState maps a wire value to a ResponseState.
// Unknown or empty values map to ResponseIdle.
func ParseResponseState(s string) ResponseState {
	switch ResponseState(s) {
	case ResponseResponding, ResponseComplete, ResponseError:
		return ResponseState(s)
	default:
		return ResponseIdle
	}
}

// ScanType is the kind of scan a session performs. It decides which
// side effects a FOUND result triggers and whether intake gating applies.
type ScanType string

const (
	// ScanIntake is the merchant intake flow: new labels are collected
	// and ambiguous or duplicate results go through user confirmation.
	ScanIntake ScanType = "INTAKE"

	// ScanQR is the driver flow: a QR code resolves to an existing label
	// and a hit hands the identifier off to the surrounding context.
	ScanQR ScanType = "QR_SCAN"

	// ScanRoute is the route-scanner flow: hits are reported to the
	// parent context as route scan results.
	ScanRoute ScanType = "ROUTE"
)

// ParseScanType maps a wire value to a ScanType, defaulting to ScanIntake.
func ParseScanType(s string) ScanType {
	switch ScanType(s) {
	case ScanQR, ScanRoute:
		return ScanType(s)
	default:
		return ScanIntake
	}
}

// Intake status values reported by the classification service.
// An empty string means no intake status applies to the result.
const (
	// IntakeAlreadyScanned marks a label this session already recorded.
	IntakeAlreadyScanned = "already_scanned"

	// IntakeProcessing marks a background intake analysis in progress.
	IntakeProcessing = "processing"

	// IntakeAddressVerifying marks an address verification in progress.
	IntakeAddressVerifying = "address_verifying"

	// IntakeDuplicateAddress marks a result whose address collides with
	// an existing label. These never open the confirmation workflow.
	IntakeDuplicateAddress = "duplicate_address"
)
