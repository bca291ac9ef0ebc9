package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
)

// ScanResult is the value object received from one frame upload.
// It is immutable once decoded; the controller only keeps the current
// and previous result for deduplication.
type ScanResult struct {
	// CameraState is the primary classification state.
	CameraState CameraState `json:"cameraState"`

	// ResponseState is the analyzer's sub-state, if reported.
	ResponseState ResponseState `json:"geminiResponseState,omitempty"`

	// Notes is a free-text note from the classifier, shown to the user.
	Notes string `json:"notes,omitempty"`

	// IntakeStatus qualifies intake results; empty when not applicable.
	// See the Intake* constants for known values.
	IntakeStatus string `json:"intakeStatus,omitempty"`

	// UUID identifies an existing label matched by the scan.
	UUID string `json:"uuid,omitempty"`

	// TrackingNumber is the label's tracking code, when read.
	TrackingNumber string `json:"trackingNumber,omitempty"`

	// Recipient address fields, as extracted from the label.
	Name        string `json:"name,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
	Country     string `json:"country,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`

	// Deadline is the delivery deadline in RFC 3339 form, when present.
	Deadline string `json:"deadline,omitempty"`

	// ExistingLabel is true when the scan matched a label that already
	// exists, so the confirmation workflow only offers a close action.
	ExistingLabel bool `json:"existingLabel,omitempty"`

	// PendingIntake is true when the payload is waiting for the user to
	// confirm an intake submission.
	PendingIntake bool `json:"pendingIntake,omitempty"`
}

// Normalize coerces the wire states to known values. Call it once after
// decoding; the rest of the code can then rely on the enums being valid.
func (r *ScanResult) Normalize() {
	r.CameraState = ParseCameraState(string(r.CameraState))
	r.ResponseState = ParseResponseState(string(r.ResponseState))
}

// Notable reports whether the result deserves a user-visible notification.
// Plain searching results never notify; everything the user should react
// to (verification progress, background processing, errors, hits) does.
func (r *ScanResult) Notable() bool {
	switch {
	case r.IntakeStatus == IntakeAddressVerifying:
		return true
	case r.IntakeStatus == IntakeProcessing:
		return true
	case r.CameraState == StateError:
		return true
	case r.CameraState == StateFound, r.CameraState == StateScanned:
		return true
	default:
		return false
	}
}

// Busy reports whether the server is mid-analysis for this session.
// The loop stretches to its busy interval while this holds.
func (r *ScanResult) Busy() bool {
	return r.ResponseState == ResponseResponding ||
		r.IntakeStatus == IntakeProcessing ||
		r.IntakeStatus == IntakeAddressVerifying
}

// ExactDuplicate reports whether the result is a label this session has
// already recorded, carrying address data but no identifier and no
// tracking code. These get the lightweight one-click duplicate action
// instead of the full confirmation workflow.
func (r *ScanResult) ExactDuplicate() bool {
	return r.HasAddress() &&
		r.UUID == "" &&
		r.TrackingNumber == "" &&
		r.IntakeStatus == IntakeAlreadyScanned
}

// NeedsConfirmation reports whether the result must go through the
// intake confirmation workflow: a hit that is not an address duplicate
// and that either awaits intake confirmation or matched a pre-existing
// label.
func (r *ScanResult) NeedsConfirmation() bool {
	if r.CameraState != StateFound {
		return false
	}
	if r.IntakeStatus == IntakeDuplicateAddress {
		return false
	}
	return r.PendingIntake || r.ExistingLabel
}

// HasAddress reports whether the payload carries usable address data.
func (r *ScanResult) HasAddress() bool {
	return strings.TrimSpace(r.Address) != "" || strings.TrimSpace(r.City) != ""
}

// Summary returns a short human-readable description of the payload for
// the confirmation workflow: recipient and address when available, the
// tracking code as a fallback, or a placeholder.
func (r *ScanResult) Summary() string {
	if r.HasAddress() {
		parts := make([]string, 0, 4)
		if r.Name != "" {
			parts = append(parts, r.Name)
		}
		if r.Address != "" {
			parts = append(parts, r.Address)
		}
		locality := strings.Join(strings.Fields(r.City+" "+r.State+" "+r.ZipCode), " ")
		if locality != "" {
			parts = append(parts, locality)
		}
		return strings.Join(parts, ", ")
	}
	if r.TrackingNumber != "" {
		return "Tracking " + r.TrackingNumber
	}
	return "Unrecognized label"
}

// AddressKey returns a case-folded key over the address fields, used to
// detect duplicate addresses across noisy rescans of the same label.
func (r *ScanResult) AddressKey() string {
	fold := cases.Fold()
	return strings.Join([]string{
		fold.String(strings.TrimSpace(r.Address)),
		fold.String(strings.TrimSpace(r.City)),
		fold.String(strings.TrimSpace(r.State)),
		fold.String(strings.TrimSpace(r.ZipCode)),
	}, "|")
}

// DedupeKey derives a stable notification deduplication key from the
// tone plus the result's identifying fields. Two results that would
// render the same notice within the dedupe window hash to the same key.
//
// Design decision: We hash with BLAKE2b rather than concatenating the
// raw fields because the key is compared and logged on every poll and
// address lines can be long and contain separators.
func (r *ScanResult) DedupeKey(tone string) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for invalid key sizes; nil never does.
		panic(err)
	}
	for _, field := range []string{
		tone,
		string(r.CameraState),
		r.IntakeStatus,
		r.UUID,
		r.TrackingNumber,
		r.AddressKey(),
		r.Notes,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
