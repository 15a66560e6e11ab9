package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Status is the pass/fail outcome of one evaluated candidate.
type Status int

const (
	StatusFailure Status = iota
	StatusSuccess
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "Success":
		*s = StatusSuccess
	case "Failure":
		*s = StatusFailure
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// ReasonCode is one member of the closed set of outcome reasons.
type ReasonCode int

const (
	ReasonInvalidData ReasonCode = iota + 1
	ReasonConvergenceFailure
	ReasonVoltageViolation
	ReasonLoadingViolation
	ReasonBatteryOversized
)

// AllReasons lists every reason code in canonical order.
var AllReasons = []ReasonCode{
	ReasonInvalidData,
	ReasonConvergenceFailure,
	ReasonVoltageViolation,
	ReasonLoadingViolation,
	ReasonBatteryOversized,
}

func (r ReasonCode) String() string {
	switch r {
	case ReasonInvalidData:
		return "InvalidData"
	case ReasonConvergenceFailure:
		return "ConvergenceFailure"
	case ReasonVoltageViolation:
		return "VoltageViolation"
	case ReasonLoadingViolation:
		return "LoadingViolation"
	case ReasonBatteryOversized:
		return "BatteryOversized"
	default:
		return "unknown"
	}
}

// Disqualifying reports whether the code prevents a Success status.
// BatteryOversized is advisory only.
func (r ReasonCode) Disqualifying() bool {
	return r != ReasonBatteryOversized
}

// ParseReasonCode converts a name back into a ReasonCode.
func ParseReasonCode(s string) (ReasonCode, error) {
	for _, r := range AllReasons {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reason code %q", s)
}

// MarshalText encodes the code as its name.
func (r ReasonCode) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a code name.
func (r *ReasonCode) UnmarshalText(b []byte) error {
	code, err := ParseReasonCode(string(b))
	if err != nil {
		return err
	}
	*r = code
	return nil
}

// ReasonSet is an unordered set of reason codes.
type ReasonSet map[ReasonCode]struct{}

// NewReasonSet builds a set from codes.
func NewReasonSet(codes ...ReasonCode) ReasonSet {
	s := make(ReasonSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a code.
func (s ReasonSet) Add(c ReasonCode) { s[c] = struct{}{} }

// Has reports membership.
func (s ReasonSet) Has(c ReasonCode) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the codes in canonical order.
func (s ReasonSet) Sorted() []ReasonCode {
	out := make([]ReasonCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ReasonSet) String() string {
	codes := s.Sorted()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, " & ")
}

// MarshalJSON encodes the set as a sorted list of names.
func (s ReasonSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a list of names.
func (s *ReasonSet) UnmarshalJSON(b []byte) error {
	var codes []ReasonCode
	if err := json.Unmarshal(b, &codes); err != nil {
		return err
	}
	*s = NewReasonSet(codes...)
	return nil
}

// Verdict is the classification of one DER run.
type Verdict struct {
	Status  Status    `json:"status"`
	Reasons ReasonSet `json:"reason_codes"`
}

// NewVerdict derives the status from the reason codes: Success iff no
// disqualifying code is present.
func NewVerdict(reasons ReasonSet) Verdict {
	if reasons == nil {
		reasons = ReasonSet{}
	}
	status := StatusSuccess
	for c := range reasons {
		if c.Disqualifying() {
			status = StatusFailure
			break
		}
	}
	return Verdict{Status: status, Reasons: reasons}
}

// Feasible reports whether the candidate satisfied every constraint.
func (v Verdict) Feasible() bool { return v.Status == StatusSuccess }

// Minimal reports whether the candidate is feasible and not oversized.
func (v Verdict) Minimal() bool {
	return v.Feasible() && !v.Reasons.Has(ReasonBatteryOversized)
}

func (v Verdict) String() string {
	if len(v.Reasons) == 0 {
		return v.Status.String()
	}
	return fmt.Sprintf("%s (%s)", v.Status, v.Reasons)
}
