package models

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Descriptor is an opaque biometric feature vector produced by an extractor.
type Descriptor []float64

// Validate rejects empty vectors and non-finite components.
func (d Descriptor) Validate() error {
	if len(d) == 0 {
		return dErrors.New(dErrors.CodeValidation, "descriptor is empty")
	}
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dErrors.New(dErrors.CodeValidation, "descriptor contains non-finite values")
		}
	}
	return nil
}

// Sample is one captured descriptor plus its provenance.
type Sample struct {
	Pose       Pose       `json:"pose"`
	Descriptor Descriptor `json:"descriptor"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Status of a profile.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusUsable     Status = "usable"
)

// Profile is a participant's enrolled reference samples.
//
// Invariants:
//   - at most one sample per pose
//   - every descriptor has the same dimension
//   - samples are only appended while collecting
//   - Version increments on every reset
type Profile struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Samples       []Sample             `json:"samples"`
	Status        Status               `json:"status"`
	Version       int                  `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	FinalizedAt   *time.Time           `json:"finalized_at,omitempty"`
}

// NewProfile starts an empty, unusable profile.
func NewProfile(participantID domain.ParticipantID, now time.Time) (*Profile, error) {
	if participantID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant id cannot be empty")
	}
	return &Profile{
		ParticipantID: participantID,
		Status:        StatusCollecting,
		Version:       1,
		CreatedAt:     now,
	}, nil
}

// Dimension is the shared descriptor length, or 0 before the first sample.
func (p *Profile) Dimension() int {
	if len(p.Samples) == 0 {
		return 0
	}
	return len(p.Samples[0].Descriptor)
}

// HasPose reports whether a sample for pose was captured.
func (p *Profile) HasPose(pose Pose) bool {
	return slices.ContainsFunc(p.Samples, func(s Sample) bool { return s.Pose == pose })
}

// MissingPoses lists required poses not yet captured, in prompt order.
func (p *Profile) MissingPoses() []Pose {
	var missing []Pose
	for _, pose := range RequiredPoses {
		if !p.HasPose(pose) {
			missing = append(missing, pose)
		}
	}
	return missing
}

// IsUsable reports whether the profile may be offered for matching.
func (p *Profile) IsUsable(minSamples int) bool {
	return p.Status == StatusUsable && len(p.Samples) >= minSamples && len(p.MissingPoses()) == 0
}

// HasProgress reports whether resetting would discard anything.
func (p *Profile) HasProgress() bool {
	return p.Status == StatusUsable || len(p.Samples) > 0
}

// CanAddSample checks a capture can be appended.
func (p *Profile) CanAddSample(pose Pose, d Descriptor) error {
	if p.Status != StatusCollecting {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "profile is finalized; begin a new enrollment to recapture").
			With("participant_id", p.ParticipantID.String())
	}
	if p.HasPose(pose) {
		return dErrors.New(dErrors.CodeConflict, "pose already captured").With("pose", pose.String())
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if dim := p.Dimension(); dim != 0 && len(d) != dim {
		return dErrors.New(dErrors.CodeValidation, "descriptor dimension does not match profile").
			With("expected", strconv.Itoa(dim)).
			With("got", strconv.Itoa(len(d)))
	}
	return nil
}

// ApplySample appends a capture. Call CanAddSample first.
func (p *Profile) ApplySample(s Sample) {
	s.Descriptor = slices.Clone(s.Descriptor)
	p.Samples = append(p.Samples, s)
}

// CanFinalize requires every pose and at least minSamples samples.
// Finalizing an already usable profile is allowed and changes nothing.
func (p *Profile) CanFinalize(minSamples int) error {
	if p.Status == StatusUsable {
		return nil
	}
	missing := p.MissingPoses()
	if len(missing) > 0 || len(p.Samples) < minSamples {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = m.String()
		}
		return dErrors.New(dErrors.CodeIncompleteEnrollment, "enrollment is missing required poses").
			With("missing_poses", strings.Join(names, ",")).
			With("captured", strconv.Itoa(len(p.Samples)))
	}
	return nil
}

// ApplyFinalize marks the profile usable. Call CanFinalize first.
func (p *Profile) ApplyFinalize(now time.Time) {
	if p.Status == StatusUsable {
		return
	}
	p.Status = StatusUsable
	p.FinalizedAt = &now
}

// ApplyReset discards all samples and starts a new version.
func (p *Profile) ApplyReset(now time.Time) {
	p.Samples = nil
	p.Status = StatusCollecting
	p.Version++
	p.CreatedAt = now
	p.FinalizedAt = nil
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Samples = make([]Sample, len(p.Samples))
	for i, s := range p.Samples {
		s.Descriptor = slices.Clone(s.Descriptor)
		c.Samples[i] = s
	}
	if p.FinalizedAt != nil {
		t := *p.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}
