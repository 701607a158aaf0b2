package models

import (
	dErrors "rollcall/pkg/domain-errors"
)

// Pose tags a capture with the head position it was taken in.
type Pose string

const (
	PoseFrontal    Pose = "frontal"
	PoseLeft       Pose = "left"
	PoseRight      Pose = "right"
	PoseExpression Pose = "expression"
)

// RequiredPoses is the guided capture sequence, in the order it is prompted.
var RequiredPoses = []Pose{PoseFrontal, PoseLeft, PoseRight, PoseExpression}

var instructions = map[Pose]string{
	PoseFrontal:    "Look straight ahead with your face centered in the frame",
	PoseLeft:       "Slowly turn your head to the left",
	PoseRight:      "Slowly turn your head to the right",
	PoseExpression: "Show a natural smile for the camera",
}

// ParsePose validates a pose name.
func ParsePose(s string) (Pose, error) {
	p := Pose(s)
	if _, ok := instructions[p]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown pose").With("pose", s)
	}
	return p, nil
}

// Instruction is the prompt shown to the participant for this pose.
func (p Pose) Instruction() string { return instructions[p] }

func (p Pose) String() string { return string(p) }
