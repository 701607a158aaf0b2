package handler

import (
	"rollcall/internal/checkin/service"
	ledgerModels "rollcall/internal/ledger/models"
	"rollcall/internal/matching"
)

type CheckInResponse struct {
	Record    *ledgerModels.Record `json:"record"`
	Duplicate bool                 `json:"duplicate"`
}

type FaceCheckInResponse struct {
	CheckInResponse
	Score float64 `json:"score"`
}

type CloseResponse struct {
	AttendeeCount int `json:"attendee_count"`
	AbsentCount   int `json:"absent_count"`
}

func fromRecord(rec *ledgerModels.Record) CheckInResponse {
	return CheckInResponse{Record: rec, Duplicate: rec.Duplicate}
}

func fromFace(res *service.FaceResult) FaceCheckInResponse {
	out := FaceCheckInResponse{CheckInResponse: fromRecord(res.Record)}
	if res.Match.Status == matching.StatusMatched && res.Match.Best != nil {
		out.Score = res.Match.Best.Score
	}
	return out
}
