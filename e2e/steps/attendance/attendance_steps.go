package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(ctx context.Context, path string, staff bool) error
	POST(ctx context.Context, path string, body any, staff bool) error
	PUT(ctx context.Context, path string, body any, staff bool) error
	GetResponseField(path string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Remember(key, value string)
	Recall(key string) string
}

const (
	keySession = "session_id"
	keyPayload = "payload"
)

// RegisterSteps registers session, check-in and ledger steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &attendanceSteps{tc: tc}

	ctx.Step(`^the instructor publishes roster "([^"]*)" for class "([^"]*)"$`, steps.publishRoster)
	ctx.Step(`^the instructor opens a session for class "([^"]*)" in "([^"]*)" mode$`, steps.openSession)
	ctx.Step(`^participant "([^"]*)" checks in with the displayed code$`, steps.checkInWithDisplayedCode)
	ctx.Step(`^participant "([^"]*)" checks in with code "([^"]*)"$`, steps.checkInWithCode)
	ctx.Step(`^the instructor marks "([^"]*)" as "([^"]*)" because "([^"]*)"$`, steps.amend)
	ctx.Step(`^the instructor closes the session$`, steps.closeSession)
	ctx.Step(`^the session should have (\d+) effective records$`, steps.effectiveRecordCount)
	ctx.Step(`^the effective outcome for "([^"]*)" should be "([^"]*)"$`, steps.effectiveOutcome)
}

type attendanceSteps struct {
	tc TestContext
}

func (s *attendanceSteps) sessionPath(suffix string) string {
	return "/sessions/" + s.tc.Recall(keySession) + suffix
}

func (s *attendanceSteps) publishRoster(ctx context.Context, members, classID string) error {
	return s.tc.PUT(ctx, "/classes/"+classID+"/roster", map[string]any{
		"participants": strings.Split(members, ","),
	}, true)
}

func (s *attendanceSteps) openSession(ctx context.Context, classID, mode string) error {
	err := s.tc.POST(ctx, "/sessions", map[string]string{
		"class_id": classID,
		"owner_id": "e2e-instructor",
		"mode":     mode,
	}, true)
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("open session: status %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	id, err := s.tc.GetResponseField("session_id")
	if err != nil {
		return err
	}
	payload, err := s.tc.GetResponseField("token.payload")
	if err != nil {
		return err
	}
	s.tc.Remember(keySession, fmt.Sprint(id))
	s.tc.Remember(keyPayload, fmt.Sprint(payload))
	return nil
}

func (s *attendanceSteps) checkInWithDisplayedCode(ctx context.Context, participant string) error {
	return s.tc.POST(ctx, s.sessionPath("/check-ins/token"), map[string]string{
		"participant_id": participant,
		"payload":        s.tc.Recall(keyPayload),
	}, false)
}

func (s *attendanceSteps) checkInWithCode(ctx context.Context, participant, code string) error {
	return s.tc.POST(ctx, s.sessionPath("/check-ins/token"), map[string]string{
		"participant_id": participant,
		"token_value":    code,
	}, false)
}

func (s *attendanceSteps) amend(ctx context.Context, participant, outcome, reason string) error {
	return s.tc.POST(ctx, s.sessionPath("/records/"+participant+"/amend"), map[string]string{
		"outcome": outcome,
		"reason":  reason,
	}, true)
}

func (s *attendanceSteps) closeSession(ctx context.Context) error {
	return s.tc.POST(ctx, s.sessionPath("/close"), nil, true)
}

func (s *attendanceSteps) effectiveRecords(ctx context.Context) ([]map[string]any, error) {
	if err := s.tc.GET(ctx, s.sessionPath("/records?view=effective"), true); err != nil {
		return nil, err
	}
	raw, err := s.tc.GetResponseField("records")
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("records is not a list: %s", s.tc.GetLastResponseBody())
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *attendanceSteps) effectiveRecordCount(ctx context.Context, want int) error {
	recs, err := s.effectiveRecords(ctx)
	if err != nil {
		return err
	}
	if len(recs) != want {
		return fmt.Errorf("expected %d effective records, got %d", want, len(recs))
	}
	return nil
}

func (s *attendanceSteps) effectiveOutcome(ctx context.Context, participant, want string) error {
	recs, err := s.effectiveRecords(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec["participant_id"] == participant {
			if got := fmt.Sprint(rec["outcome"]); got != want {
				return fmt.Errorf("%s: expected outcome %q, got %q", participant, want, got)
			}
			return nil
		}
	}
	return fmt.Errorf("no effective record for %s", participant)
}
