package protocol

import "testing"

func TestIsKnownOutcome(t *testing.T) {
	cases := []string{
		OutcomeAccepted,
		OutcomeNotVisible,
		OutcomeNoRecipe,
		OutcomeRateLimited,
		OutcomeApplyFailed,
	}
	for _, c := range cases {
		if !IsKnownOutcome(c) {
			t.Fatalf("expected known outcome: %q", c)
		}
	}
	if IsKnownOutcome("") || IsKnownOutcome("E_NOT_DEFINED") {
		t.Fatalf("expected unknown outcome rejected")
	}
}
