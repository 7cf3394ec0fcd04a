package ai

import "testing"

func TestApproxTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "a", want: 1},
		{in: "abcd", want: 1},
		{in: "abcde", want: 2},
		{in: "привет мир", want: 3},
	}
	for _, tc := range cases {
		if got := approxTokens(tc.in); got != tc.want {
			t.Errorf("approxTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEstimateTokens_CountsMessageOverhead(t *testing.T) {
	// Unknown models never resolve to an encoder, so the estimate is deterministic.
	model := "not-a-real-model"
	encoders.Store(model, nil)

	got := EstimateTokens(model, []Message{
		{Role: RoleSystem, Content: "abcd"},
		{Role: RoleUser, Content: ""},
	})
	want := 2*perMessageOverhead + 1
	if got != want {
		t.Fatalf("EstimateTokens() = %d, want %d", got, want)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleSystem, RoleUser, RoleAssistant, RoleDeveloper} {
		if !ValidRole(role) {
			t.Errorf("expected %q to be valid", role)
		}
	}
	if ValidRole("tool") {
		t.Error("expected tool role to be rejected")
	}
}
