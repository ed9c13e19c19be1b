package room

import (
	"testing"
	"testing/quick"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want string
	}{
		{name: "already ordered", a: "alice", b: "bob", want: "alice_bob"},
		{name: "reversed", a: "bob", b: "alice", want: "alice_bob"},
		{name: "uuids", a: "f47ac10b-58cc", b: "0b1c2d3e-aaaa", want: "0b1c2d3e-aaaa_f47ac10b-58cc"},
		{name: "same id", a: "u1", b: "u1", want: "u1_u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.a, tt.b); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestResolve_Symmetric(t *testing.T) {
	symmetric := func(a, b string) bool {
		return Resolve(a, b) == Resolve(b, a)
	}
	if err := quick.Check(symmetric, nil); err != nil {
		t.Error(err)
	}
}

func TestResolve_DistinctPairs(t *testing.T) {
	distinct := func(a, b, c, d string) bool {
		for _, id := range []string{a, b, c, d} {
			if ValidateParticipantID(id) != nil {
				return true
			}
		}
		samePair := (a == c && b == d) || (a == d && b == c)
		return (Resolve(a, b) == Resolve(c, d)) == samePair
	}
	if err := quick.Check(distinct, nil); err != nil {
		t.Error(err)
	}

	// Ids carrying the separator collide, which is why they are rejected.
	if Resolve("a_b", "c") != Resolve("a", "b_c") {
		t.Error("expected separator ids to collide")
	}
}

func TestValidateParticipantID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{id: "3f2b9c1e-1111-4a4a-9b9b-000000000001", valid: true},
		{id: "alice", valid: true},
		{id: "", valid: false},
		{id: "  ", valid: false},
		{id: "a_b", valid: false},
	}

	for _, tt := range tests {
		err := ValidateParticipantID(tt.id)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateParticipantID(%q) error = %v, want valid = %v", tt.id, err, tt.valid)
		}
	}
}
