package access

import "testing"

func TestHasAccess(t *testing.T) {
	shared := &Control{
		Read:  Grant{UserIDs: []string{"alice"}, GroupIDs: []string{"research"}},
		Write: Grant{UserIDs: []string{"bob"}},
	}

	groups := func(userID string) []string {
		if userID == "carol" {
			return []string{"research", "ops"}
		}
		return nil
	}

	tests := []struct {
		name    string
		checker *ACLChecker
		userID  string
		mode    string
		control *Control
		want    bool
	}{
		{
			name:    "nil control grants read to anyone",
			checker: &ACLChecker{},
			userID:  "stranger",
			mode:    "read",
			want:    true,
		},
		{
			name:    "nil control denies write",
			checker: &ACLChecker{},
			userID:  "stranger",
			mode:    "write",
			want:    false,
		},
		{
			name:    "empty control denies read",
			checker: &ACLChecker{},
			userID:  "alice",
			mode:    "read",
			control: &Control{},
			want:    false,
		},
		{
			name:    "direct user grant",
			checker: &ACLChecker{},
			userID:  "alice",
			mode:    "read",
			control: shared,
			want:    true,
		},
		{
			name:    "read grant does not imply write",
			checker: &ACLChecker{},
			userID:  "alice",
			mode:    "write",
			control: shared,
			want:    false,
		},
		{
			name:    "write grant",
			checker: &ACLChecker{},
			userID:  "bob",
			mode:    "write",
			control: shared,
			want:    true,
		},
		{
			name:    "group grant via resolver",
			checker: &ACLChecker{Groups: groups},
			userID:  "carol",
			mode:    "read",
			control: shared,
			want:    true,
		},
		{
			name:    "group grant ignored without resolver",
			checker: &ACLChecker{},
			userID:  "carol",
			mode:    "read",
			control: shared,
			want:    false,
		},
		{
			name:    "unknown mode denied",
			checker: &ACLChecker{},
			userID:  "alice",
			mode:    "execute",
			control: shared,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker.HasAccess(tt.userID, tt.mode, tt.control); got != tt.want {
				t.Errorf("HasAccess(%q, %q) = %v, want %v", tt.userID, tt.mode, got, tt.want)
			}
		})
	}
}

func TestCallerIsAdmin(t *testing.T) {
	if (&Caller{Role: RoleUser}).IsAdmin() {
		t.Error("user role reported as admin")
	}
	if !(&Caller{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role not reported as admin")
	}
	var nilCaller *Caller
	if nilCaller.IsAdmin() {
		t.Error("nil caller reported as admin")
	}
}
