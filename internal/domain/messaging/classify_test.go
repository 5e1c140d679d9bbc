package messaging

import "testing"

func TestClassifyPatientWins(t *testing.T) {
	patients := map[string]bool{"s1": true}
	prePatients := map[string]bool{"s1": true, "s2": true}

	cases := []struct {
		sessionID string
		want      Kind
	}{
		{"s1", KindPatient}, // present in both, patient wins
		{"s2", KindPrePatient},
		{"s3", KindUnknown},
		{"", KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.sessionID, patients, prePatients); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.sessionID, got, tc.want)
		}
	}
}

func TestDirectoryResolve(t *testing.T) {
	dir := NewDirectory(
		[]Contact{{SessionID: "s1", Name: "Maria", Phone: "+55119"}},
		[]Contact{{SessionID: "s1", Name: "maria-lead"}, {SessionID: "s2", Name: "Lead"}},
	)

	c, kind := dir.Resolve("s1")
	if kind != KindPatient || c.Name != "Maria" {
		t.Errorf("s1 resolved to %s %q, want patient Maria", kind, c.Name)
	}

	c, kind = dir.Resolve("s2")
	if kind != KindPrePatient || c.Name != "Lead" {
		t.Errorf("s2 resolved to %s %q", kind, c.Name)
	}

	c, kind = dir.Resolve("s9")
	if kind != KindUnknown || c.Name != "s9" {
		t.Errorf("unknown session should fall back to the id, got %s %q", kind, c.Name)
	}
}

func TestDirectoryIgnoresEmptySessionIDs(t *testing.T) {
	dir := NewDirectory([]Contact{{SessionID: "", Name: "ghost"}}, nil)
	if kind := dir.Classify(""); kind != KindUnknown {
		t.Errorf("empty session id classified as %s", kind)
	}
}
