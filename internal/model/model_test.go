package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name, file, contentType string
		want                    bool
	}{
		{"declared pdf", "report.bin", "application/pdf", true},
		{"declared with params", "a.pdf", "application/pdf; charset=binary", true},
		{"declared text wins over extension", "a.pdf", "text/plain", false},
		{"extension fallback", "Guide.PDF", "", true},
		{"extension fallback non pdf", "notes.txt", "", false},
		{"malformed content type", "a.pdf", ";;", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.file, tt.contentType); got != tt.want {
				t.Errorf("IsPDF(%q, %q) = %v, want %v", tt.file, tt.contentType, got, tt.want)
			}
		})
	}
}

func TestLocalTime_ParsesBackendFormats(t *testing.T) {
	inputs := []string{
		`"2024-05-01T09:30:00.123456"`,
		`"2024-05-01T09:30:00"`,
		`"2024-05-01 09:30:00"`,
	}
	for _, in := range inputs {
		var lt LocalTime
		if err := json.Unmarshal([]byte(in), &lt); err != nil {
			t.Fatalf("Unmarshal(%s): %v", in, err)
		}
		out, _ := json.Marshal(lt)
		if string(out) != `"2024-05-01 09:30:00"` {
			t.Errorf("round trip of %s = %s", in, out)
		}
	}

	var lt LocalTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &lt); err != nil || !lt.Time().IsZero() {
		t.Errorf("unrecognised time = %v, %v", lt.Time(), err)
	}
	if err := json.Unmarshal([]byte(`null`), &lt); err != nil || !lt.Time().IsZero() {
		t.Errorf("null time = %v, %v", lt.Time(), err)
	}
	if out, _ := json.Marshal(LocalTime(time.Time{})); string(out) != `""` {
		t.Errorf("zero time marshals to %s", out)
	}
}

func TestRole(t *testing.T) {
	if Role("doctor").Valid() || Role("").Valid() {
		t.Error("unknown role reported as valid")
	}
	for _, r := range []Role{RolePatient, RoleVisitor, RoleStaff, RoleAdmin} {
		if !r.Valid() {
			t.Errorf("%s reported as invalid", r)
		}
		if r.RequiresProfile() == r.Privileged() {
			t.Errorf("%s: RequiresProfile and Privileged must differ", r)
		}
	}
}

func TestAppointmentTransitions(t *testing.T) {
	if next, ok := ActionAccept.Result(); !ok || next != AppointmentAccepted {
		t.Errorf("accept -> %s, %v", next, ok)
	}
	if next, ok := ActionReject.Result(); !ok || next != AppointmentRejected {
		t.Errorf("reject -> %s, %v", next, ok)
	}
	if _, ok := AppointmentAction("cancel").Result(); ok {
		t.Error("cancel accepted as an action")
	}
	if AppointmentPending.Terminal() || !AppointmentAccepted.Terminal() || !AppointmentRejected.Terminal() {
		t.Error("terminal statuses wrong")
	}
	if AppointmentStatus("cancelled").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestNotificationListDerivesUnread(t *testing.T) {
	list := NewNotificationList([]Notification{{ID: "1"}, {ID: "2", Read: true}, {ID: "3"}})
	if list.Unread != 2 {
		t.Errorf("Unread = %d, want 2", list.Unread)
	}
	if empty := NewNotificationList(nil); empty.Unread != 0 {
		t.Errorf("empty Unread = %d", empty.Unread)
	}
}

func TestDocumentJSONAlwaysCarriesTimestamps(t *testing.T) {
	out, err := json.Marshal(Document{Name: "policy.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"created", "updated"} {
		if string(fields[key]) != `""` {
			t.Errorf("%s = %s, want empty string", key, fields[key])
		}
	}
}
