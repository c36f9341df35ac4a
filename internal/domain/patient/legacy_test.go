package patient

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPatientUnmarshal_Legacy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", `{"id":"1","name":"Grace Hopper"}`, "Grace Hopper"},
		{"camel pair", `{"id":"1","firstName":"Grace","lastName":"Hopper"}`, "Grace Hopper"},
		{"snake pair", `{"id":"1","first_name":"Grace","last_name":"Hopper"}`, "Grace Hopper"},
		{"first only", `{"id":"1","firstName":"Grace"}`, "Grace"},
		{"name wins", `{"id":"1","name":"G. Hopper","firstName":"Grace","lastName":"Hopper"}`, "G. Hopper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Patient
			if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("expected name %q, got %q", tt.want, p.Name)
			}
			if p.ID != "1" {
				t.Errorf("expected id 1, got %q", p.ID)
			}
		})
	}
}

func TestConsultationUnmarshal_Legacy(t *testing.T) {
	in := `{
		"id": "1",
		"date": "2023-05-15",
		"startTime": "09:00",
		"endTime": "10:00",
		"duration": "60",
		"location": "Main Clinic",
		"icd10Codes": ["M54.5 - Low back pain"],
		"cptCode1": "97112 - Neuromuscular reeducation",
		"cptCode2": "97140 - Manual therapy",
		"otName": "Dr. Smith",
		"otSignature": "Smith, OT",
		"shareSOAPNoteTo": "Beneficiary",
		"notes": "Initial visit."
	}`
	var c Consultation
	if err := json.Unmarshal([]byte(in), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.StartTime != "09:00" || c.EndTime != "10:00" || c.DurationMinutes != 60 {
		t.Errorf("times not migrated: %+v", c.ConsultationFields)
	}
	if c.SignerName != "Dr. Smith" || c.Signature != "Smith, OT" || c.ShareNoteWith != "Beneficiary" {
		t.Errorf("signer not migrated: %+v", c.ConsultationFields)
	}
	if len(c.DiagnosisCodes) != 1 || len(c.ProcedureCodes) != 2 {
		t.Errorf("codes not migrated: %v %v", c.DiagnosisCodes, c.ProcedureCodes)
	}
}

func TestConsultationUnmarshal_DerivesMissingDuration(t *testing.T) {
	var c Consultation
	if err := json.Unmarshal([]byte(`{"id":"2","start_time":"23:30","end_time":"00:15"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.DurationMinutes != 45 {
		t.Errorf("expected derived 45, got %d", c.DurationMinutes)
	}
}

func TestDocumentUnmarshal_Legacy(t *testing.T) {
	var d Document
	in := `{"id":"1","name":"Medical History.pdf","type":"PDF","size":"2.5 MB","uploadDate":"2023-05-10","url":"#"}`
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Size != 2621440 {
		t.Errorf("expected 2.5 MB in bytes, got %d", d.Size)
	}
	if !d.UploadedAt.Equal(time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected upload date %s", d.UploadedAt)
	}

	var canonical Document
	if err := json.Unmarshal([]byte(`{"id":"2","size":1024}`), &canonical); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if canonical.Size != 1024 {
		t.Errorf("expected 1024, got %d", canonical.Size)
	}
}

func TestPatientMarshal_Canonical(t *testing.T) {
	p := Patient{ID: "1", PatientFields: PatientFields{Name: "Ada", DateOfBirth: "1815-12-10"}}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if m["name"] != "Ada" || m["date_of_birth"] != "1815-12-10" {
		t.Errorf("unexpected encoding %s", raw)
	}
	if _, ok := m["firstName"]; ok {
		t.Errorf("legacy key written: %s", raw)
	}
}
