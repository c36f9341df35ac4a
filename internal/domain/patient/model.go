package patient

import (
	"fmt"
	"strings"
	"time"
)

// PatientFields are the user-editable parts of a patient record.
type PatientFields struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	DateOfBirth     string `json:"date_of_birth"`
	Address         string `json:"address,omitempty"`
	MedicalHistory  string `json:"medical_history,omitempty"`
	LastVisit       string `json:"last_visit,omitempty"`
	NextAppointment string `json:"next_appointment,omitempty"`
}

// Patient owns its consultations and documents; they are stored inside the
// record and go away with it.
type Patient struct {
	ID string `json:"id"`
	PatientFields
	Consultations []Consultation `json:"consultations"`
	Documents     []Document     `json:"documents"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (p *Patient) consultation(id string) (int, bool) {
	for i := range p.Consultations {
		if p.Consultations[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (p *Patient) document(id string) (int, bool) {
	for i := range p.Documents {
		if p.Documents[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

type ConsultationFields struct {
	Date            string   `json:"date" validate:"required"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Location        string   `json:"location"`
	DiagnosisCodes  []string `json:"diagnosis_codes"`
	ProcedureCodes  []string `json:"procedure_codes"`
	SignerName      string   `json:"signer_name" validate:"required"`
	Signature       string   `json:"signature"`
	ShareNoteWith   string   `json:"share_note_with"`
	Notes           string   `json:"notes"`
}

type Consultation struct {
	ID string `json:"id"`
	ConsultationFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	URL         string    `json:"url"`
	BlobID      string    `json:"blob_id,omitempty"`
}

// SizeLabel renders the size the way the documents list shows it.
func (d Document) SizeLabel() string {
	return fmt.Sprintf("%.2f MB", float64(d.Size)/1024/1024)
}

// TypeLabel is the upper-cased MIME subtype: application/pdf -> PDF.
func TypeLabel(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	if i := strings.LastIndex(ct, "/"); i >= 0 {
		ct = ct[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(ct))
}

// Routes the dashboard navigates between.
const RouteList = "/patients"

func ViewRoute(id string) string { return "/patients/" + id + "/view" }
func EditRoute(id string) string { return "/patients/" + id + "/edit" }

