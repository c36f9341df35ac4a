package patient

import (
	"context"

	"github.com/clinicboard/clinicboard/internal/platform/form"
)

// RequiredFieldsMessage is shown when a submit is missing required fields.
const RequiredFieldsMessage = "Please fill in all required fields."

type PatientForm = form.Form[PatientFields, *Patient]

type ConsultationForm = form.Form[ConsultationFields, *Consultation]

func patientSetters() map[string]form.Setter[PatientFields] {
	return map[string]form.Setter[PatientFields]{
		"name":             form.Text(func(f *PatientFields) *string { return &f.Name }),
		"email":            form.Text(func(f *PatientFields) *string { return &f.Email }),
		"phone":            form.Text(func(f *PatientFields) *string { return &f.Phone }),
		"date_of_birth":    form.Text(func(f *PatientFields) *string { return &f.DateOfBirth }),
		"address":          form.Text(func(f *PatientFields) *string { return &f.Address }),
		"medical_history":  form.Text(func(f *PatientFields) *string { return &f.MedicalHistory }),
		"last_visit":       form.Text(func(f *PatientFields) *string { return &f.LastVisit }),
		"next_appointment": form.Text(func(f *PatientFields) *string { return &f.NextAppointment }),
	}
}

// NewCreateForm starts a blank patient draft whose submit creates a record.
func NewCreateForm(repo Repository) *PatientForm {
	return form.New(form.ModeCreate, PatientFields{}, patientSetters(),
		func(ctx context.Context, draft PatientFields) (*Patient, error) {
			return repo.Create(ctx, draft)
		})
}

// NewEditForm seeds a draft from p whose submit updates p in place.
func NewEditForm(repo Repository, p *Patient) *PatientForm {
	id := p.ID
	return form.New(form.ModeEdit, p.PatientFields, patientSetters(),
		func(ctx context.Context, draft PatientFields) (*Patient, error) {
			return repo.Update(ctx, id, draft)
		})
}

// ConsultationWriter is implemented by Service and RemoteRepository.
type ConsultationWriter interface {
	AddConsultation(ctx context.Context, patientID string, fields ConsultationFields) (*Consultation, error)
	UpdateConsultation(ctx context.Context, patientID, consultationID string, fields ConsultationFields) (*Consultation, error)
}

func consultationSetters() map[string]form.Setter[ConsultationFields] {
	return map[string]form.Setter[ConsultationFields]{
		"date":            form.Text(func(f *ConsultationFields) *string { return &f.Date }),
		"start_time":      form.Text(func(f *ConsultationFields) *string { return &f.StartTime }),
		"end_time":        form.Text(func(f *ConsultationFields) *string { return &f.EndTime }),
		"location":        form.Text(func(f *ConsultationFields) *string { return &f.Location }),
		"diagnosis_codes": form.List(func(f *ConsultationFields) *[]string { return &f.DiagnosisCodes }),
		"procedure_codes": form.List(func(f *ConsultationFields) *[]string { return &f.ProcedureCodes }),
		"signer_name":     form.Text(func(f *ConsultationFields) *string { return &f.SignerName }),
		"signature":       form.Text(func(f *ConsultationFields) *string { return &f.Signature }),
		"share_note_with": form.Text(func(f *ConsultationFields) *string { return &f.ShareNoteWith }),
		"notes":           form.Text(func(f *ConsultationFields) *string { return &f.Notes }),
	}
}

// NewConsultationForm edits seed when it is non-nil and otherwise starts a
// new consultation. duration_minutes follows start_time and end_time.
func NewConsultationForm(w ConsultationWriter, patientID string, seed *Consultation) *ConsultationForm {
	mode := form.ModeCreate
	draft := ConsultationFields{}
	commit := func(ctx context.Context, d ConsultationFields) (*Consultation, error) {
		return w.AddConsultation(ctx, patientID, d)
	}
	if seed != nil {
		mode = form.ModeEdit
		draft = seed.ConsultationFields
		id := seed.ID
		commit = func(ctx context.Context, d ConsultationFields) (*Consultation, error) {
			return w.UpdateConsultation(ctx, patientID, id, d)
		}
	}
	return form.New(mode, draft, consultationSetters(), commit,
		form.WithDerive[ConsultationFields, *Consultation](deriveDuration))
}

const (
	MsgConsultationAdded   = "Consultation added successfully!"
	MsgConsultationUpdated = "Consultation updated successfully!"
	MsgDocumentUploaded    = "Document uploaded successfully"
	MsgDocumentDeleted     = "Document deleted successfully"
)
