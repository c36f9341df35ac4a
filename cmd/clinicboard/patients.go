package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinicboard/clinicboard/internal/domain/patient"
	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/form"
	"github.com/clinicboard/clinicboard/internal/platform/listview"
	"github.com/clinicboard/clinicboard/pkg/pagination"
)

// fieldFlag maps a command-line flag onto a form field.
type fieldFlag struct {
	flag, field, usage string
}

var patientFlags = []fieldFlag{
	{"name", "name", "Full name (required)"},
	{"email", "email", "Email address"},
	{"phone", "phone", "Phone number"},
	{"dob", "date_of_birth", "Date of birth, YYYY-MM-DD"},
	{"address", "address", "Postal address"},
	{"history", "medical_history", "Medical history notes"},
	{"last-visit", "last_visit", "Last visit date"},
	{"next-appointment", "next_appointment", "Next appointment date"},
}

var consultationFlags = []fieldFlag{
	{"date", "date", "Consultation date (required)"},
	{"start", "start_time", "Start time, HH:MM"},
	{"end", "end_time", "End time, HH:MM"},
	{"location", "location", "Where it took place"},
	{"diagnosis", "diagnosis_codes", "Comma-separated diagnosis codes"},
	{"procedure", "procedure_codes", "Comma-separated procedure codes"},
	{"signer", "signer_name", "Signing clinician (required)"},
	{"signature", "signature", "Signature"},
	{"share", "share_note_with", "Share the note with"},
	{"notes", "notes", "Free-text notes"},
}

func addFieldFlags(cmd *cobra.Command, flags []fieldFlag) {
	for _, f := range flags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
}

// fieldSetter is the Set half of a form.
type fieldSetter interface {
	Set(field, value string) error
}

// applyFieldFlags copies every flag given on the command line into the form.
func applyFieldFlags(cmd *cobra.Command, flags []fieldFlag, f fieldSetter) error {
	for _, ff := range flags {
		if !cmd.Flags().Changed(ff.flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(ff.flag)
		if err := f.Set(ff.field, v); err != nil {
			return err
		}
	}
	return nil
}

func validPageSize(n int) bool {
	for _, s := range pagination.PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patients",
		Aliases: []string{"patient"},
		Short:   "List, view, add, edit and delete patients",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List patients, optionally filtered by name",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, _ []string) error {
			search, _ := cmd.Flags().GetString("search")
			page, _ := cmd.Flags().GetInt("page")
			size, _ := cmd.Flags().GetInt("page-size")
			if !validPageSize(size) {
				return fmt.Errorf("page size must be one of %v", pagination.PageSizes)
			}

			all, err := env.repo.List(ctx)
			if err != nil {
				return err
			}
			matched := listview.Filter(all, search, func(p *patient.Patient) string { return p.Name })
			pg := listview.Paginate(matched, size, page-1)

			printPatients(env.out, pg.Items)
			fmt.Fprintf(env.out, "Page %d of %d (%d patients)\n", pg.Index+1, pg.PageCount(), pg.Total)
			return nil
		}),
	}
	list.Flags().StringP("search", "s", "", "Case-insensitive name filter")
	list.Flags().Int("page", 1, "Page number, starting at 1")
	list.Flags().Int("page-size", pagination.PageSizes[1], fmt.Sprintf("Rows per page, one of %v", pagination.PageSizes))
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "view ID",
		Short: "Show one patient",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, args []string) error {
			p, err := env.dispatcher(false).OnView(ctx, args[0])
			if err != nil {
				return err
			}
			printPatient(env.out, p)
			return nil
		}),
	})

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, _ []string) error {
			f := patient.NewCreateForm(env.repo)
			if err := applyFieldFlags(cmd, patientFlags, f); err != nil {
				return err
			}
			p, err := env.dispatcher(false).OnSave(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "ID: %s\n", p.ID)
			return nil
		}),
	}
	addFieldFlags(add, patientFlags)
	cmd.AddCommand(add)

	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a patient; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			d := env.dispatcher(false)
			f, err := d.OnEdit(ctx, args[0])
			if err != nil {
				return err
			}
			if err := applyFieldFlags(cmd, patientFlags, f); err != nil {
				return err
			}
			p, err := d.OnSave(ctx, f)
			if err != nil {
				return err
			}
			printPatient(env.out, p)
			return nil
		}),
	}
	addFieldFlags(edit, patientFlags)
	cmd.AddCommand(edit)

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a patient after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			_, err := env.dispatcher(yes).OnDelete(ctx, args[0])
			return err
		}),
	}
	del.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(del)

	return cmd
}

func consultationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consultations",
		Short: "Consultation history of a patient",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list PATIENT_ID",
		Short: "List consultations",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, args []string) error {
			cs, err := env.repo.ListConsultations(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTIME\tMINUTES\tLOCATION\tSIGNED BY")
			for _, c := range cs {
				fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%d\t%s\t%s\n", c.ID, c.Date, c.StartTime, c.EndTime, c.DurationMinutes, c.Location, c.SignerName)
			}
			return tw.Flush()
		}),
	})

	add := &cobra.Command{
		Use:   "add PATIENT_ID",
		Short: "Record a consultation",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			return submitConsultation(ctx, env, cmd, args[0], nil)
		}),
	}
	addFieldFlags(add, consultationFlags)
	cmd.AddCommand(add)

	edit := &cobra.Command{
		Use:   "edit PATIENT_ID CONSULTATION_ID",
		Short: "Change a consultation; omitted flags keep their value",
		Args:  cobra.ExactArgs(2),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			cs, err := env.repo.ListConsultations(ctx, args[0])
			if err != nil {
				return err
			}
			for i := range cs {
				if cs[i].ID == args[1] {
					return submitConsultation(ctx, env, cmd, args[0], &cs[i])
				}
			}
			return &patient.NotFoundError{Entity: "consultation", ID: args[1]}
		}),
	}
	addFieldFlags(edit, consultationFlags)
	cmd.AddCommand(edit)

	return cmd
}

func submitConsultation(ctx context.Context, env *clientEnv, cmd *cobra.Command, patientID string, seed *patient.Consultation) error {
	f := patient.NewConsultationForm(env.repo, patientID, seed)
	if err := applyFieldFlags(cmd, consultationFlags, f); err != nil {
		return err
	}
	c, err := f.Submit(ctx)
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		env.notices().Notify(patient.RequiredFieldsMessage, feedback.SeverityWarning)
		return err
	case err != nil:
		env.notices().Notify(patient.MsgPersistenceFail, feedback.SeverityError)
		return err
	}
	msg := patient.MsgConsultationAdded
	if seed != nil {
		msg = patient.MsgConsultationUpdated
	}
	env.notices().Notify(msg, feedback.SeveritySuccess)
	fmt.Fprintf(env.out, "ID: %s (%d minutes)\n", c.ID, c.DurationMinutes)
	return nil
}

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Documents attached to a patient",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list PATIENT_ID",
		Short: "List documents",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, args []string) error {
			docs, err := env.repo.ListDocuments(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, d.SizeLabel(), d.UploadedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		}),
	})

	upload := &cobra.Command{
		Use:   "upload PATIENT_ID FILE",
		Short: "Attach a PDF, image or Word document",
		Args:  cobra.ExactArgs(2),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			path := args[1]
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			doc, err := env.repo.UploadDocument(ctx, args[0], name, filepath.Base(path), contentType, file)
			if err != nil {
				return err
			}
			env.notices().Notify(patient.MsgDocumentUploaded, feedback.SeveritySuccess)
			fmt.Fprintf(env.out, "ID: %s (%s, %s)\n", doc.ID, doc.Type, doc.SizeLabel())
			return nil
		}),
	}
	upload.Flags().String("name", "", "Display name (defaults to the file name)")
	cmd.AddCommand(upload)

	download := &cobra.Command{
		Use:   "download PATIENT_ID DOCUMENT_ID",
		Short: "Save a document's content",
		Args:  cobra.ExactArgs(2),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			rc, _, err := env.repo.OpenDocument(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			defer rc.Close()

			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				_, err = io.Copy(env.out, rc)
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, rc); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}),
	}
	download.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	cmd.AddCommand(download)

	del := &cobra.Command{
		Use:   "delete PATIENT_ID DOCUMENT_ID",
		Short: "Remove a document after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			ok, err := env.confirmer(yes).Confirm(ctx, "Are you sure you want to delete this document?")
			if err != nil || !ok {
				return err
			}
			if err := env.repo.DeleteDocument(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.notices().Notify(patient.MsgDocumentDeleted, feedback.SeveritySuccess)
			return nil
		}),
	}
	del.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(del)

	return cmd
}

func printPatients(w io.Writer, rows []*patient.Patient) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tLAST VISIT\tNEXT APPOINTMENT")
	for _, p := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Email, p.Phone, p.LastVisit, p.NextAppointment)
	}
	tw.Flush()
}

func printPatient(w io.Writer, p *patient.Patient) {
	fmt.Fprintf(w, "ID:               %s\n", p.ID)
	fmt.Fprintf(w, "Name:             %s\n", p.Name)
	fmt.Fprintf(w, "Email:            %s\n", p.Email)
	fmt.Fprintf(w, "Phone:            %s\n", p.Phone)
	fmt.Fprintf(w, "Date of birth:    %s\n", p.DateOfBirth)
	fmt.Fprintf(w, "Address:          %s\n", p.Address)
	fmt.Fprintf(w, "Medical history:  %s\n", p.MedicalHistory)
	fmt.Fprintf(w, "Last visit:       %s\n", p.LastVisit)
	fmt.Fprintf(w, "Next appointment: %s\n", p.NextAppointment)
	fmt.Fprintf(w, "Consultations:    %d\n", len(p.Consultations))
	fmt.Fprintf(w, "Documents:        %d\n", len(p.Documents))
}
