package patient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/clinicboard/clinicboard/internal/platform/form"
	"github.com/clinicboard/clinicboard/internal/platform/httpclient"
	"github.com/clinicboard/clinicboard/pkg/pagination"
)

// APIClient is the slice of httpclient.Client the remote repository uses.
type APIClient interface {
	Do(ctx context.Context, method, path string, in, out any) error
	Upload(ctx context.Context, path, fileField, fileName, contentType string, content io.Reader, fields map[string]string, out any) error
	Download(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// RemoteRepository is the Repository contract spoken over the REST API.
type RemoteRepository struct {
	api APIClient
}

func NewRemoteRepository(api APIClient) *RemoteRepository {
	return &RemoteRepository{api: api}
}

func patientPath(id string) string {
	return "patients/" + url.PathEscape(id)
}

// mapErr turns API errors into the store's error types.
func mapErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	var serr *httpclient.StatusError
	var terr *httpclient.TransportError
	switch {
	case errors.As(err, &serr):
		switch {
		case serr.Code == http.StatusNotFound:
			return &NotFoundError{Entity: entity, ID: id}
		case serr.Code == http.StatusBadRequest && len(serr.Fields) > 0:
			return &form.ValidationError{Fields: serr.Fields}
		case serr.Code >= 500:
			return &PersistenceError{Op: "remote", Err: err}
		}
		return err
	case errors.As(err, &terr):
		return &PersistenceError{Op: "remote", Err: err}
	}
	return err
}

// List follows next_offset through GET /patients until the last page.
func (r *RemoteRepository) List(ctx context.Context) ([]*Patient, error) {
	out := []*Patient{}
	offset := 0
	for {
		var page struct {
			Data       []*Patient `json:"data"`
			NextOffset *int       `json:"next_offset"`
		}
		path := "patients?limit=" + strconv.Itoa(pagination.MaxLimit) + "&offset=" + strconv.Itoa(offset)
		if err := r.api.Do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, mapErr(err, "patients", "")
		}
		out = append(out, page.Data...)
		if page.NextOffset == nil || len(page.Data) == 0 || *page.NextOffset <= offset {
			return out, nil
		}
		offset = *page.NextOffset
	}
}

func (r *RemoteRepository) Get(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	if err := r.api.Do(ctx, http.MethodGet, patientPath(id), nil, &p); err != nil {
		return nil, mapErr(err, "patient", id)
	}
	return &p, nil
}

func (r *RemoteRepository) Create(ctx context.Context, fields PatientFields) (*Patient, error) {
	var p Patient
	if err := r.api.Do(ctx, http.MethodPost, "patients", fields, &p); err != nil {
		return nil, mapErr(err, "patient", "")
	}
	return &p, nil
}

func (r *RemoteRepository) Update(ctx context.Context, id string, fields PatientFields) (*Patient, error) {
	var p Patient
	if err := r.api.Do(ctx, http.MethodPut, patientPath(id), fields, &p); err != nil {
		return nil, mapErr(err, "patient", id)
	}
	return &p, nil
}

func (r *RemoteRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.api.Do(ctx, http.MethodDelete, patientPath(id), nil, nil), "patient", id)
}

func (r *RemoteRepository) ListConsultations(ctx context.Context, patientID string) ([]Consultation, error) {
	var out []Consultation
	if err := r.api.Do(ctx, http.MethodGet, patientPath(patientID)+"/consultations", nil, &out); err != nil {
		return nil, mapErr(err, "patient", patientID)
	}
	return out, nil
}

func (r *RemoteRepository) AddConsultation(ctx context.Context, patientID string, fields ConsultationFields) (*Consultation, error) {
	var out Consultation
	if err := r.api.Do(ctx, http.MethodPost, patientPath(patientID)+"/consultations", fields, &out); err != nil {
		return nil, mapErr(err, "patient", patientID)
	}
	return &out, nil
}

func (r *RemoteRepository) UpdateConsultation(ctx context.Context, patientID, consultationID string, fields ConsultationFields) (*Consultation, error) {
	var out Consultation
	path := patientPath(patientID) + "/consultations/" + url.PathEscape(consultationID)
	if err := r.api.Do(ctx, http.MethodPut, path, fields, &out); err != nil {
		return nil, mapErr(err, "consultation", consultationID)
	}
	return &out, nil
}

func (r *RemoteRepository) ListDocuments(ctx context.Context, patientID string) ([]Document, error) {
	var out []Document
	if err := r.api.Do(ctx, http.MethodGet, patientPath(patientID)+"/documents", nil, &out); err != nil {
		return nil, mapErr(err, "patient", patientID)
	}
	return out, nil
}

func (r *RemoteRepository) UploadDocument(ctx context.Context, patientID, name, fileName, contentType string, content io.Reader) (*Document, error) {
	var out Document
	err := r.api.Upload(ctx, patientPath(patientID)+"/documents", "file", fileName, contentType, content,
		map[string]string{"name": name}, &out)
	if err != nil {
		return nil, mapErr(err, "patient", patientID)
	}
	return &out, nil
}

func (r *RemoteRepository) OpenDocument(ctx context.Context, patientID, documentID string) (io.ReadCloser, string, error) {
	path := patientPath(patientID) + "/documents/" + url.PathEscape(documentID) + "/content"
	rc, ct, err := r.api.Download(ctx, path)
	if err != nil {
		return nil, "", mapErr(err, "document", documentID)
	}
	return rc, ct, nil
}

func (r *RemoteRepository) DeleteDocument(ctx context.Context, patientID, documentID string) error {
	path := patientPath(patientID) + "/documents/" + url.PathEscape(documentID)
	return mapErr(r.api.Do(ctx, http.MethodDelete, path, nil, nil), "document", documentID)
}

var (
	_ Repository         = (*RemoteRepository)(nil)
	_ ConsultationWriter = (*RemoteRepository)(nil)
	_ ConsultationWriter = (*Service)(nil)
)
