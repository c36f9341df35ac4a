package patient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/blobstore"
	"github.com/clinicboard/clinicboard/internal/platform/form"
)

// Service is the server-side Repository: it adds consultations, document
// content and the delete cascade on top of a RecordStore.
type Service struct {
	records RecordStore
	blobs   blobstore.BlobStore
	logger  zerolog.Logger
	newID   func() string
	now     func() time.Time
	docURL  func(patientID, docID string) string
}

func NewService(records RecordStore, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{
		records: records,
		blobs:   blobs,
		logger:  logger,
		newID:   NewID,
		now:     time.Now,
		docURL: func(patientID, docID string) string {
			return fmt.Sprintf("/api/v1/patients/%s/documents/%s/content", patientID, docID)
		},
	}
}

func (s *Service) List(ctx context.Context) ([]*Patient, error) {
	return s.records.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.records.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, fields PatientFields) (*Patient, error) {
	return s.records.Create(ctx, fields)
}

func (s *Service) Update(ctx context.Context, id string, fields PatientFields) (*Patient, error) {
	return s.records.Update(ctx, id, fields)
}

// Delete removes the record, then any stored document content for it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	n, err := s.blobs.DeleteByPatient(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", id).Msg("delete document content")
		return nil
	}
	if n > 0 {
		s.logger.Info().Str("patient_id", id).Int("documents", n).Msg("deleted document content")
	}
	return nil
}

func (s *Service) ListConsultations(ctx context.Context, patientID string) ([]Consultation, error) {
	p, err := s.records.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.Consultations, nil
}

func (s *Service) AddConsultation(ctx context.Context, patientID string, fields ConsultationFields) (*Consultation, error) {
	if err := form.Check(fields); err != nil {
		return nil, err
	}
	deriveDuration(&fields)

	now := s.now().UTC()
	c := Consultation{ID: s.newID(), ConsultationFields: fields, CreatedAt: now, UpdatedAt: now}
	_, err := s.records.Mutate(ctx, patientID, func(p *Patient) error {
		p.Consultations = append(p.Consultations, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) UpdateConsultation(ctx context.Context, patientID, consultationID string, fields ConsultationFields) (*Consultation, error) {
	if err := form.Check(fields); err != nil {
		return nil, err
	}
	deriveDuration(&fields)

	var out Consultation
	_, err := s.records.Mutate(ctx, patientID, func(p *Patient) error {
		i, ok := p.consultation(consultationID)
		if !ok {
			return &NotFoundError{Entity: "consultation", ID: consultationID}
		}
		p.Consultations[i].ConsultationFields = fields
		p.Consultations[i].UpdatedAt = s.now().UTC()
		out = p.Consultations[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ListDocuments(ctx context.Context, patientID string) ([]Document, error) {
	p, err := s.records.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.Documents, nil
}

// UploadDocument stores content and records its metadata on the patient.
// If the record cannot be written the stored content is removed again.
func (s *Service) UploadDocument(ctx context.Context, patientID, name, contentType string, content io.Reader) (*Document, error) {
	if _, err := s.records.Get(ctx, patientID); err != nil {
		return nil, err
	}

	meta, err := s.blobs.Put(ctx, blobstore.Metadata{
		PatientID:   patientID,
		FileName:    name,
		ContentType: contentType,
	}, content)
	if err != nil {
		if IsUploadRejected(err) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "store document", Err: err}
	}

	doc := Document{
		ID:          s.newID(),
		Name:        name,
		Type:        TypeLabel(meta.ContentType),
		ContentType: meta.ContentType,
		Size:        meta.Size,
		UploadedAt:  meta.CreatedAt,
		BlobID:      meta.ID,
	}
	doc.URL = s.docURL(patientID, doc.ID)

	_, err = s.records.Mutate(ctx, patientID, func(p *Patient) error {
		p.Documents = append(p.Documents, doc)
		return nil
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, meta.ID); derr != nil {
			s.logger.Error().Err(derr).Str("blob_id", meta.ID).Msg("remove orphaned document content")
		}
		return nil, err
	}
	return &doc, nil
}

// OpenDocument returns the document content; the caller closes it.
func (s *Service) OpenDocument(ctx context.Context, patientID, documentID string) (io.ReadCloser, *Document, error) {
	p, err := s.records.Get(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	i, ok := p.document(documentID)
	if !ok {
		return nil, nil, &NotFoundError{Entity: "document", ID: documentID}
	}
	doc := p.Documents[i]

	rc, _, err := s.blobs.Get(ctx, doc.BlobID)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, &NotFoundError{Entity: "document content", ID: documentID}
	}
	if err != nil {
		return nil, nil, &PersistenceError{Op: "read document", Err: err}
	}
	return rc, &doc, nil
}

func (s *Service) DeleteDocument(ctx context.Context, patientID, documentID string) error {
	var removed Document
	_, err := s.records.Mutate(ctx, patientID, func(p *Patient) error {
		i, ok := p.document(documentID)
		if !ok {
			return &NotFoundError{Entity: "document", ID: documentID}
		}
		removed = p.Documents[i]
		p.Documents = append(p.Documents[:i], p.Documents[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	if removed.BlobID == "" {
		return nil
	}
	if err := s.blobs.Delete(ctx, removed.BlobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Error().Err(err).Str("blob_id", removed.BlobID).Msg("delete document content")
	}
	return nil
}

// IsUploadRejected reports blob errors caused by the upload itself rather
// than by storage.
func IsUploadRejected(err error) bool {
	return errors.Is(err, blobstore.ErrInvalidContentType) ||
		errors.Is(err, blobstore.ErrMissingFileName) ||
		errors.Is(err, blobstore.ErrFileTooLarge) ||
		errors.Is(err, blobstore.ErrMissingPatient) ||
		errors.Is(err, blobstore.ErrIncompleteContent)
}

var _ Repository = (*Service)(nil)
