package patient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/platform/form"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

// Store keeps the whole patient collection as one JSON array under
// keystore.KeyPatients. Every call reads the array, and every mutation
// writes the full array back before returning.
type Store struct {
	mu    sync.Mutex
	kv    keystore.Store
	key   string
	newID func() string
	now   func() time.Time
}

type StoreOption func(*Store)

// WithIDGenerator replaces the default time-ordered UUIDs.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) { s.now = fn }
}

func NewStore(kv keystore.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:    kv,
		key:   keystore.KeyPatients,
		newID: NewID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a time-ordered UUIDv7, falling back to a random v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) load(ctx context.Context) ([]*Patient, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return []*Patient{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	var list []*Patient
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}
	if list == nil {
		list = []*Patient{}
	}
	return list, nil
}

func (s *Store) save(ctx context.Context, list []*Patient) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func indexOf(list []*Patient, id string) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// uniqueID draws ids until one is unused in list.
func (s *Store) uniqueID(list []*Patient) string {
	for {
		id := s.newID()
		if id != "" && indexOf(list, id) < 0 {
			return id
		}
	}
}

func (s *Store) List(ctx context.Context) ([]*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil, notFound(id)
	}
	return list[i], nil
}

func (s *Store) Create(ctx context.Context, fields PatientFields) (*Patient, error) {
	if err := form.Check(fields); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Patient{
		ID:            s.uniqueID(list),
		PatientFields: fields,
		Consultations: []Consultation{},
		Documents:     []Document{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.save(ctx, append(list, p)); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the editable fields and keeps id and sub-records.
func (s *Store) Update(ctx context.Context, id string, fields PatientFields) (*Patient, error) {
	if err := form.Check(fields); err != nil {
		return nil, err
	}
	return s.Mutate(ctx, id, func(p *Patient) error {
		p.PatientFields = fields
		return nil
	})
}

func (s *Store) Mutate(ctx context.Context, id string, fn func(p *Patient) error) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil, notFound(id)
	}

	p := list[i]
	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID = id
	p.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return notFound(id)
	}
	list = append(list[:i], list[i+1:]...)
	return s.save(ctx, list)
}
