package patient

import "context"

// Repository is the entity store contract shared by the local store, the
// cascading service and the remote API client.
type Repository interface {
	List(ctx context.Context) ([]*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, fields PatientFields) (*Patient, error)
	Update(ctx context.Context, id string, fields PatientFields) (*Patient, error)
	Delete(ctx context.Context, id string) error
}

// RecordStore can also rewrite a whole record, nested sub-records included.
type RecordStore interface {
	Repository
	Mutate(ctx context.Context, id string, fn func(p *Patient) error) (*Patient, error)
}
