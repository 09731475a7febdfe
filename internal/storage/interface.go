package storage

import (
	"context"

	"github.com/mcoot/wordsync/internal/model"
)

// Collection is the top-level collection holding one document per player
const Collection = "players"

// Gateway abstracts the remote document store holding player progress.
// Implementations are safe for concurrent use; each call is independent.
type Gateway interface {
	// Read returns the player's document or model.ErrDocumentNotFound
	Read(ctx context.Context, id model.PlayerID) (*model.Document, error)

	// Create stores a new document, failing with model.ErrDocumentExists if
	// one is already present
	Create(ctx context.Context, doc *model.Document) error

	// Subscribe streams the current document followed by one change per
	// committed write. The channel is closed once ctx is done.
	Subscribe(ctx context.Context, id model.PlayerID) (<-chan model.Change, error)

	// ApplyScalarUpdates writes counter fields, last write wins per field
	ApplyScalarUpdates(ctx context.Context, id model.PlayerID, fields map[model.Field]int64) error

	// ApplyAtomicBatch applies every operation or none of them. It fails with
	// model.ErrDocumentNotFound when the document does not exist.
	ApplyAtomicBatch(ctx context.Context, id model.PlayerID, ops []model.Operation) error
}

// ValidateScalarFields rejects any field that is not a plain counter
func ValidateScalarFields(fields map[model.Field]int64) error {
	for f := range fields {
		if !f.IsScalar() {
			return &FieldError{Field: f}
		}
	}
	return nil
}

// FieldError reports a field that cannot be written as a scalar
type FieldError struct {
	Field model.Field
}

func (e *FieldError) Error() string {
	return "field " + string(e.Field) + " cannot be written as a scalar"
}

// Unwrap lets errors.Is match model.ErrInvalidField
func (e *FieldError) Unwrap() error {
	return model.ErrInvalidField
}
