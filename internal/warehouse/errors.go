package warehouse

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gyeh/akload/internal/model"
)

// classify maps a storage error to a store result. Errors the server
// reported are storage errors; anything that never reached a server answer
// (dial, I/O, timeout, cancellation) is a transport error.
func classify(err error) model.StoreResult {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return model.StoreResult{Kind: model.StoreFailed, Message: err.Error()}
	}
	return model.StoreResult{Kind: model.StoreTransport, Message: err.Error()}
}
