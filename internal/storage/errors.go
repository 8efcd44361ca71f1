package storage

import (
	"errors"

	"github.com/mcoot/playerhub/internal/model"
)

// ErrContention is returned when an atomic update could not be applied after retrying
var ErrContention = errors.New("too much contention on key")

// Failure wraps a backend error as a *model.StoreFailure
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	var sf *model.StoreFailure
	if errors.As(err, &sf) {
		return err
	}
	return &model.StoreFailure{Op: op, Err: err}
}
