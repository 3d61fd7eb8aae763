package db

import (
	"errors"
	"fmt"
)

// ErrStorageFault matches every error produced by the ledger store when the
// underlying database could not complete a read or write.
var ErrStorageFault = errors.New("storage fault")

// StorageError wraps a database error with the ledger operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorageFault) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFault }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
