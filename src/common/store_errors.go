package common

import "fmt"

// StoreErrType ...
type StoreErrType uint32

const (
	// KeyNotFound ...
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists ...
	KeyAlreadyExists
	// TooLate indicates that a later version of the key is already stored.
	TooLate
	// UnknownKind indicates an unrecognized artifact kind.
	UnknownKind
)

// StoreErr ...
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case TooLate:
		m = "Too Late"
	case UnknownKind:
		m = "Unknown Kind"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
