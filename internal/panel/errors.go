package panel

import (
	"errors"
	"fmt"
)

var errEmptyPanel = errors.New("panel has no models")

// DuplicateModelError is returned when two descriptors share an id
type DuplicateModelError struct {
	ID string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("duplicate model id %q in panel", e.ID)
}

// MalformedResultError reports an oracle answer that breaks the result
// contract, such as a confidence outside [0,1].
type MalformedResultError struct {
	ModelID string
	Reason  string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed result from model %s: %s", e.ModelID, e.Reason)
}
