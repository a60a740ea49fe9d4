package instrument

import (
	"errors"
	"fmt"

	"github.com/rickgao/betfair-instruments/internal/model"
)

// Errors
var (
	ErrInvalidFilterKey       = errors.New("invalid market filter key")
	ErrUnsupportedRecordShape = errors.New("unsupported market metadata shape")
	ErrAmbiguousResolution    = errors.New("ambiguous instrument resolution")
	ErrUnknownAttribute       = errors.New("unknown instrument attribute")
	ErrInvalidHandicap        = errors.New("invalid handicap")
	ErrLoadInProgress         = errors.New("load already in progress")
	ErrNoClient               = errors.New("provider has no market data client")
)

// InvalidFilterKeyError reports a market filter key outside the allow-list.
type InvalidFilterKeyError struct {
	Key string
}

func (e *InvalidFilterKeyError) Error() string {
	return fmt.Sprintf("invalid market filter key %q", e.Key)
}

func (e *InvalidFilterKeyError) Unwrap() error {
	return ErrInvalidFilterKey
}

// RemoteCallError wraps a failure of the market data client.
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// AmbiguousResolutionError reports a composite key matching more than one instrument.
type AmbiguousResolutionError struct {
	Key   model.Key
	Count int
}

func (e *AmbiguousResolutionError) Error() string {
	return fmt.Sprintf("ambiguous instrument resolution: %d instruments match %s", e.Count, e.Key)
}

func (e *AmbiguousResolutionError) Unwrap() error {
	return ErrAmbiguousResolution
}
