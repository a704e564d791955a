package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a bucket operation failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindAlreadyExists
	// KindAlreadyOwned means the name is taken by the caller itself.
	KindAlreadyOwned
	KindPermissionDenied
	KindNotEmpty
	KindLocalIO
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindInvalidArgument:  "invalid argument",
	KindNotFound:         "not found",
	KindAlreadyExists:    "already exists",
	KindAlreadyOwned:     "already owned by you",
	KindPermissionDenied: "permission denied",
	KindNotEmpty:         "not empty",
	KindLocalIO:          "local i/o",
	KindUnavailable:      "unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Make sure *Error satisfies the error interface.
var _ error = new(Error)

// Error is returned by every façade operation and by BucketStore adapters.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Bucket != "" {
		fmt.Fprintf(&b, " bucket %q", e.Bucket)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key %q", e.Key)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func errMissing(what string) error {
	return fmt.Errorf("%s is required", what)
}
