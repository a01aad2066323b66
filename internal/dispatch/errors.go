package dispatch

import "errors"

// Handler errors are classified into two classes. Transient errors are
// retried per the group's policy; permanent errors dead-letter the batch
// immediately. Unclassified errors count as transient so flaky downstreams
// get the benefit of the doubt.

type classifiedError struct {
	err       error
	permanent bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err}
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, permanent: true}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.permanent
}

// Classify returns "permanent" or "transient" for metrics labels.
func Classify(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "transient"
}
