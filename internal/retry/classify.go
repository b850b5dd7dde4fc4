package retry

import "errors"

// Classifier reports whether a failure is worth another attempt.
type Classifier func(error) bool

// ClassifyAll treats every failure as retryable. Only safe for operations
// that are idempotent by construction.
func ClassifyAll(error) bool { return true }

// ClassifyMarked retries failures wrapped with MarkRetryable and stops on
// everything else. MarkPermanent wins when both marks are present.
func ClassifyMarked(err error) bool {
	if IsPermanent(err) {
		return false
	}
	return IsRetryable(err)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// MarkPermanent wraps err so classifiers built on IsPermanent stop
// retrying. The original error stays reachable through errors.Is/As.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// MarkRetryable wraps err so ClassifyMarked retries it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func IsPermanent(err error) bool {
	var marked *permanentError
	return errors.As(err, &marked)
}

func IsRetryable(err error) bool {
	var marked *retryableError
	return errors.As(err, &marked)
}
