// Package apperrors provides the error model used across parkadmin. Errors are built as
// chains rooted at a small set of sentinel kinds (transport, unauthorized, validation,
// business) so callers can classify any failure with errors.Is, while each layer can
// still decorate the message on the way up.
package apperrors

// Error defines the interface for application errors. It extends the standard error
// interface with chaining helpers. All helpers return a new Error; the receiver is
// never mutated.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetStatusCode(int) Error               // records the HTTP status that produced the error
	StatusCode() int                       // returns the recorded status code, 0 if none
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}
