package apperror

// AppError is a business error that carries its HTTP status, a stable machine code and a
// user-facing message.
type AppError struct {
	Status  int    // HTTP Status Code (e.g., 404, 409)
	Code    string // Stable code for API clients (e.g., RESOURCE_CONFLICT)
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so that wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// New creates a new AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of the sentinel carrying err as its cause.
func Wrap(sentinel *AppError, err error) *AppError {
	return &AppError{
		Status:  sentinel.Status,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     err,
	}
}
