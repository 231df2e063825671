package usecase

// DomainError is a client-facing failure with a stable error code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

var (
	ErrNoFace        = &DomainError{Code: "NO_FACE", Message: "no face detected"}
	ErrTooManyFaces  = &DomainError{Code: "TOO_MANY_FACES", Message: "more than one face detected"}
	ErrUnknownPerson = &DomainError{Code: "UNKNOWN_PERSON", Message: "face does not match any enrolled user"}
	ErrUserDisabled  = &DomainError{Code: "USER_DISABLED", Message: "user is disabled"}
)

// CodeNotSamePerson marks a verification image whose face differs from the reference image.
const CodeNotSamePerson = "NOT_SAME_PERSON"
