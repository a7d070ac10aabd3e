package token

import "errors"

// Kind — вид ошибки token.
type Kind string

const (
	KindInvalid  Kind = "INVALID_TOKEN"
	KindExpired  Kind = "TOKEN_EXPIRED"
	KindDecoding Kind = "TOKEN_DECODING_ERROR"
	KindCreation Kind = "TOKEN_CREATION_ERROR"
)

// Sentinel-ошибки для errors.Is.
var (
	// ErrInvalidToken — token подделан или имеет неверную структуру.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия token истёк.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenDecoding — token подписан верно, но не читается.
	ErrTokenDecoding = errors.New("token decoding failed")

	// ErrTokenCreation — token не удалось выпустить.
	ErrTokenCreation = errors.New("token creation failed")

	// ErrWeakSecret — ключ подписи пустой или слишком короткий.
	ErrWeakSecret = errors.New("token secret must be at least 32 bytes")
)

// Error — ошибка token с видом и причиной.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap возвращает причину.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет Error с sentinel-ошибкой своего вида.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalid:
		return ErrInvalidToken
	case KindExpired:
		return ErrTokenExpired
	case KindDecoding:
		return ErrTokenDecoding
	case KindCreation:
		return ErrTokenCreation
	default:
		return nil
	}
}

// KindOf возвращает вид ошибки token или пустую строку.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
