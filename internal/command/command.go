package command

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

// Command — именованная единица работы backend'а.
type Command interface {
	// Name возвращает имя команды, уникальное внутри сервиса.
	Name() string

	// Service возвращает имя сервиса-владельца.
	Service() string

	// NewRequest возвращает пустой запрос для декодирования (например, из JSON).
	NewRequest() any

	// Validate проверяет запрос. Ошибка останавливает выполнение до вызова backend'а.
	Validate(req any) error

	// Execute выполняет команду. Повторяемые сбои возвращаются как *Error с Retryable.
	Execute(ctx context.Context, req any, cc *Context) (any, error)
}

// Service — группа команд одного backend'а.
type Service interface {
	Name() string
	Commands() []Command
}

// Context — параметры одного вызова команды.
type Context struct {
	// Instance — имя инстанса backend'а. Пустое — по правилам семейства.
	Instance string

	// Timeout — таймаут одной попытки. 0 — значение по умолчанию Dispatcher;
	// отрицательный — без таймаута.
	Timeout time.Duration

	// RetryAttempts — число повторов после первой попытки.
	RetryAttempts int

	// Async — вызов пришёл через ExecuteAsync.
	Async bool

	// Metadata — произвольные данные, копируются в Result.Metadata.
	Metadata map[string]any
}

// Default values for Context.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 2
)

// DefaultContext создаёт Context со значениями по умолчанию.
func DefaultContext() *Context {
	return &Context{
		Timeout:       DefaultTimeout,
		RetryAttempts: DefaultRetryAttempts,
	}
}

// Clone возвращает копию Context с собственной Metadata.
func (c *Context) Clone() *Context {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Handler — типизированная реализация команды.
type Handler[Req, Resp any] func(ctx context.Context, req *Req, cc *Context) (Resp, error)

var validate = validator.New(validator.WithRequiredStructEnabled())

// typed адаптирует Handler к интерфейсу Command.
type typed[Req, Resp any] struct {
	service string
	name    string
	handler Handler[Req, Resp]
	check   func(*Req) error
}

// New создаёт Command из типизированного обработчика.
//
// Запрос проверяется тегами validate (go-playground/validator), затем check, если задан.
// Execute принимает *Req, Req, map[string]any или json.RawMessage.
func New[Req, Resp any](service, name string, handler Handler[Req, Resp], check func(*Req) error) Command {
	return &typed[Req, Resp]{
		service: service,
		name:    name,
		handler: handler,
		check:   check,
	}
}

func (c *typed[Req, Resp]) Name() string    { return c.name }
func (c *typed[Req, Resp]) Service() string { return c.service }
func (c *typed[Req, Resp]) NewRequest() any { return new(Req) }

func (c *typed[Req, Resp]) Validate(req any) error {
	r, err := coerce[Req](req)
	if err != nil {
		return ValidationError(err)
	}

	if reflect.TypeFor[Req]().Kind() == reflect.Struct {
		if err := validate.Struct(r); err != nil {
			return ValidationError(err)
		}
	}

	if c.check != nil {
		if err := c.check(r); err != nil {
			return ValidationError(err)
		}
	}
	return nil
}

func (c *typed[Req, Resp]) Execute(ctx context.Context, req any, cc *Context) (any, error) {
	r, err := coerce[Req](req)
	if err != nil {
		return nil, ValidationError(err)
	}
	return c.handler(ctx, r, cc)
}

// coerce приводит запрос к *Req.
func coerce[Req any](req any) (*Req, error) {
	switch v := req.(type) {
	case nil:
		return new(Req), nil
	case *Req:
		if v == nil {
			return new(Req), nil
		}
		return v, nil
	case Req:
		return &v, nil
	case json.RawMessage:
		return decodeJSON[Req](v)
	case []byte:
		return decodeJSON[Req](v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		return decodeJSON[Req](data)
	}
}

func decodeJSON[Req any](data []byte) (*Req, error) {
	r := new(Req)
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}
