package mq

import "errors"

// Ошибки пакета.
var (
	// ErrNoChannel — канал AMQP не открыт (нет соединения или идёт reconnect).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("amqp connection closed")
)
