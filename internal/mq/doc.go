// Package mq публикует события жизненного цикла заявок в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — чтение событий (аудит, grantflow events watch)
//
// Типы сообщений:
//   - request.initiated — workflow запущен, token выпущен
//   - request.completed — опрос статуса дал COMPLETED
//
// request.completed публикуется при каждом опросе завершённой заявки,
// потребители дедуплицируют по request_id.
//
// Exchanges:
//   - grantflow.requests — события заявок (topic)
//   - grantflow.dlq      — dead letter queue
package mq
