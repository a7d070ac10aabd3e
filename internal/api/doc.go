// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (заявки, dispatcher, фабрики клиентов, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery, request logger)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - membership_handler.go — обработчики для /memberships
//   - command_handler.go    — обработчики для /commands
//   - instance_handler.go   — обработчики для /instances
//
// Состояние заявок на сервере не хранится: request id — это подписанный token.
package api
