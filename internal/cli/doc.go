// Package cli реализует инструмент командной строки Grantflow.
//
// # Обзор
//
// CLI — клиентская утилита для оператора Grantflow API.
// Заявки и команды идут через HTTP, внутренние пакеты сервера не импортируются.
// Исключение — events watch: он читает события заявок напрямую из RabbitMQ.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Grantflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	started, err := client.AddMember(req)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: grantflow request status ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - request: add, status, verify
//   - command: list, exec
//   - instance: list, clear-cache
//   - events: watch
//
// Каждая группа создаётся через фабричную функцию (NewRequestCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
