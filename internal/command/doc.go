// Package command — единый механизм вызова backend'ов.
//
// # Обзор
//
// Каждая интеграция (AWX, UiPath, Jira, OpenShift) оформлена как Service
// с набором Command. Команда адресуется парой (service, command) и
// выполняется через Executor:
//
//   - запрос проверяется валидатором команды; ошибка валидации не вызывает backend
//   - вызов повторяется до RetryAttempts+1 раз, если команда вернула retryable *Error
//   - между попытками пауза attempt × BaseDelay (линейно, MaxDelay ограничивает при > 0)
//   - любой исход упаковывается в *Result, Executor не возвращает ошибок и не паникует
//
// # Ключевые компоненты
//
// ## Registry
//
// Потокобезопасная таблица service → command. Заполняется один раз при старте
// процесса явной регистрацией:
//
//	reg := command.NewRegistry()
//	reg.Register(awx.NewService(awxFactory, logger))
//	reg.Register(uipath.NewService(uipathFactory, logger))
//
// ## Executor и Pool
//
// Execute — синхронное ядро. ExecuteAsync отдаёт то же ядро в Pool
// (фиксированное число воркеров, ограниченная очередь) и сразу возвращает *Future;
// ошибка возвращается, только если задача не попала в очередь.
//
// ## Dispatcher
//
// Фасад: ищет команду в Registry и вызывает Executor. Отсутствующая команда
// даёт результат с кодом COMMAND_NOT_FOUND.
//
//	res := dispatcher.ExecuteCommand(ctx, "awx", "get_job_status", req, nil)
//	if !res.Success {
//	    log.Println(res.ErrorCode, res.ErrorMessage)
//	}
package command
