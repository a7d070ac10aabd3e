// Package membership — заявки "добавить пользователя в проект".
//
// # Обзор
//
// Заявка проходит через два независимых backend'а по очереди:
//
//	AWX workflow (backend A) → очередь UiPath (backend B)
//
// Сервер не хранит состояние заявки. Initiate запускает workflow и
// выпускает подписанный request token, в котором лежат job id, correlation
// reference и бизнес-поля. Status расшифровывает token и заново спрашивает
// оба backend'а.
//
// # Согласование статуса
//
//  1. token не читается → ошибка token (invalid / expired / decoding)
//  2. AWX job не завершён → IN_PROGRESS
//  3. AWX job упал → COMPLETED, successful=false, в сообщении текст AWX
//  4. AWX job успешен → смотрим элемент очереди UiPath:
//     NO_REFERENCE, SUCCESS → COMPLETED/successful;
//     IN_PROGRESS → IN_PROGRESS;
//     NOT_FOUND, FAILURE, ERROR → COMPLETED/unsuccessful
//
// UiPath не опрашивается, пока AWX не вернул successful: reference
// появляется в очереди только после отработки workflow.
//
// Сбой любого backend'а на шагах 2–4 не превращается в ошибку Status:
// ответ всегда COMPLETED/unsuccessful с текстом ошибки в ErrorDetails.
package membership
