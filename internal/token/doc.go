// Package token выпускает и проверяет request token.
//
// Request token — единственное состояние, которое переживает путь
// "запустить заявку" → "спросить статус". Сервер ничего не хранит:
// всё нужное для проверки статуса лежит в подписанном payload.
//
// Формат:
//
//	<prefix>_<creationEpochMillis>_<signedPayload>
//
// signedPayload — JWT (HS256) с claims заявки и зарегистрированными
// claims iss/iat/exp/jti. В base64url есть символ '_', поэтому при
// разборе ищем первый '_' (конец prefix) и следующий за ним '_'
// (конец метки времени), всё остальное — payload.
//
// Ошибки разделены на виды, потому что на них завязаны разные ответы API:
//   - KindInvalid  — prefix не тот, структура сломана, подпись не сходится (400)
//   - KindExpired  — срок действия истёк (410)
//   - KindDecoding — подпись верна, но нет обязательного claim (500)
//   - KindCreation — не удалось выпустить token (500)
package token
