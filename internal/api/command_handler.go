package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ListCommands возвращает зарегистрированные команды.
// GET /api/v1/commands
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	descriptors := h.commands.Registry().List()

	result := make([]CommandResponse, len(descriptors))
	for i, d := range descriptors {
		result[i] = CommandResponse{Service: d.Service, Command: d.Command}
	}

	List(w, result, len(result))
}

// ExecuteCommand вызывает команду через dispatcher.
// POST /api/v1/commands/{service}/{command}
//
// Синхронный вызов возвращает Result со статусом по коду ошибки.
// Асинхронный ("context.async": true) — 202 без ожидания результата.
func (h *Handler) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	name := r.PathValue("command")

	var body ExecuteCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	var req any
	if len(body.Request) > 0 {
		req = body.Request
	}
	cc := body.Context.ToCommand()

	if cc != nil && cc.Async {
		future, err := h.commands.ExecuteCommandAsync(r.Context(), service, name, req, cc)
		// Ошибка только у вызовов, не попавших в очередь; результат воркера не ждём
		if err != nil {
			res := future.Result()
			JSON(w, CommandStatus(res), DataResponse{Data: res})
			return
		}
		Accepted(w, AsyncAccepted{ServiceName: service, CommandName: name, Async: true})
		return
	}

	res := h.commands.ExecuteCommand(r.Context(), service, name, req, cc)
	JSON(w, CommandStatus(res), DataResponse{Data: res})
}
