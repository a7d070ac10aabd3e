package command

import (
	"sort"
	"sync"
)

// Descriptor описывает зарегистрированную команду.
type Descriptor struct {
	Service string `json:"service"`
	Command string `json:"command"`
}

// Registry — таблица service → command.
//
// Заполняется при старте процесса, дальше в основном читается.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
	commands map[string]map[string]Command
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]Service),
		commands: make(map[string]map[string]Command),
	}
}

// Register регистрирует сервис и все его команды.
func (r *Registry) Register(svc Service) {
	r.RegisterService(svc)
	for _, cmd := range svc.Commands() {
		r.RegisterCommand(cmd)
	}
}

// RegisterService регистрирует сервис.
// Повторная регистрация с тем же именем перезаписывает прежний.
func (r *Registry) RegisterService(svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.Name()] = svc
}

// RegisterCommand регистрирует команду под её сервисом.
// Повторная регистрация с тем же ключом перезаписывает прежнюю.
func (r *Registry) RegisterCommand(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.commands[cmd.Service()]
	if !ok {
		byName = make(map[string]Command)
		r.commands[cmd.Service()] = byName
	}
	byName[cmd.Name()] = cmd
}

// GetService возвращает сервис по имени.
func (r *Registry) GetService(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// GetCommand возвращает команду по (service, command).
func (r *Registry) GetCommand(service, name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[service][name]
	return cmd, ok
}

// HasService проверяет, зарегистрирован ли сервис.
func (r *Registry) HasService(name string) bool {
	_, ok := r.GetService(name)
	return ok
}

// HasCommand проверяет, зарегистрирована ли команда.
func (r *Registry) HasCommand(service, name string) bool {
	_, ok := r.GetCommand(service, name)
	return ok
}

// List возвращает все команды, отсортированные по service и command.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []Descriptor
	for svc, byName := range r.commands {
		for name := range byName {
			list = append(list, Descriptor{Service: svc, Command: name})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Service != list[j].Service {
			return list[i].Service < list[j].Service
		}
		return list[i].Command < list[j].Command
	})
	return list
}

// Services возвращает отсортированные имена сервисов.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
