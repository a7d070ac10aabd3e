package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Значения по умолчанию для таймаутов инстанса.
const (
	DefaultConnectionTimeout = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
)

// Имена семейств backend'ов.
const (
	FamilyAWX       = "awx"
	FamilyUiPath    = "uipath"
	FamilyJira      = "jira"
	FamilyOpenShift = "openshift"
)

// ErrInvalidInstances — конфигурация инстансов не прошла валидацию.
var ErrInvalidInstances = errors.New("invalid backend instances")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Instance — настройки подключения к одному именованному инстансу.
type Instance struct {
	Name                 string `yaml:"name" validate:"required"`
	BaseURL              string `yaml:"base_url" validate:"required,url"`
	BearerToken          string `yaml:"bearer_token"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	ConnectionTimeoutMs  int    `yaml:"connection_timeout_ms" validate:"gte=0"`
	ReadTimeoutMs        int    `yaml:"read_timeout_ms" validate:"gte=0"`
	TrustAllCertificates bool   `yaml:"trust_all_certificates"`

	// FolderID — organization unit (UiPath), передаётся заголовком.
	FolderID string `yaml:"folder_id"`
}

// ConnectionTimeout возвращает таймаут соединения с учётом default.
func (i Instance) ConnectionTimeout() time.Duration {
	if i.ConnectionTimeoutMs <= 0 {
		return DefaultConnectionTimeout
	}
	return time.Duration(i.ConnectionTimeoutMs) * time.Millisecond
}

// ReadTimeout возвращает таймаут чтения с учётом default.
func (i Instance) ReadTimeout() time.Duration {
	if i.ReadTimeoutMs <= 0 {
		return DefaultReadTimeout
	}
	return time.Duration(i.ReadTimeoutMs) * time.Millisecond
}

// Family — набор инстансов одного семейства backend'ов.
// Порядок Instances — порядок объявления, он значим для выбора инстанса.
type Family struct {
	DefaultInstance string     `yaml:"default_instance"`
	Instances       []Instance `yaml:"instances" validate:"dive"`
}

// Names возвращает имена инстансов в порядке объявления.
func (f *Family) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, len(f.Instances))
	for i, inst := range f.Instances {
		names[i] = inst.Name
	}
	return names
}

// Lookup возвращает инстанс по имени.
func (f *Family) Lookup(name string) (Instance, bool) {
	if f == nil {
		return Instance{}, false
	}
	for _, inst := range f.Instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}

// upsert заменяет инстанс с тем же именем или добавляет в конец.
func (f *Family) upsert(inst Instance) {
	for i := range f.Instances {
		if f.Instances[i].Name == inst.Name {
			f.Instances[i] = inst
			return
		}
	}
	f.Instances = append(f.Instances, inst)
}

// Backends — все семейства backend'ов.
type Backends struct {
	Families map[string]*Family `yaml:"backends"`
}

// Family возвращает семейство по имени. Отсутствующее семейство — пустое.
func (b *Backends) Family(name string) *Family {
	if b.Families == nil {
		b.Families = make(map[string]*Family)
	}
	f, ok := b.Families[name]
	if !ok {
		f = &Family{}
		b.Families[name] = f
	}
	return f
}

// FamilyInstance — инстанс с принадлежностью к семейству (строка из БД).
type FamilyInstance struct {
	Family    string
	IsDefault bool
	Instance  Instance
}

// Merge добавляет инстансы из внешнего источника.
// Инстанс с тем же семейством и именем перезаписывается.
func (b *Backends) Merge(rows []FamilyInstance) {
	for _, row := range rows {
		f := b.Family(row.Family)
		f.upsert(row.Instance)
		if row.IsDefault {
			f.DefaultInstance = row.Instance.Name
		}
	}
}

// Validate проверяет все семейства.
func (b *Backends) Validate() error {
	for name, f := range b.Families {
		if err := validate.Struct(f); err != nil {
			return fmt.Errorf("%w: family %s: %v", ErrInvalidInstances, name, err)
		}

		seen := make(map[string]bool, len(f.Instances))
		for _, inst := range f.Instances {
			if seen[inst.Name] {
				return fmt.Errorf("%w: family %s: duplicate instance %q", ErrInvalidInstances, name, inst.Name)
			}
			seen[inst.Name] = true
		}

		if f.DefaultInstance != "" && !seen[f.DefaultInstance] {
			return fmt.Errorf("%w: family %s: default instance %q is not declared", ErrInvalidInstances, name, f.DefaultInstance)
		}
	}
	return nil
}

// ParseBackends разбирает YAML с описанием инстансов.
func ParseBackends(data []byte) (*Backends, error) {
	var b Backends
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse instances yaml: %w", err)
	}
	if b.Families == nil {
		b.Families = make(map[string]*Family)
	}
	for name, f := range b.Families {
		if f == nil {
			b.Families[name] = &Family{}
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBackends читает файл инстансов. Отсутствующий файл — пустая конфигурация.
func LoadBackends(path string) (*Backends, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Backends{Families: make(map[string]*Family)}, nil
		}
		return nil, fmt.Errorf("read instances file: %w", err)
	}
	return ParseBackends(data)
}

// FamilyNames возвращает отсортированные имена семейств.
func (b *Backends) FamilyNames() []string {
	names := make([]string, 0, len(b.Families))
	for name := range b.Families {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
