// Package clients превращает имя инстанса в готовый к работе клиент backend'а.
//
// Factory держит по одному клиенту на инстанс (cache-aside):
//   - повторный Client с тем же разрешённым именем возвращает тот же указатель
//   - при конкурентном промахе клиент строится ровно один раз (singleflight)
//   - ClearCache выбрасывает все клиенты, следующие вызовы строят новые
//
// Пустое имя инстанса семейства обрабатывают по-разному (см. NamePolicy).
// Это расхождение наблюдается у существующих клиентов и сохранено намеренно.
package clients

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

// NamePolicy — правило обработки пустого имени инстанса.
type NamePolicy int

const (
	// PolicyDeclaredDefault — пустое имя разрешается через ResolveInstanceName
	// (default_instance, затем первый объявленный). Jira, AWX, UiPath.
	PolicyDeclaredDefault NamePolicy = iota

	// PolicyExplicit — пустое имя считается ошибкой конфигурации. OpenShift.
	PolicyExplicit
)

// Builder строит клиент для инстанса.
type Builder[C any] func(inst config.Instance) (C, error)

// Factory — кеш клиентов одного семейства backend'ов.
type Factory[C any] struct {
	family string
	cfg    *config.Family
	policy NamePolicy
	build  Builder[C]
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]C
	gen   uint64
	group singleflight.Group
}

// NewFactory создаёт Factory для семейства.
func NewFactory[C any](family string, cfg *config.Family, policy NamePolicy, build Builder[C], logger *slog.Logger) *Factory[C] {
	if cfg == nil {
		cfg = &config.Family{}
	}
	return &Factory[C]{
		family: family,
		cfg:    cfg,
		policy: policy,
		build:  build,
		logger: telemetry.OrDefault(logger).With("family", family),
		cache:  make(map[string]C),
	}
}

// Family возвращает имя семейства.
func (f *Factory[C]) Family() string {
	return f.family
}

// ResolveInstanceName выбирает инстанс:
// явное непустое имя → default_instance → первый объявленный.
func (f *Factory[C]) ResolveInstanceName(explicit string) (string, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		return name, nil
	}
	if f.cfg.DefaultInstance != "" {
		return f.cfg.DefaultInstance, nil
	}
	if len(f.cfg.Instances) > 0 {
		return f.cfg.Instances[0].Name, nil
	}
	return "", f.configError("", ErrNoInstances)
}

// Client возвращает клиент инстанса, создавая его при первом обращении.
func (f *Factory[C]) Client(instance string) (C, error) {
	var zero C

	name, err := f.resolve(instance)
	if err != nil {
		return zero, err
	}

	f.mu.RLock()
	c, ok := f.cache[name]
	gen := f.gen
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	inst, ok := f.cfg.Lookup(name)
	if !ok {
		return zero, f.configError(name, ErrUnknownInstance)
	}

	// Ключ включает поколение: вызов после ClearCache не присоединяется
	// к построению, начатому до него.
	key := name + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := f.group.Do(key, func() (any, error) {
		f.mu.RLock()
		if c, ok := f.cache[name]; ok && f.gen == gen {
			f.mu.RUnlock()
			return c, nil
		}
		f.mu.RUnlock()

		c, err := f.build(inst)
		if err != nil {
			return nil, f.configError(name, err)
		}

		f.mu.Lock()
		// Клиент, построенный до ClearCache, в новый кеш не попадает.
		if f.gen == gen {
			f.cache[name] = c
		}
		f.mu.Unlock()

		telemetry.ClientConstructions.WithLabelValues(f.family, name).Inc()
		f.logger.Info("instance client created",
			"instance", name,
			"base_url", inst.BaseURL,
			"trust_all_certificates", inst.TrustAllCertificates,
		)
		return c, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(C), nil
}

// ClearCache выбрасывает все закешированные клиенты.
// У выброшенных клиентов закрываются простаивающие соединения.
func (f *Factory[C]) ClearCache() {
	f.mu.Lock()
	evicted := f.cache
	f.cache = make(map[string]C)
	f.gen++
	f.mu.Unlock()

	for _, c := range evicted {
		if closer, ok := any(c).(interface{ CloseIdleConnections() }); ok {
			closer.CloseIdleConnections()
		}
	}

	telemetry.ClientCacheClears.WithLabelValues(f.family).Inc()
	f.logger.Info("instance client cache cleared", "evicted", len(evicted))
}

// AvailableInstances возвращает имена инстансов в порядке объявления.
func (f *Factory[C]) AvailableInstances() []string {
	return f.cfg.Names()
}

// HasInstance проверяет, сконфигурирован ли инстанс.
func (f *Factory[C]) HasInstance(name string) bool {
	_, ok := f.cfg.Lookup(name)
	return ok
}

// resolve применяет NamePolicy семейства.
func (f *Factory[C]) resolve(instance string) (string, error) {
	if strings.TrimSpace(instance) == "" && f.policy == PolicyExplicit {
		return "", f.configError("", ErrInstanceRequired)
	}
	return f.ResolveInstanceName(instance)
}

func (f *Factory[C]) configError(instance string, err error) *ConfigurationError {
	return &ConfigurationError{
		Family:   f.family,
		Instance: instance,
		Known:    f.cfg.Names(),
		Err:      err,
	}
}

// HTTPBuilder возвращает Builder, создающий *Client с опциями.
func HTTPBuilder(opts func(inst config.Instance) []Option) Builder[*Client] {
	return func(inst config.Instance) (*Client, error) {
		var extra []Option
		if opts != nil {
			extra = opts(inst)
		}
		return NewClient(inst, extra...)
	}
}
