package clients

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Grantflow/internal/config"
)

func testFamily() *config.Family {
	return &config.Family{
		Instances: []config.Instance{
			{Name: "dev", BaseURL: "https://dev.example.com"},
			{Name: "staging", BaseURL: "https://staging.example.com"},
		},
	}
}

func newHTTPFactory(cfg *config.Family, policy NamePolicy) *Factory[*Client] {
	return NewFactory("jira", cfg, policy, HTTPBuilder(nil), nil)
}

func TestFactory_CacheIdentity(t *testing.T) {
	f := newHTTPFactory(testFamily(), PolicyDeclaredDefault)

	a, err := f.Client("dev")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	b, err := f.Client("dev")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if a != b {
		t.Error("same instance should return the same client")
	}

	s, err := f.Client("staging")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if s == a {
		t.Error("different instances should return different clients")
	}

	f.ClearCache()

	c, err := f.Client("dev")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if c == a || c == s {
		t.Error("client after ClearCache should be a new object")
	}
	d, _ := f.Client("dev")
	if c != d {
		t.Error("client after ClearCache should be cached again")
	}
}

func TestFactory_SingleConstructionUnderContention(t *testing.T) {
	var builds atomic.Int32
	build := func(inst config.Instance) (*Client, error) {
		builds.Add(1)
		time.Sleep(20 * time.Millisecond)
		return NewClient(inst)
	}
	f := NewFactory("jira", testFamily(), PolicyDeclaredDefault, build, nil)

	const callers = 50
	results := make([]*Client, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			c, err := f.Client("dev")
			if err != nil {
				t.Errorf("Client: %v", err)
				return
			}
			results[i] = c
		}(i)
	}
	close(start)
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Errorf("expected exactly 1 construction, got %d", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different client", i)
		}
	}
}

func TestFactory_UnknownInstance(t *testing.T) {
	f := newHTTPFactory(testFamily(), PolicyDeclaredDefault)

	_, err := f.Client("prod")
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("expected ErrUnknownInstance, got %v", err)
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if ce.Instance != "prod" {
		t.Errorf("expected instance prod, got %q", ce.Instance)
	}
	if len(ce.Known) != 2 || ce.Known[0] != "dev" || ce.Known[1] != "staging" {
		t.Errorf("expected known [dev staging], got %v", ce.Known)
	}
	if !strings.Contains(err.Error(), "dev, staging") {
		t.Errorf("message should list known instances: %s", err)
	}
}

func TestFactory_BuildErrorIsConfigurationError(t *testing.T) {
	cfg := &config.Family{Instances: []config.Instance{{Name: "bad", BaseURL: "relative/path"}}}
	f := newHTTPFactory(cfg, PolicyDeclaredDefault)

	_, err := f.Client("bad")
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestFactory_ResolveInstanceName(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Family
		explicit string
		want     string
		wantErr  error
	}{
		{"explicit wins", testFamily(), "staging", "staging", nil},
		{"explicit is not validated", testFamily(), "other", "other", nil},
		{"first declared", testFamily(), "", "dev", nil},
		{"blank is empty", testFamily(), "   ", "dev", nil},
		{"declared default", &config.Family{DefaultInstance: "staging", Instances: testFamily().Instances}, "", "staging", nil},
		{"no instances", &config.Family{}, "", "", ErrNoInstances},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHTTPFactory(tt.cfg, PolicyDeclaredDefault)
			got, err := f.ResolveInstanceName(tt.explicit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var ce *ConfigurationError
				if !errors.As(err, &ce) {
					t.Errorf("expected ConfigurationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFactory_NamePolicies(t *testing.T) {
	declared := newHTTPFactory(testFamily(), PolicyDeclaredDefault)
	c, err := declared.Client("")
	if err != nil {
		t.Fatalf("declared-default family should resolve blank name: %v", err)
	}
	if c.Instance() != "dev" {
		t.Errorf("expected dev, got %s", c.Instance())
	}
	same, _ := declared.Client("dev")
	if same != c {
		t.Error("blank and resolved name should share the cached client")
	}

	explicit := newHTTPFactory(testFamily(), PolicyExplicit)
	if _, err := explicit.Client(""); !errors.Is(err, ErrInstanceRequired) {
		t.Errorf("explicit family should reject blank name, got %v", err)
	}
	if _, err := explicit.Client("staging"); err != nil {
		t.Errorf("explicit family should accept named instance: %v", err)
	}
}

func TestFactory_Accessors(t *testing.T) {
	f := newHTTPFactory(testFamily(), PolicyDeclaredDefault)

	got := f.AvailableInstances()
	if len(got) != 2 || got[0] != "dev" {
		t.Errorf("unexpected instances %v", got)
	}
	if !f.HasInstance("staging") {
		t.Error("should have staging")
	}
	if f.HasInstance("prod") {
		t.Error("should not have prod")
	}
	if f.Family() != "jira" {
		t.Errorf("unexpected family %s", f.Family())
	}
}

func TestFactory_ClearCacheDuringBuild(t *testing.T) {
	var builds atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	build := func(inst config.Instance) (*Client, error) {
		if builds.Add(1) == 1 {
			close(started)
			<-release
		}
		return NewClient(inst)
	}
	f := NewFactory("jira", testFamily(), PolicyDeclaredDefault, build, nil)

	type outcome struct {
		c   *Client
		err error
	}
	pre := make(chan outcome, 1)
	go func() {
		c, err := f.Client("dev")
		pre <- outcome{c, err}
	}()

	<-started
	f.ClearCache()

	post, err := f.Client("dev")
	if err != nil {
		t.Fatalf("Client after ClearCache: %v", err)
	}

	close(release)
	old := <-pre
	if old.err != nil {
		t.Fatalf("Client before ClearCache: %v", old.err)
	}

	if old.c == post {
		t.Fatal("client obtained after ClearCache must not be the in-flight pre-clear client")
	}
	if builds.Load() != 2 {
		t.Errorf("expected 2 builds, got %d", builds.Load())
	}

	cached, _ := f.Client("dev")
	if cached != post {
		t.Error("post-clear client should stay cached")
	}
}
