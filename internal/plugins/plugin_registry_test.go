package plugins

import (
	"testing"

	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

func newTestRegistry() *PluginRegistry {
	cfg := &models.Config{
		Plugins: map[string]any{},
	}
	return NewPluginRegistry(cfg, util.NewMockLogger(), nil, NewServiceRegistry(), nil)
}

func TestRegisterDuplicatePlugin(t *testing.T) {
	r := newTestRegistry()

	if err := r.Register(util.NewMockPlugin()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(util.NewMockPlugin()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestGetPlugin(t *testing.T) {
	r := newTestRegistry()

	p := util.NewMockPlugin()
	if err := r.Register(p); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if got := r.GetPlugin(p.Metadata().ID); got == nil {
		t.Error("expected to find registered plugin")
	}
	if got := r.GetPlugin("missing"); got != nil {
		t.Error("expected nil for unknown plugin")
	}
}

func TestServiceRegistry(t *testing.T) {
	r := NewServiceRegistry()

	r.Register("svc", 42)
	if got := r.Get("svc"); got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Errorf("expected nil for unknown service, got %v", got)
	}
}
