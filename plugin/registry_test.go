package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/custos/id"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
)

// testPlugin implements Plugin + RoleCreated + RequestSubmitted.
type testPlugin struct {
	roleCreatedCalled      bool
	requestSubmittedCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnRequestSubmitted(_ context.Context, _ *request.Request) error {
	t.requestSubmittedCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	// Should dispatch RequestSubmitted.
	reg.EmitRequestSubmitted(ctx, &request.Request{ID: id.NewRequestID()})
	if !tp.requestSubmittedCalled {
		t.Fatal("OnRequestSubmitted was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitGrantRevoked(ctx, id.NewGrantID())
	reg.EmitAuditWriteFailed(ctx, nil, nil)
	reg.EmitShutdown(ctx)
}
