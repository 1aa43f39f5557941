package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := TraceID(ctx); ok {
		t.Fatal("TraceID should be absent on empty context")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithTenantID(ctx, "tenant")
	if got, ok := TenantID(ctx); !ok || got != "tenant" {
		t.Fatalf("TenantID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	if _, ok := Roles(ctx); ok {
		t.Fatal("Roles should be absent before WithRoles")
	}
	ctx = WithRoles(ctx, []string{"admin", "auditor"})
	if got, ok := Roles(ctx); !ok || len(got) != 2 || got[0] != "admin" {
		t.Fatalf("Roles mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_EmptyValuesAreAbsent(t *testing.T) {
	t.Parallel()

	ctx := WithTraceID(context.Background(), "")
	if _, ok := TraceID(ctx); ok {
		t.Fatal("empty trace ID should read as absent")
	}

	ctx = WithRoles(context.Background(), nil)
	if _, ok := Roles(ctx); ok {
		t.Fatal("nil roles should read as absent")
	}
}
