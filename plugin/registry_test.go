package plugin

import (
	"context"
	"errors"
	"testing"
)

type testPlugin struct {
	name string

	voucherCreated int
	consumed       int
	validateErr    error
	validated      int
}

func (p *testPlugin) Name() string { return p.name }

func (p *testPlugin) OnVoucherCreated(_ context.Context, _ interface{}) error {
	p.voucherCreated++
	return nil
}

func (p *testPlugin) OnBalanceConsumed(_ context.Context, _ interface{}, _ interface{}) error {
	p.consumed++
	return nil
}

func (p *testPlugin) ValidateTransfer(_ context.Context, _ interface{}) error {
	p.validated++
	return p.validateErr
}

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	p := &testPlugin{name: "test"}

	if err := r.Register(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
	if r.Get("test") == nil {
		t.Error("registered plugin not found by name")
	}
	if r.Get("missing") != nil {
		t.Error("Get returned a plugin for an unknown name")
	}

	ctx := context.Background()
	r.EmitVoucherCreated(ctx, nil)
	r.EmitVoucherCreated(ctx, nil)
	r.EmitBalanceConsumed(ctx, nil, nil)
	// The plugin does not implement this hook; dispatch must not panic.
	r.EmitPackageCreated(ctx, nil)

	if p.voucherCreated != 2 {
		t.Errorf("voucherCreated = %d, want 2", p.voucherCreated)
	}
	if p.consumed != 1 {
		t.Errorf("consumed = %d, want 1", p.consumed)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&testPlugin{name: "dup"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&testPlugin{name: "dup"}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestValidateTransfer(t *testing.T) {
	r := NewRegistry()
	reject := errors.New("amount too large")
	pass := &testPlugin{name: "pass"}
	fail := &testPlugin{name: "fail", validateErr: reject}

	if err := r.Register(pass); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(fail); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.ValidateTransfer(context.Background(), nil)
	if !errors.Is(err, reject) {
		t.Errorf("err = %v, want wrapped %v", err, reject)
	}
	if pass.validated != 1 {
		t.Errorf("passing validator called %d times, want 1", pass.validated)
	}
}
