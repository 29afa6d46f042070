package capability

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func echoCapability(name string) Capability {
	return Capability{
		Name:        name,
		Description: "echoes its input",
		Run: func(ctx context.Context, input string) (string, error) {
			return "echo:" + input, nil
		},
	}
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoCapability("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Execute(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "echo:hello" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestExecuteUnknownCapability(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "missing", "x")
	if err == nil {
		t.Fatal("expected error for unknown capability")
	}
	if !strings.Contains(err.Error(), "capability not registered") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestExecuteWrapsFailure(t *testing.T) {
	sentinel := errors.New("backend down")
	r := NewRegistry()
	r.Register(Capability{
		Name: "flaky",
		Run: func(ctx context.Context, input string) (string, error) {
			return "", sentinel
		},
	})

	_, err := r.Execute(context.Background(), "flaky", "x")
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Capability{Name: ""}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register(Capability{Name: "norun"}); err == nil {
		t.Error("expected error for nil run function")
	}
}

func TestListAndCatalogSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(echoCapability("zeta"))
	r.Register(echoCapability("alpha"))

	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("expected sorted names, got %v", names)
	}

	catalog := r.Catalog()
	if !strings.Contains(catalog, "- alpha: echoes its input") {
		t.Errorf("catalog missing entry: %q", catalog)
	}
	if strings.Index(catalog, "alpha") > strings.Index(catalog, "zeta") {
		t.Error("catalog not sorted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(echoCapability("echo"))
		}()
		go func() {
			defer wg.Done()
			r.Execute(context.Background(), "echo", "x")
			r.List()
		}()
	}
	wg.Wait()
}
