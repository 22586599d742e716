package generator_test

import (
	"context"
	"testing"

	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/port/generator"
)

type testGenerator struct {
	name string
	cfg  map[string]string
}

func (g *testGenerator) Name() string { return g.name }
func (g *testGenerator) Generate(_ context.Context, req generator.Request) (*proposal.Proposal, error) {
	return &proposal.Proposal{Role: string(req.Role), Success: true}, nil
}

func TestRegisterAndNew(t *testing.T) {
	generator.Register("test-gen", func(cfg map[string]string) (generator.Generator, error) {
		return &testGenerator{name: "test-gen", cfg: cfg}, nil
	})

	g, err := generator.New("test-gen", map[string]string{"model": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "test-gen" {
		t.Fatalf("expected test-gen, got %s", g.Name())
	}
	if g.(*testGenerator).cfg["model"] != "x" {
		t.Fatal("config not passed to factory")
	}
}

func TestNewUnknownGenerator(t *testing.T) {
	if _, err := generator.New("nonexistent", nil); err == nil {
		t.Fatal("expected error for unknown generator")
	}
}

func TestAvailableSorted(t *testing.T) {
	for _, name := range []string{"zz-gen", "aa-gen"} {
		generator.Register(name, func(map[string]string) (generator.Generator, error) {
			return &testGenerator{}, nil
		})
	}
	names := generator.Available()
	ai, zi := -1, -1
	for i, n := range names {
		switch n {
		case "aa-gen":
			ai = i
		case "zz-gen":
			zi = i
		}
	}
	if ai < 0 || zi < 0 || ai > zi {
		t.Fatalf("expected sorted names containing both, got %v", names)
	}
}

func TestDuplicateRegisterPanics(t *testing.T) {
	generator.Register("dup-gen", func(map[string]string) (generator.Generator, error) { return &testGenerator{}, nil })
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	generator.Register("dup-gen", func(map[string]string) (generator.Generator, error) { return &testGenerator{}, nil })
}
