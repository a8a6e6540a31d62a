package boundary

import "testing"

func TestApplyGhostDirichlet(t *testing.T) {
	got, err := ApplyGhost(Dirichlet, false, 3, 5, 0, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("dirichlet ghost = %v, want 1", got)
	}
}

func TestApplyGhostNeumannHighFace(t *testing.T) {
	got, err := ApplyGhost(Neumann, false, 2, 5, 0, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5.2 {
		t.Fatalf("neumann ghost = %v, want 5.2", got)
	}
}

func TestApplyGhostNeumannLowFace(t *testing.T) {
	got, err := ApplyGhost(Neumann, true, 2, 5, 0, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4.8 {
		t.Fatalf("neumann ghost = %v, want 4.8", got)
	}
}

func TestApplyGhostContinuous(t *testing.T) {
	got, err := ApplyGhost(Continuous, false, 0, 5, 5, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Fatalf("continuous ghost = %v, want 5", got)
	}
}

func TestApplyGhostUnknownKind(t *testing.T) {
	_, err := ApplyGhost(Kind(99), false, 0, 0, 0, 0.1)
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRegistryDefaultsToHomogeneousDirichlet(t *testing.T) {
	r := NewRegistry()
	c := r.Get(0, 0)
	if c.Kind != Dirichlet || c.Value != 0 {
		t.Fatalf("default condition = %+v, want homogeneous dirichlet", c)
	}
}
