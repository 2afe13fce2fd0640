package cost

import (
	"sync"
	"testing"
)

func TestGetPricing_NoConcurrentModification(t *testing.T) {
	calc := NewCalculator()

	// Add a test pricing
	testPricing := &ModelPricing{
		Model:       "test-model",
		InputPer1M:  10.0,
		OutputPer1M: 20.0,
	}
	calc.AddPricing(testPricing)

	var wg sync.WaitGroup
	numGoroutines := 100

	// Test concurrent reads
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pricing, ok := calc.GetPricing("test-model")
			if !ok {
				t.Errorf("expected to find pricing")
				return
			}
			// Modify the returned pricing (should not affect the calculator)
			pricing.InputPer1M = 999.0
		}()
	}

	// Concurrent writes
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			calc.AddPricing(&ModelPricing{
				Model:       "concurrent-model",
				InputPer1M:  float64(id),
				OutputPer1M: float64(id * 2),
			})
		}(i)
	}

	wg.Wait()

	// Verify original pricing is unchanged
	pricing, ok := calc.GetPricing("test-model")
	if !ok {
		t.Fatal("expected to find original pricing")
	}
	if pricing.InputPer1M != 10.0 {
		t.Errorf("expected InputPer1M=10.0, got %f", pricing.InputPer1M)
	}
}

func TestGetPricing_PrefixMatchDeterministic(t *testing.T) {
	calc := &Calculator{
		pricing: make(map[string]*ModelPricing),
	}

	// Add models with overlapping prefixes
	calc.AddPricing(&ModelPricing{
		Model:       "test-model",
		InputPer1M:  30.0,
		OutputPer1M: 60.0,
	})
	calc.AddPricing(&ModelPricing{
		Model:       "test-model-pro",
		InputPer1M:  2.5,
		OutputPer1M: 10.0,
	})

	// Test that longer prefix is matched first
	pricing, ok := calc.GetPricing("test-model-pro-v2")
	if !ok {
		t.Fatal("expected to find pricing")
	}
	// Should match "test-model-pro" (longer prefix) not "test-model"
	if pricing.InputPer1M != 2.5 {
		t.Errorf("expected test-model-pro pricing (2.5), got %f", pricing.InputPer1M)
	}
}

func TestGetPricing_ExactMatch(t *testing.T) {
	calc := NewCalculator()

	calc.AddPricing(&ModelPricing{
		Model:       "exact-model",
		InputPer1M:  5.0,
		OutputPer1M: 10.0,
	})

	pricing, ok := calc.GetPricing("exact-model")
	if !ok {
		t.Fatal("expected to find pricing")
	}
	if pricing.InputPer1M != 5.0 {
		t.Errorf("expected InputPer1M=5.0, got %f", pricing.InputPer1M)
	}
}

func TestGetPricing_NotFound(t *testing.T) {
	calc := NewCalculator()

	pricing, ok := calc.GetPricing("nonexistent-model")
	if ok {
		t.Error("expected not to find pricing")
	}
	if pricing != nil {
		t.Error("expected nil pricing")
	}
}

func TestListModels_Sorted(t *testing.T) {
	calc := &Calculator{pricing: make(map[string]*ModelPricing)}
	calc.AddPricing(&ModelPricing{Model: "zeta-model"})
	calc.AddPricing(&ModelPricing{Model: "alpha-model"})
	calc.AddPricing(&ModelPricing{Model: "mid-model"})

	models := calc.ListModels()
	want := []string{"alpha-model", "mid-model", "zeta-model"}
	if len(models) != len(want) {
		t.Fatalf("expected %d models, got %d", len(want), len(models))
	}
	for i, m := range want {
		if models[i] != m {
			t.Errorf("expected models[%d]=%q, got %q", i, m, models[i])
		}
	}
}

func TestNewCalculator_PreloadsPublishedRateCard(t *testing.T) {
	calc := NewCalculator()

	pricing, ok := calc.GetPricing("gpt-4o")
	if !ok {
		t.Fatal("expected gpt-4o to be preloaded")
	}
	if pricing.InputPer1M != 2.5 || !pricing.SupportsCaching {
		t.Errorf("unexpected gpt-4o pricing: %+v", pricing)
	}
}
