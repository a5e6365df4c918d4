package whisper

import (
	"reflect"
	"testing"
)

func TestTemperatureSchedule_ZeroIncrement(t *testing.T) {
	got := temperatureSchedule(0.2, 0)
	want := []float32{0.2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("temperatureSchedule(0.2, 0) = %v; want %v", got, want)
	}
}

func TestTemperatureSchedule_StepsToOne(t *testing.T) {
	got := temperatureSchedule(0, 0.4)

	if len(got) == 0 {
		t.Fatal("expected at least one temperature")
	}
	if got[0] != 0 {
		t.Errorf("first temperature = %v; want 0", got[0])
	}

	last := got[len(got)-1]
	if last > 1+1e-5 {
		t.Errorf("last temperature %v exceeds 1+eps", last)
	}

	for i := 1; i < len(got); i++ {
		diff := got[i] - got[i-1]
		if diff < 0.39 || diff > 0.41 {
			t.Errorf("step %d->%d = %v; want ~0.4", i-1, i, diff)
		}
	}
}

func TestChooseDecoders_BeamSearchUsesBeamSize(t *testing.T) {
	p := Params{Strategy: StrategyBeamSearch, BeamSize: 5}
	if n := chooseDecoders(p, 0); n != 5 {
		t.Errorf("chooseDecoders(beam) = %d; want 5", n)
	}
	if n := chooseDecoders(p, 0.8); n != 5 {
		t.Errorf("chooseDecoders(beam, T>0) = %d; want 5", n)
	}
}

func TestChooseDecoders_BeamSearchClampsToOne(t *testing.T) {
	p := Params{Strategy: StrategyBeamSearch, BeamSize: 0}
	if n := chooseDecoders(p, 0); n != 1 {
		t.Errorf("chooseDecoders(beam, size=0) = %d; want 1", n)
	}
}

func TestChooseDecoders_GreedyDeterministicAtZeroTemp(t *testing.T) {
	p := Params{Strategy: StrategyGreedy, BestOf: 3}
	if n := chooseDecoders(p, 0); n != 1 {
		t.Errorf("chooseDecoders(greedy, T=0) = %d; want 1", n)
	}
}

func TestChooseDecoders_GreedyUsesBestOfWhenStochastic(t *testing.T) {
	p := Params{Strategy: StrategyGreedy, BestOf: 3}
	if n := chooseDecoders(p, 0.5); n != 3 {
		t.Errorf("chooseDecoders(greedy, T>0) = %d; want 3", n)
	}
}

func TestChooseDecoders_GreedyBestOfClampsToOne(t *testing.T) {
	p := Params{Strategy: StrategyGreedy, BestOf: 0}
	if n := chooseDecoders(p, 0.5); n != 1 {
		t.Errorf("chooseDecoders(greedy, bestOf=0) = %d; want 1", n)
	}
}
