package whisper

import (
	"reflect"
	"testing"
)

func TestWrapText_NoWrapWhenMaxCharsNonPositive(t *testing.T) {
	got := wrapText("hello world", 0, true)
	want := []string{"hello world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapText(0) = %v; want %v", got, want)
	}

	got = wrapText("hello world", -5, true)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapText(-5) = %v; want %v", got, want)
	}
}

func TestWrapText_SplitOnWord(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10, true)
	want := []string{"the quick", "brown fox", "jumps"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapText = %v; want %v", got, want)
	}
}

func TestWrapText_SplitOnWordSingleWordLongerThanMax(t *testing.T) {
	got := wrapText("supercalifragilistic", 5, true)
	want := []string{"supercalifragilistic"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapText = %v; want %v", got, want)
	}
}

func TestWrapText_ByChars(t *testing.T) {
	got := wrapText("abcdefghij", 3, false)
	want := []string{"abc", "def", "ghi", "j"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapByChars = %v; want %v", got, want)
	}
}

func TestWrapText_EmptyInput(t *testing.T) {
	got := wrapText("", 5, true)
	if len(got) != 1 || got[0] != "" {
		t.Errorf("wrapText(empty) = %v", got)
	}

	got = wrapText("", 5, false)
	if len(got) != 1 || got[0] != "" {
		t.Errorf("wrapByChars(empty) = %v", got)
	}
}

func TestWrapText_ExactMultiple(t *testing.T) {
	got := wrapText("abcdef", 3, false)
	want := []string{"abc", "def"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapByChars = %v; want %v", got, want)
	}
}
