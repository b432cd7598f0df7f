package main

import (
	"reflect"
	"testing"
)

func TestGetEnvReturnsValueWhenSet(t *testing.T) {
	const key = "TEST_GETENV_SET"
	const expected = "custom-value"

	t.Setenv(key, expected)

	result := getEnv(key, "fallback")
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestGetEnvReturnsFallbackWhenUnset(t *testing.T) {
	const key = "TEST_GETENV_UNSET"
	const fallback = "default-value"

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q, got %q", fallback, result)
	}
}

func TestGetEnvInt64ParsesValue(t *testing.T) {
	const key = "TEST_GETENV_INT"
	t.Setenv(key, "42")

	if result := getEnvInt64(key, 7); result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
}

func TestGetEnvInt64FallsBackOnGarbage(t *testing.T) {
	const key = "TEST_GETENV_INT_BAD"
	t.Setenv(key, "not-a-number")

	if result := getEnvInt64(key, 7); result != 7 {
		t.Errorf("expected fallback 7, got %d", result)
	}
}

func TestSplitListTrimsAndDropsEmpties(t *testing.T) {
	got := splitList(" a.example.com, ,b.example.com ,")
	want := []string{"a.example.com", "b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if splitList("") != nil {
		t.Error("empty input must yield nil")
	}
}
