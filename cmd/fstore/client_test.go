package main

import "testing"

func TestIsLoopbackURL(t *testing.T) {
	tests := map[string]bool{
		"http://127.0.0.1:7480":     true,
		"http://localhost:7480":     true,
		"http://[::1]:7480":         true,
		"http://10.0.0.5:7480":      false,
		"https://files.example.com": false,
		"::not a url":               false,
	}
	for raw, want := range tests {
		if got := isLoopbackURL(raw); got != want {
			t.Fatalf("isLoopbackURL(%q) = %v, want %v", raw, got, want)
		}
	}
}
