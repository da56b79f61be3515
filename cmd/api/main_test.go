package main

import (
	"context"
	"testing"
)

func TestOpenPoolRejectsMalformedURL(t *testing.T) {
	if _, err := openPool(context.Background(), "://not-a-url"); err == nil {
		t.Fatal("expected error for malformed database URL")
	}
}
