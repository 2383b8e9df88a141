package service_test

import (
	"errors"
	"testing"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/service"
)

const testFeedSecret = "0123456789abcdef0123456789abcdef"

func TestFeedTokenRoundTrip(t *testing.T) {
	tokens, err := service.NewFeedTokens(testFeedSecret)
	if err != nil {
		t.Fatalf("NewFeedTokens: %v", err)
	}

	token, err := tokens.Issue(4242)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != 4242 {
		t.Errorf("Verify = %d, want 4242", got)
	}
}

func TestFeedTokenRejectsForeignAndMangledTokens(t *testing.T) {
	tokens, err := service.NewFeedTokens(testFeedSecret)
	if err != nil {
		t.Fatalf("NewFeedTokens: %v", err)
	}
	other, err := service.NewFeedTokens("another-secret-of-sufficient-len!")
	if err != nil {
		t.Fatalf("NewFeedTokens other: %v", err)
	}

	foreign, err := other.Issue(4242)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	genuine, err := tokens.Issue(4242)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, token := range map[string]string{
		"foreign key": foreign,
		"mangled":     genuine[:len(genuine)-4] + "AAAA",
		"garbage":     "not-a-token",
		"empty":       "",
	} {
		if _, err := tokens.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Verify(%s) = %v, want ErrUnauthorized", name, err)
		}
	}
}
