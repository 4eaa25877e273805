package main

import "testing"

func TestNotificationURL(t *testing.T) {
	got := notificationURL("https://billing.zapfollow.app/", "a b&c")
	want := "https://billing.zapfollow.app/api/v1/billing/webhook?token=a+b%26c"
	if got != want {
		t.Fatalf("expected %q, but got %q", want, got)
	}
}
