package bot

import (
	"testing"

	"plugbot/internal/dispatcher"
)

func TestApplyPrefixArgsSkipsMentions(t *testing.T) {
	cmd := dispatcher.Command{Kind: dispatcher.KindMute}
	applyPrefixArgs(&cmd, []string{"<@12345>", "15"})
	if cmd.Minutes != 15 {
		t.Fatalf("minutes = %d, want 15", cmd.Minutes)
	}

	cmd = dispatcher.Command{Kind: dispatcher.KindMute}
	applyPrefixArgs(&cmd, []string{"15", "<@12345>"})
	if cmd.Minutes != 15 {
		t.Fatalf("minutes = %d, want 15 regardless of argument order", cmd.Minutes)
	}
}

func TestApplyPrefixArgsReason(t *testing.T) {
	cmd := dispatcher.Command{Kind: dispatcher.KindKick}
	applyPrefixArgs(&cmd, []string{"<@12345>", "being", "rude"})
	if cmd.Reason != "being rude" {
		t.Fatalf("reason = %q", cmd.Reason)
	}
}

func TestApplyPrefixArgsText(t *testing.T) {
	cmd := dispatcher.Command{Kind: dispatcher.KindPoll}
	applyPrefixArgs(&cmd, []string{"pizza", "tonight?"})
	if cmd.Text != "pizza tonight?" {
		t.Fatalf("text = %q", cmd.Text)
	}
}

func TestApplyPrefixArgsKeepsMentionsInText(t *testing.T) {
	for _, kind := range []dispatcher.Kind{dispatcher.KindEcho, dispatcher.KindPoll, dispatcher.KindAnnounce} {
		cmd := dispatcher.Command{Kind: kind}
		applyPrefixArgs(&cmd, []string{"hi", "<@123>", "there"})
		if cmd.Text != "hi <@123> there" {
			t.Fatalf("kind %d text = %q", kind, cmd.Text)
		}
	}
}

func TestApplyPrefixArgsDefaults(t *testing.T) {
	cmd := dispatcher.Command{Kind: dispatcher.KindPurgeUser}
	applyPrefixArgs(&cmd, []string{"<@12345>"})
	if cmd.Amount != 10 {
		t.Fatalf("purge amount = %d, want default 10", cmd.Amount)
	}

	cmd = dispatcher.Command{Kind: dispatcher.KindClear}
	applyPrefixArgs(&cmd, nil)
	if cmd.Amount != 1 {
		t.Fatalf("clear amount = %d, want default 1", cmd.Amount)
	}
}

func TestApplyPrefixArgsNumbers(t *testing.T) {
	cmd := dispatcher.Command{Kind: dispatcher.KindSlowmode}
	applyPrefixArgs(&cmd, []string{"30"})
	if cmd.Seconds != 30 {
		t.Fatalf("seconds = %d, want 30", cmd.Seconds)
	}

	cmd = dispatcher.Command{Kind: dispatcher.KindClear}
	applyPrefixArgs(&cmd, []string{"25"})
	if cmd.Amount != 25 {
		t.Fatalf("amount = %d, want 25", cmd.Amount)
	}
}
