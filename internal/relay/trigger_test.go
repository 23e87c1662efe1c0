package relay

import "testing"

func TestShouldRelay(t *testing.T) {
	phrases := []string{"Hey Claude", "Hey Nyx"}

	tests := []struct {
		name    string
		text    string
		phrases []string
		want    bool
	}{
		{
			name:    "phrase at start",
			text:    "Hey Claude, how are you?",
			phrases: phrases,
			want:    true,
		},
		{
			name:    "phrase in middle",
			text:    "I was told: Hey Nyx is the signal",
			phrases: phrases,
			want:    true,
		},
		{
			name:    "no phrase present",
			text:    "just a normal response",
			phrases: phrases,
			want:    false,
		},
		{
			name:    "case sensitive",
			text:    "Hey claude, hello",
			phrases: phrases,
			want:    false,
		},
		{
			name:    "empty phrase set never matches",
			text:    "Hey Claude",
			phrases: nil,
			want:    false,
		},
		{
			name:    "empty text",
			text:    "",
			phrases: phrases,
			want:    false,
		},
		{
			name:    "empty phrase is skipped",
			text:    "anything",
			phrases: []string{""},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRelay(tt.text, tt.phrases); got != tt.want {
				t.Errorf("ShouldRelay(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
