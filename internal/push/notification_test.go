package push

import (
	"strings"
	"testing"

	"github.com/Tyrowin/trio/internal/room"
)

// TestNewNotification tests notification title and body rules.
func TestNewNotification(t *testing.T) {
	long := strings.Repeat("ü", 120)

	tests := []struct {
		name      string
		msg       room.Message
		wantTitle string
		wantBody  string
	}{
		{"short text", room.Message{Text: "hello"}, "Alice in Lab", "hello"},
		{"exactly 100", room.Message{Text: strings.Repeat("a", 100)}, "Alice in Lab", strings.Repeat("a", 100)},
		{"long text", room.Message{Text: long}, "Alice in Lab", strings.Repeat("ü", 100) + "..."},
		{"file url", room.Message{Text: "ignored", FileURL: "data:image/png;base64,AAAA"}, "Alice in Lab", "Sent a file"},
		{"file type only", room.Message{FileType: "image/png"}, "Alice in Lab", "Sent a file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotification(room.Dispatch{SenderName: "Alice", RoomName: "Lab", Message: tt.msg})
			if n.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", n.Title, tt.wantTitle)
			}
			if n.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", n.Body, tt.wantBody)
			}
		})
	}
}
