package notify

import (
	"errors"
	"testing"
)

func TestExtractRecipient(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		want    string
		wantErr bool
	}{
		{
			name: "ключ email",
			data: map[string]any{"email": "user@example.com"},
			want: "user@example.com",
		},
		{
			name: "ключ 邮箱",
			data: map[string]any{"邮箱": "cn@example.com"},
			want: "cn@example.com",
		},
		{
			name: "ключ mail",
			data: map[string]any{"mail": "m@example.com"},
			want: "m@example.com",
		},
		{
			name: "приоритет email над mail",
			data: map[string]any{"mail": "second@example.com", "email": "first@example.com"},
			want: "first@example.com",
		},
		{
			name: "пробелы обрезаются",
			data: map[string]any{"email": "  padded@example.com  "},
			want: "padded@example.com",
		},
		{
			name:    "строка без @ игнорируется",
			data:    map[string]any{"email": "not-an-address"},
			wantErr: true,
		},
		{
			name:    "пустые данные",
			data:    map[string]any{"name": "Иван"},
			wantErr: true,
		},
		{
			name:    "не строка",
			data:    map[string]any{"email": 42},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRecipient(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrNoRecipient) {
					t.Fatalf("ожидали ErrNoRecipient, получили: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractRecipient() ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractRecipient() = %q, хотели %q", got, tt.want)
			}
		})
	}
}
