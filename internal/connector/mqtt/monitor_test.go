//file: internal/connector/mqtt/monitor_test.go
package mqtt

import (
	"testing"
)

func TestParseSubscribeLog(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{
			name:    "valid subscribe entry",
			payload: "1612345678: sub-client 1 9a8b7c6d-1234-5678-9abc-def012345678",
			want:    "9a8b7c6d-1234-5678-9abc-def012345678",
			ok:      true,
		},
		{
			name:    "topic with slashes",
			payload: "1612345678: sub-client 0 vehicles/telemetry/speed",
			want:    "vehicles/telemetry/speed",
			ok:      true,
		},
		{
			name:    "missing qos field",
			payload: "1612345678: sub-client some-topic-only",
			ok:      false,
		},
		{
			name:    "no timestamp separator",
			payload: "garbage payload",
			ok:      false,
		},
		{
			name:    "empty payload",
			payload: "",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSubscribeLog(tt.payload)
			if ok != tt.ok {
				t.Fatalf("parseSubscribeLog() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseSubscribeLog() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseUnsubscribeLog(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{
			name:    "valid unsubscribe entry",
			payload: "1612345678: sub-client 9a8b7c6d-1234-5678-9abc-def012345678",
			want:    "9a8b7c6d-1234-5678-9abc-def012345678",
			ok:      true,
		},
		{
			name:    "extra fields rejected",
			payload: "1612345678: sub-client 1 some/topic",
			ok:      false,
		},
		{
			name:    "empty payload",
			payload: "",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUnsubscribeLog(tt.payload)
			if ok != tt.ok {
				t.Fatalf("parseUnsubscribeLog() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseUnsubscribeLog() = %q, want %q", got, tt.want)
			}
		})
	}
}
