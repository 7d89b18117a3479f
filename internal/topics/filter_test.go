//file: internal/topics/filter_test.go
package topics

import "testing"

func TestTopicValidation(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		isFilter  bool
		wantError bool
	}{
		// Valid filters
		{"Valid simple filter", "publisher/disconnect", true, false},
		{"Valid single-level wildcard", "$SYS/+/log", true, false},
		{"Valid multi-level wildcard", "$SYS/#", true, false},
		{"Valid leading slash", "/control/lwt", true, false},

		// Invalid filters
		{"Empty filter", "", true, true},
		{"Embedded + wildcard", "a/+b/c", true, true},
		{"Mid-filter #", "a/#/c", true, true},
		{"Empty middle segment", "a//c", true, true},

		// Valid names
		{"Valid name", "5102f4b6-5ad4-4d7c-a6ad-2d2b1ba00a1e", false, false},
		{"Valid multi-segment name", "fleet/truck-7/speed", false, false},

		// Invalid names
		{"Empty name", "", false, true},
		{"Name with +", "fleet/+/speed", false, true},
		{"Name with #", "fleet/#", false, true},
		{"Empty middle name segment", "fleet//speed", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.isFilter {
				err = ValidateFilter(tt.topic)
			} else {
				err = ValidateName(tt.topic)
			}

			if (err != nil) != tt.wantError {
				t.Errorf("validation error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	f, err := NewFilter("$SYS/#", "publisher/disconnect", "audit/+/log")
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{"SYS subtree", "$SYS/broker/log/M/subscribe", true},
		{"SYS root child", "$SYS/uptime", true},
		{"Control topic exact", "publisher/disconnect", true},
		{"Control topic subtopic", "publisher/disconnect/extra", false},
		{"Single-level wildcard hit", "audit/node3/log", true},
		{"Single-level wildcard too deep", "audit/node3/extra/log", false},
		{"Unrelated topic", "5102f4b6-5ad4-4d7c-a6ad-2d2b1ba00a1e", false},
		{"Empty topic", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.topic); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestFilterAddInvalid(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatal(err)
	}

	if err := f.Add("a/#/b"); err == nil {
		t.Error("expected error adding filter with mid-pattern #")
	}
	if err := f.Add(""); err == nil {
		t.Error("expected error adding empty filter")
	}

	if _, err := NewFilter("ok/+", "bad/+x"); err == nil {
		t.Error("expected NewFilter to reject invalid pattern")
	}
}
