package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderShareNotificationTemplate(t *testing.T) {
	data := ShareNotificationData{
		AppName:      "Diagram Builder",
		OwnerEmail:   "alice@x.com",
		DiagramTitle: "Flowchart",
		Role:         "viewer",
		DiagramURL:   "https://example.com/diagram/d-1",
	}

	html, err := renderTemplate(shareNotificationTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "alice@x.com") {
		t.Error("template should contain owner email")
	}
	if !strings.Contains(html, "Flowchart") {
		t.Error("template should contain diagram title")
	}
	if !strings.Contains(html, "viewer") {
		t.Error("template should contain role")
	}
	if !strings.Contains(html, "https://example.com/diagram/d-1") {
		t.Error("template should contain diagram URL")
	}
}
