package llm

import (
	"testing"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
)

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		provider  string
		rateLimit bool
		wantErr   bool
	}{
		{provider: config.ProviderOllama},
		{provider: config.ProviderAnthropic},
		{provider: config.ProviderOllama, rateLimit: true},
		{provider: "gemini", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Provider = tt.provider
			cfg.Model = "test-model"
			cfg.RateLimit.EnableRateLimiting = tt.rateLimit

			client, err := New(cfg, nil, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer client.Close()

			if _, ok := client.(*ResilientClient); !ok {
				t.Errorf("client is %T, want *ResilientClient", client)
			}
			if got := client.GetModel(); got != "test-model" {
				t.Errorf("GetModel() = %q, want test-model", got)
			}
		})
	}
}
