package startup

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DIR", t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.DeliveryMode != DeliveryProxy {
		t.Errorf("DeliveryMode = %q, want proxy", cfg.DeliveryMode)
	}
	if cfg.PresignExpiry != time.Hour {
		t.Errorf("PresignExpiry = %v, want 1h", cfg.PresignExpiry)
	}
	if cfg.TagCacheTTL != 30*time.Second {
		t.Errorf("TagCacheTTL = %v, want 30s", cfg.TagCacheTTL)
	}
	if cfg.ThumbMaxEdge != 512 {
		t.Errorf("ThumbMaxEdge = %d, want 512", cfg.ThumbMaxEdge)
	}
	if cfg.BucketOriginals != "tagify-originals" || cfg.BucketThumbs != "tagify-thumbs" {
		t.Errorf("unexpected bucket defaults: %q / %q", cfg.BucketOriginals, cfg.BucketThumbs)
	}
	if cfg.ScanWorkers < 1 || cfg.ScanWorkers > 8 {
		t.Errorf("ScanWorkers = %d, want 1..8", cfg.ScanWorkers)
	}
}

func TestLoadConfigDeliveryModes(t *testing.T) {
	tests := []struct {
		value   string
		want    DeliveryMode
		wantErr bool
	}{
		{"proxy", DeliveryProxy, false},
		{"redirect", DeliveryRedirect, false},
		{"url", DeliveryURL, false},
		{"REDIRECT", DeliveryRedirect, false},
		{"off", "", true},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("MEDIA_DELIVERY_MODE", tt.value)

			cfg, err := LoadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadConfig accepted mode %q", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.DeliveryMode != tt.want {
				t.Errorf("DeliveryMode = %q, want %q", cfg.DeliveryMode, tt.want)
			}
		})
	}
}

func TestLoadConfigRejectsBadExpiry(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEDIA_PRESIGNED_EXPIRES", "-5")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted negative presign expiry")
	}
}

func TestLoadConfigRejectsTinyThumbEdge(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("THUMB_MAX_EDGE", "4")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted THUMB_MAX_EDGE=4")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL_KEY", "yes")
	if !getEnvBool("TEST_BOOL_KEY", false) {
		t.Error("yes should parse as true")
	}
	t.Setenv("TEST_BOOL_KEY", "off")
	if getEnvBool("TEST_BOOL_KEY", true) {
		t.Error("off should parse as false")
	}
	t.Setenv("TEST_BOOL_KEY", "maybe")
	if !getEnvBool("TEST_BOOL_KEY", true) {
		t.Error("unparseable value should fall back to default")
	}
}
