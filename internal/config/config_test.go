package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChallengeTimeoutMs != 60000 {
		t.Errorf("ChallengeTimeoutMs = %d, want 60000", cfg.ChallengeTimeoutMs)
	}
	if cfg.ChallengeExtendedTimeoutMs != 300000 {
		t.Errorf("ChallengeExtendedTimeoutMs = %d, want 300000", cfg.ChallengeExtendedTimeoutMs)
	}
	if cfg.MaxASLAttempts != 3 || cfg.MaxOTPAttempts != 3 {
		t.Errorf("attempt ceilings = %d/%d, want 3/3", cfg.MaxASLAttempts, cfg.MaxOTPAttempts)
	}
	if cfg.SessionTTL != "10m" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "10m")
	}
	if cfg.JWTIssuer != "deafauth-core" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "deafauth-core")
	}
	if cfg.JWTAudience != "deafauth-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "deafauth-api")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.KafkaTopic != "deafauth-events" {
		t.Errorf("KafkaTopic = %q, want %q", cfg.KafkaTopic, "deafauth-events")
	}
	if cfg.KafkaGroupID != "deafauth-event-worker" {
		t.Errorf("KafkaGroupID = %q, want %q", cfg.KafkaGroupID, "deafauth-event-worker")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("CHALLENGE_TIMEOUT_MS", "30000")
	os.Setenv("CHALLENGE_EXTENDED_TIMEOUT_MS", "120000")
	os.Setenv("MAX_ASL_ATTEMPTS", "5")
	os.Setenv("SESSION_TTL", "20m")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChallengeTimeout() != 30*time.Second {
		t.Errorf("ChallengeTimeout = %v, want 30s", cfg.ChallengeTimeout())
	}
	if cfg.ChallengeExtendedTimeout() != 2*time.Minute {
		t.Errorf("ChallengeExtendedTimeout = %v, want 2m", cfg.ChallengeExtendedTimeout())
	}
	if cfg.MaxASLAttempts != 5 {
		t.Errorf("MaxASLAttempts = %d, want 5", cfg.MaxASLAttempts)
	}
	if cfg.SessionTTLDuration() != 20*time.Minute {
		t.Errorf("SessionTTLDuration = %v, want 20m", cfg.SessionTTLDuration())
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "k1:9092" || brokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokersList = %v", brokers)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"non-positive timeout":    {"CHALLENGE_TIMEOUT_MS": "0"},
		"extended below base":     {"CHALLENGE_EXTENDED_TIMEOUT_MS": "1000"},
		"zero attempt ceiling":    {"MAX_OTP_ATTEMPTS": "0"},
		"bcrypt cost out of range": {"BCRYPT_COST": "40"},
	}
	for name, env := range cases {
		os.Clearenv()
		for k, v := range env {
			os.Setenv(k, v)
		}
		if _, err := Load(); err == nil {
			t.Errorf("%s: Load accepted invalid config", name)
		}
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{SessionTTL: "bogus", JWTAccessTTL: ""}
	if cfg.SessionTTLDuration() != 10*time.Minute {
		t.Errorf("SessionTTLDuration fallback = %v", cfg.SessionTTLDuration())
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL fallback = %v", cfg.AccessTTL())
	}
}
