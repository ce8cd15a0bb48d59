package config

import (
	"strconv"
	"time"
)

// BiometricConfig points at the face-embedding oracle.
type BiometricConfig struct {
	OracleURL string
	Threshold float64 // maximum cosine distance accepted as a match
	Timeout   time.Duration
}

// LoadBiometricConfig reads FACE_ORACLE_URL, FACE_MATCH_THRESHOLD and
// FACE_ORACLE_TIMEOUT.
func LoadBiometricConfig() BiometricConfig {
	return BiometricConfig{
		OracleURL: envStr("FACE_ORACLE_URL", "http://localhost:5005"),
		Threshold: envFloat("FACE_MATCH_THRESHOLD", 0.40),
		Timeout:   envDur("FACE_ORACLE_TIMEOUT", 10*time.Second),
	}
}

func envFloat(k string, d float64) float64 {
	v := envStr(k, "")
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return f
	}
	return d
}
