package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"TC-1: unset", "", 32},
		{"TC-2: valid", "8", 8},
		{"TC-3: surrounding blanks", " 16 ", 16},
		{"TC-4: trailing garbage", "12abc", 32},
		{"TC-5: not a number", "many", 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NOTIFY_MAX_CONCURRENT", tt.value)
			assert.Equal(t, tt.want, GetEnvInt("NOTIFY_MAX_CONCURRENT", 32))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"TC-1: unset keeps default", "", true, true},
		{"TC-2: true", "true", false, true},
		{"TC-3: numeric false", "0", true, false},
		{"TC-4: invalid keeps default", "yes", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NOTIFY_BLOCK_PRIVATE_TARGETS", tt.value)
			assert.Equal(t, tt.want, GetEnvBool("NOTIFY_BLOCK_PRIVATE_TARGETS", tt.def))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("NOTIFY_SEND_TIMEOUT", "45s")
	assert.Equal(t, 45*time.Second, GetEnvDuration("NOTIFY_SEND_TIMEOUT", 30*time.Second))

	t.Setenv("NOTIFY_SEND_TIMEOUT", "45")
	assert.Equal(t, 30*time.Second, GetEnvDuration("NOTIFY_SEND_TIMEOUT", 30*time.Second))
}

func TestGetEnvStringList(t *testing.T) {
	def := []string{"*"}

	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	assert.Equal(t, def, GetEnvStringList("CORS_ALLOWED_ORIGINS", def))

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.com, ,https://admin.example.com")
	assert.Equal(t, []string{"https://ops.example.com", "https://admin.example.com"}, GetEnvStringList("CORS_ALLOWED_ORIGINS", def))

	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	assert.Equal(t, def, GetEnvStringList("CORS_ALLOWED_ORIGINS", def))
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("NOTIFY_HEARTBEAT_TZ", "")
	assert.Equal(t, "UTC", GetEnvString("NOTIFY_HEARTBEAT_TZ", "UTC"))

	t.Setenv("NOTIFY_HEARTBEAT_TZ", "Asia/Shanghai")
	assert.Equal(t, "Asia/Shanghai", GetEnvString("NOTIFY_HEARTBEAT_TZ", "UTC"))
}

func TestValidateDurationRange(t *testing.T) {
	assert.NoError(t, ValidateDurationRange(time.Second, time.Second, time.Minute))
	assert.Error(t, ValidateDurationRange(time.Millisecond, time.Second, time.Minute))
	assert.Error(t, ValidateDurationRange(time.Hour, time.Second, time.Minute))
	assert.Error(t, ValidateDurationRange(time.Second, time.Minute, time.Second))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
}
