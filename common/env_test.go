package common

import (
	"testing"
	"time"
)

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		ok      bool
		wantErr bool
	}{
		{"unset", "", 0, false, false},
		{"blank", "   ", 0, false, false},
		{"number", "8", 8, true, false},
		{"padded", " 3 ", 3, true, false},
		{"garbage", "many", 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(IOLimitEnv, tt.value)
			got, ok, err := EnvInt(IOLimitEnv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.ok || (!tt.wantErr && got != tt.want) {
				t.Fatalf("EnvInt = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEnvBoolAndDuration(t *testing.T) {
	t.Setenv(AbortOnFailureEnv, "true")
	if v, ok, err := EnvBool(AbortOnFailureEnv); err != nil || !ok || !v {
		t.Fatalf("EnvBool = %v, %v, %v", v, ok, err)
	}
	t.Setenv(EmitIntervalEnv, "250ms")
	if v, ok, err := EnvDuration(EmitIntervalEnv); err != nil || !ok || v != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", v, ok, err)
	}
	t.Setenv(EmitIntervalEnv, "soon")
	if _, _, err := EnvDuration(EmitIntervalEnv); err == nil {
		t.Fatal("expected a parse error")
	}
}
