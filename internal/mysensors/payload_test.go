package mysensors

import (
	"errors"
	"strconv"
	"testing"
)

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    uint8
		wantErr bool
	}{
		{"simple", "42", 42, false},
		{"lowest", "1", 1, false},
		{"highest", "254", 254, false},
		{"trailing newline", "7\n", 7, false},
		{"gateway id", "0", 0, true},
		{"unassigned id", "255", 0, true},
		{"overflow", "300", 0, true},
		{"not a number", "abc", 0, true},
		{"hex", "0x2A", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodeID([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrProtocolDecode) {
					t.Errorf("ParseNodeID(%q) error = %v, want ErrProtocolDecode", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNodeID(%q) error = %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseNodeID(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}
}

func TestParseUnitSystem(t *testing.T) {
	tests := []struct {
		payload string
		want    UnitSystem
	}{
		{"I", Imperial},
		{"M", Metric},
		{"i", Metric},
		{"", Metric},
		{"II", Metric},
	}

	for _, tt := range tests {
		if got := ParseUnitSystem([]byte(tt.payload)); got != tt.want {
			t.Errorf("ParseUnitSystem(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{21.5, "21.500000"},
		{0, "0.000000"},
		{-3.25, "-3.250000"},
		{1013.123456, "1013.123456"},
	}

	for _, tt := range tests {
		got := FormatFloat(tt.value)
		if got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.value, got, tt.want)
		}
		back, err := strconv.ParseFloat(got, 64)
		if err != nil || back != tt.value {
			t.Errorf("FormatFloat(%v) does not parse back: %v, %v", tt.value, back, err)
		}
	}
}

func TestFormatInt(t *testing.T) {
	if got := FormatInt(-17); got != "-17" {
		t.Errorf("FormatInt(-17) = %q", got)
	}
}

func TestParseSensorAndValueTypes(t *testing.T) {
	if got, err := ParseSensorType("S_TEMP"); err != nil || got != SensorTemp {
		t.Errorf("ParseSensorType(S_TEMP) = %v, %v", got, err)
	}
	if got, err := ParseSensorType("light"); err != nil || got != SensorBinary {
		t.Errorf("ParseSensorType(light) = %v, %v", got, err)
	}
	if got, err := ParseValueType("v_temp"); err != nil || got != ValueTemp {
		t.Errorf("ParseValueType(v_temp) = %v, %v", got, err)
	}
	if got, err := ParseValueType("HUM"); err != nil || got != ValueHum {
		t.Errorf("ParseValueType(HUM) = %v, %v", got, err)
	}
	if _, err := ParseValueType("V_NOPE"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseValueType(V_NOPE) error = %v, want ErrUnknownType", err)
	}
	if SensorHum.String() != "S_HUM" || ValueWatt.String() != "V_WATT" || InternalReboot.String() != "I_REBOOT" {
		t.Error("String() does not return MySensors constant names")
	}
	if got := Command(9).String(); got != "C_9" {
		t.Errorf("Command(9).String() = %q", got)
	}
}
