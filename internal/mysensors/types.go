package mysensors

import (
	"fmt"
	"strings"
)

// Node and child identifiers with protocol meaning.
const (
	// GatewayNodeID is the node ID of the gateway/controller side.
	GatewayNodeID uint8 = 0

	// UnassignedNodeID marks a node that has not been given an ID yet.
	// ID requests and responses travel on this node ID.
	UnassignedNodeID uint8 = 255

	// NodeChildID is the child ID used for node-level internal messages.
	NodeChildID uint8 = 0
)

// Command is the message category carried in the fourth topic level.
type Command uint8

// MySensors command classes.
const (
	CommandPresentation Command = 0
	CommandSet          Command = 1
	CommandReq          Command = 2
	CommandInternal     Command = 3
	CommandStream       Command = 4
)

var commandNames = map[Command]string{
	CommandPresentation: "C_PRESENTATION",
	CommandSet:          "C_SET",
	CommandReq:          "C_REQ",
	CommandInternal:     "C_INTERNAL",
	CommandStream:       "C_STREAM",
}

// String returns the MySensors constant name, or the number if unknown.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("C_%d", uint8(c))
}

// InternalType is the type level of a C_INTERNAL message.
type InternalType uint8

// MySensors internal message types.
const (
	InternalBatteryLevel          InternalType = 0
	InternalTime                  InternalType = 1
	InternalVersion               InternalType = 2
	InternalIDRequest             InternalType = 3
	InternalIDResponse            InternalType = 4
	InternalInclusionMode         InternalType = 5
	InternalConfig                InternalType = 6
	InternalFindParent            InternalType = 7
	InternalFindParentResponse    InternalType = 8
	InternalLogMessage            InternalType = 9
	InternalChildren              InternalType = 10
	InternalSketchName            InternalType = 11
	InternalSketchVersion         InternalType = 12
	InternalReboot                InternalType = 13
	InternalGatewayReady          InternalType = 14
	InternalSigningPresentation   InternalType = 15
	InternalNonceRequest          InternalType = 16
	InternalNonceResponse         InternalType = 17
	InternalHeartbeatRequest      InternalType = 18
	InternalPresentation          InternalType = 19
	InternalDiscoverRequest       InternalType = 20
	InternalDiscoverResponse      InternalType = 21
	InternalHeartbeatResponse     InternalType = 22
	InternalLocked                InternalType = 23
	InternalPing                  InternalType = 24
	InternalPong                  InternalType = 25
	InternalRegistrationRequest   InternalType = 26
	InternalRegistrationResponse  InternalType = 27
	InternalDebug                 InternalType = 28
	InternalSignalReportRequest   InternalType = 29
	InternalSignalReportReverse   InternalType = 30
	InternalSignalReportResponse  InternalType = 31
	InternalPreSleepNotification  InternalType = 32
	InternalPostSleepNotification InternalType = 33
)

var internalNames = map[InternalType]string{
	InternalBatteryLevel:          "I_BATTERY_LEVEL",
	InternalTime:                  "I_TIME",
	InternalVersion:               "I_VERSION",
	InternalIDRequest:             "I_ID_REQUEST",
	InternalIDResponse:            "I_ID_RESPONSE",
	InternalInclusionMode:         "I_INCLUSION_MODE",
	InternalConfig:                "I_CONFIG",
	InternalFindParent:            "I_FIND_PARENT",
	InternalFindParentResponse:    "I_FIND_PARENT_RESPONSE",
	InternalLogMessage:            "I_LOG_MESSAGE",
	InternalChildren:              "I_CHILDREN",
	InternalSketchName:            "I_SKETCH_NAME",
	InternalSketchVersion:         "I_SKETCH_VERSION",
	InternalReboot:                "I_REBOOT",
	InternalGatewayReady:          "I_GATEWAY_READY",
	InternalSigningPresentation:   "I_SIGNING_PRESENTATION",
	InternalNonceRequest:          "I_NONCE_REQUEST",
	InternalNonceResponse:         "I_NONCE_RESPONSE",
	InternalHeartbeatRequest:      "I_HEARTBEAT_REQUEST",
	InternalPresentation:          "I_PRESENTATION",
	InternalDiscoverRequest:       "I_DISCOVER_REQUEST",
	InternalDiscoverResponse:      "I_DISCOVER_RESPONSE",
	InternalHeartbeatResponse:     "I_HEARTBEAT_RESPONSE",
	InternalLocked:                "I_LOCKED",
	InternalPing:                  "I_PING",
	InternalPong:                  "I_PONG",
	InternalRegistrationRequest:   "I_REGISTRATION_REQUEST",
	InternalRegistrationResponse:  "I_REGISTRATION_RESPONSE",
	InternalDebug:                 "I_DEBUG",
	InternalSignalReportRequest:   "I_SIGNAL_REPORT_REQUEST",
	InternalSignalReportReverse:   "I_SIGNAL_REPORT_REVERSE",
	InternalSignalReportResponse:  "I_SIGNAL_REPORT_RESPONSE",
	InternalPreSleepNotification:  "I_PRE_SLEEP_NOTIFICATION",
	InternalPostSleepNotification: "I_POST_SLEEP_NOTIFICATION",
}

// String returns the MySensors constant name, or the number if unknown.
func (t InternalType) String() string {
	if name, ok := internalNames[t]; ok {
		return name
	}
	return fmt.Sprintf("I_%d", uint8(t))
}

// SensorType is the presentation type of a child sensor (S_* constants).
type SensorType uint8

// MySensors presentation types.
const (
	SensorDoor            SensorType = 0
	SensorMotion          SensorType = 1
	SensorSmoke           SensorType = 2
	SensorBinary          SensorType = 3
	SensorDimmer          SensorType = 4
	SensorCover           SensorType = 5
	SensorTemp            SensorType = 6
	SensorHum             SensorType = 7
	SensorBaro            SensorType = 8
	SensorWind            SensorType = 9
	SensorRain            SensorType = 10
	SensorUV              SensorType = 11
	SensorWeight          SensorType = 12
	SensorPower           SensorType = 13
	SensorHeater          SensorType = 14
	SensorDistance        SensorType = 15
	SensorLightLevel      SensorType = 16
	SensorArduinoNode     SensorType = 17
	SensorArduinoRepeater SensorType = 18
	SensorLock            SensorType = 19
	SensorIR              SensorType = 20
	SensorWater           SensorType = 21
	SensorAirQuality      SensorType = 22
	SensorCustom          SensorType = 23
	SensorDust            SensorType = 24
	SensorSceneController SensorType = 25
	SensorRGBLight        SensorType = 26
	SensorRGBWLight       SensorType = 27
	SensorColorSensor     SensorType = 28
	SensorHVAC            SensorType = 29
	SensorMultimeter      SensorType = 30
	SensorSprinkler       SensorType = 31
	SensorWaterLeak       SensorType = 32
	SensorSound           SensorType = 33
	SensorVibration       SensorType = 34
	SensorMoisture        SensorType = 35
	SensorInfo            SensorType = 36
	SensorGas             SensorType = 37
	SensorGPS             SensorType = 38
	SensorWaterQuality    SensorType = 39
)

var sensorNames = map[SensorType]string{
	SensorDoor:            "S_DOOR",
	SensorMotion:          "S_MOTION",
	SensorSmoke:           "S_SMOKE",
	SensorBinary:          "S_BINARY",
	SensorDimmer:          "S_DIMMER",
	SensorCover:           "S_COVER",
	SensorTemp:            "S_TEMP",
	SensorHum:             "S_HUM",
	SensorBaro:            "S_BARO",
	SensorWind:            "S_WIND",
	SensorRain:            "S_RAIN",
	SensorUV:              "S_UV",
	SensorWeight:          "S_WEIGHT",
	SensorPower:           "S_POWER",
	SensorHeater:          "S_HEATER",
	SensorDistance:        "S_DISTANCE",
	SensorLightLevel:      "S_LIGHT_LEVEL",
	SensorArduinoNode:     "S_ARDUINO_NODE",
	SensorArduinoRepeater: "S_ARDUINO_REPEATER_NODE",
	SensorLock:            "S_LOCK",
	SensorIR:              "S_IR",
	SensorWater:           "S_WATER",
	SensorAirQuality:      "S_AIR_QUALITY",
	SensorCustom:          "S_CUSTOM",
	SensorDust:            "S_DUST",
	SensorSceneController: "S_SCENE_CONTROLLER",
	SensorRGBLight:        "S_RGB_LIGHT",
	SensorRGBWLight:       "S_RGBW_LIGHT",
	SensorColorSensor:     "S_COLOR_SENSOR",
	SensorHVAC:            "S_HVAC",
	SensorMultimeter:      "S_MULTIMETER",
	SensorSprinkler:       "S_SPRINKLER",
	SensorWaterLeak:       "S_WATER_LEAK",
	SensorSound:           "S_SOUND",
	SensorVibration:       "S_VIBRATION",
	SensorMoisture:        "S_MOISTURE",
	SensorInfo:            "S_INFO",
	SensorGas:             "S_GAS",
	SensorGPS:             "S_GPS",
	SensorWaterQuality:    "S_WATER_QUALITY",
}

// String returns the MySensors constant name, or the number if unknown.
func (t SensorType) String() string {
	if name, ok := sensorNames[t]; ok {
		return name
	}
	return fmt.Sprintf("S_%d", uint8(t))
}

// ValueType is the data type of a C_SET or C_REQ message (V_* constants).
type ValueType uint8

// MySensors value types.
const (
	ValueTemp             ValueType = 0
	ValueHum              ValueType = 1
	ValueStatus           ValueType = 2
	ValuePercentage       ValueType = 3
	ValuePressure         ValueType = 4
	ValueForecast         ValueType = 5
	ValueRain             ValueType = 6
	ValueRainRate         ValueType = 7
	ValueWind             ValueType = 8
	ValueGust             ValueType = 9
	ValueDirection        ValueType = 10
	ValueUV               ValueType = 11
	ValueWeight           ValueType = 12
	ValueDistance         ValueType = 13
	ValueImpedance        ValueType = 14
	ValueArmed            ValueType = 15
	ValueTripped          ValueType = 16
	ValueWatt             ValueType = 17
	ValueKWh              ValueType = 18
	ValueSceneOn          ValueType = 19
	ValueSceneOff         ValueType = 20
	ValueHVACFlowState    ValueType = 21
	ValueHVACSpeed        ValueType = 22
	ValueLightLevel       ValueType = 23
	ValueVar1             ValueType = 24
	ValueVar2             ValueType = 25
	ValueVar3             ValueType = 26
	ValueVar4             ValueType = 27
	ValueVar5             ValueType = 28
	ValueUp               ValueType = 29
	ValueDown             ValueType = 30
	ValueStop             ValueType = 31
	ValueIRSend           ValueType = 32
	ValueIRReceive        ValueType = 33
	ValueFlow             ValueType = 34
	ValueVolume           ValueType = 35
	ValueLockStatus       ValueType = 36
	ValueLevel            ValueType = 37
	ValueVoltage          ValueType = 38
	ValueCurrent          ValueType = 39
	ValueRGB              ValueType = 40
	ValueRGBW             ValueType = 41
	ValueID               ValueType = 42
	ValueUnitPrefix       ValueType = 43
	ValueHVACSetpointCool ValueType = 44
	ValueHVACSetpointHeat ValueType = 45
	ValueHVACFlowMode     ValueType = 46
	ValueText             ValueType = 47
	ValueCustom           ValueType = 48
	ValuePosition         ValueType = 49
	ValueIRRecord         ValueType = 50
	ValuePH               ValueType = 51
	ValueORP              ValueType = 52
	ValueEC               ValueType = 53
	ValueVar              ValueType = 54
	ValueVA               ValueType = 55
	ValuePowerFactor      ValueType = 56
)

var valueNames = map[ValueType]string{
	ValueTemp:             "V_TEMP",
	ValueHum:              "V_HUM",
	ValueStatus:           "V_STATUS",
	ValuePercentage:       "V_PERCENTAGE",
	ValuePressure:         "V_PRESSURE",
	ValueForecast:         "V_FORECAST",
	ValueRain:             "V_RAIN",
	ValueRainRate:         "V_RAINRATE",
	ValueWind:             "V_WIND",
	ValueGust:             "V_GUST",
	ValueDirection:        "V_DIRECTION",
	ValueUV:               "V_UV",
	ValueWeight:           "V_WEIGHT",
	ValueDistance:         "V_DISTANCE",
	ValueImpedance:        "V_IMPEDANCE",
	ValueArmed:            "V_ARMED",
	ValueTripped:          "V_TRIPPED",
	ValueWatt:             "V_WATT",
	ValueKWh:              "V_KWH",
	ValueSceneOn:          "V_SCENE_ON",
	ValueSceneOff:         "V_SCENE_OFF",
	ValueHVACFlowState:    "V_HVAC_FLOW_STATE",
	ValueHVACSpeed:        "V_HVAC_SPEED",
	ValueLightLevel:       "V_LIGHT_LEVEL",
	ValueVar1:             "V_VAR1",
	ValueVar2:             "V_VAR2",
	ValueVar3:             "V_VAR3",
	ValueVar4:             "V_VAR4",
	ValueVar5:             "V_VAR5",
	ValueUp:               "V_UP",
	ValueDown:             "V_DOWN",
	ValueStop:             "V_STOP",
	ValueIRSend:           "V_IR_SEND",
	ValueIRReceive:        "V_IR_RECEIVE",
	ValueFlow:             "V_FLOW",
	ValueVolume:           "V_VOLUME",
	ValueLockStatus:       "V_LOCK_STATUS",
	ValueLevel:            "V_LEVEL",
	ValueVoltage:          "V_VOLTAGE",
	ValueCurrent:          "V_CURRENT",
	ValueRGB:              "V_RGB",
	ValueRGBW:             "V_RGBW",
	ValueID:               "V_ID",
	ValueUnitPrefix:       "V_UNIT_PREFIX",
	ValueHVACSetpointCool: "V_HVAC_SETPOINT_COOL",
	ValueHVACSetpointHeat: "V_HVAC_SETPOINT_HEAT",
	ValueHVACFlowMode:     "V_HVAC_FLOW_MODE",
	ValueText:             "V_TEXT",
	ValueCustom:           "V_CUSTOM",
	ValuePosition:         "V_POSITION",
	ValueIRRecord:         "V_IR_RECORD",
	ValuePH:               "V_PH",
	ValueORP:              "V_ORP",
	ValueEC:               "V_EC",
	ValueVar:              "V_VAR",
	ValueVA:               "V_VA",
	ValuePowerFactor:      "V_POWER_FACTOR",
}

// String returns the MySensors constant name, or the number if unknown.
func (t ValueType) String() string {
	if name, ok := valueNames[t]; ok {
		return name
	}
	return fmt.Sprintf("V_%d", uint8(t))
}

// Legacy names from MySensors 1.x that still appear in sketches and configs.
var (
	sensorAliases = map[string]SensorType{
		"S_LIGHT": SensorBinary,
	}
	valueAliases = map[string]ValueType{
		"V_LIGHT":  ValueStatus,
		"V_DIMMER": ValuePercentage,
	}
)

// ParseSensorType resolves an S_* name (case-insensitive, prefix optional).
//
// Example: "S_TEMP", "temp" and "s_temp" all return SensorTemp.
func ParseSensorType(name string) (SensorType, error) {
	key := normaliseName(name, "S_")
	if t, ok := sensorAliases[key]; ok {
		return t, nil
	}
	for t, n := range sensorNames {
		if n == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: sensor type %q", ErrUnknownType, name)
}

// ParseValueType resolves a V_* name (case-insensitive, prefix optional).
func ParseValueType(name string) (ValueType, error) {
	key := normaliseName(name, "V_")
	if t, ok := valueAliases[key]; ok {
		return t, nil
	}
	for t, n := range valueNames {
		if n == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: value type %q", ErrUnknownType, name)
}

// normaliseName upper-cases a constant name and adds the prefix if missing.
func normaliseName(name, prefix string) string {
	key := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(key, prefix) {
		key = prefix + key
	}
	return key
}
