package ble

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Station advertisement format (little-endian): magic 0x01 0xD0, device_id
// uint32, reading_id uint32, temperature float32 (°C), pressure float32
// (hPa), humidity float32 (%).
const (
	payloadMagic0 = 0x01
	payloadMagic1 = 0xD0
	payloadLen    = 22

	// CompanyID is the manufacturer id the stations advertise under.
	CompanyID = 0xFFFF
)

// Reading is a parsed station advertisement.
type Reading struct {
	DeviceID    uint32
	ReadingID   uint32
	Temperature float64 // °C
	Pressure    float64 // hPa
	Humidity    float64 // %
}

// ParseReading decodes manufacturer data from a station advertisement.
func ParseReading(data []byte) (Reading, error) {
	if len(data) < payloadLen {
		return Reading{}, fmt.Errorf("payload too short: %d", len(data))
	}
	if data[0] != payloadMagic0 || data[1] != payloadMagic1 {
		return Reading{}, fmt.Errorf("invalid magic: %02X %02X", data[0], data[1])
	}
	r := Reading{
		DeviceID:    binary.LittleEndian.Uint32(data[2:6]),
		ReadingID:   binary.LittleEndian.Uint32(data[6:10]),
		Temperature: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[10:14]))),
		Pressure:    float64(math.Float32frombits(binary.LittleEndian.Uint32(data[14:18]))),
		Humidity:    float64(math.Float32frombits(binary.LittleEndian.Uint32(data[18:22]))),
	}
	if math.IsNaN(r.Pressure) || math.IsInf(r.Pressure, 0) || r.Pressure <= 0 {
		return Reading{}, fmt.Errorf("invalid pressure %v", r.Pressure)
	}
	return r, nil
}
