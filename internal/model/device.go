// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// TransportKind represents how a printer is physically reached
type TransportKind string

const (
	TransportSerial    TransportKind = "SERIAL"
	TransportUSB       TransportKind = "USB"
	TransportBluetooth TransportKind = "BLUETOOTH"
	TransportEthernet  TransportKind = "ETHERNET"
	TransportWiFi      TransportKind = "WIFI"
)

// AllTransportKinds lists every transport kind in display order
var AllTransportKinds = []TransportKind{
	TransportSerial,
	TransportUSB,
	TransportBluetooth,
	TransportEthernet,
	TransportWiFi,
}

// IsNetwork reports whether the kind is served by the network transport
func (k TransportKind) IsNetwork() bool {
	return k == TransportEthernet || k == TransportWiFi
}

// Valid checks if the kind is one of the known transport kinds
func (k TransportKind) Valid() bool {
	for _, known := range AllTransportKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseTransportKind parses a transport kind case-insensitively
func ParseTransportKind(s string) (TransportKind, error) {
	kind := TransportKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", NewConfigurationError("transport", "unknown transport kind %q", s)
	}
	return kind, nil
}

// PrinterClass represents the printing technology of a device
type PrinterClass string

const (
	ClassThermal PrinterClass = "THERMAL"
	ClassImpact  PrinterClass = "IMPACT"
	ClassLaser   PrinterClass = "LASER"
	ClassInkjet  PrinterClass = "INKJET"
)

// CommandFamily selects the escape-sequence dialect a printer understands
type CommandFamily string

const (
	FamilyESCPOS CommandFamily = "ESCPOS"
	FamilyStar   CommandFamily = "STAR"
)

// Profile defaults
const (
	DefaultBaudRate     = 9600
	DefaultNetworkPort  = 9100
	DefaultPaperWidth   = 48
	DefaultCharacterSet = "CP437"
)

// DeviceProfile is the immutable configuration of one printer.
//
// PaperWidth is expressed in printable characters per line (48 for an 80mm roll
// in font A). USB and Bluetooth devices carry no address: they are resolved at
// connect time through the host device picker.
type DeviceProfile struct {
	Class        PrinterClass  `json:"class" mapstructure:"class"`
	Vendor       string        `json:"vendor,omitempty" mapstructure:"vendor"`
	Model        string        `json:"model,omitempty" mapstructure:"model"`
	Transport    TransportKind `json:"transport" mapstructure:"transport"`
	SerialPort   string        `json:"serial_port,omitempty" mapstructure:"serial_port"`
	BaudRate     int           `json:"baud_rate,omitempty" mapstructure:"baud_rate"`
	IPAddress    string        `json:"ip_address,omitempty" mapstructure:"ip_address"`
	Port         int           `json:"port,omitempty" mapstructure:"port"`
	USBVendorID  uint16        `json:"usb_vendor_id,omitempty" mapstructure:"usb_vendor_id"`
	DeviceHint   string        `json:"device_hint,omitempty" mapstructure:"device_hint"`
	PaperWidth   int           `json:"paper_width" mapstructure:"paper_width"`
	CharacterSet string        `json:"character_set" mapstructure:"character_set"`
	CommandSet   CommandFamily `json:"command_set" mapstructure:"command_set"`
}

// GenericThermalProfile returns the fallback profile for an unidentified USB printer
func GenericThermalProfile() DeviceProfile {
	return DeviceProfile{
		Class:      ClassThermal,
		Vendor:     "Generic",
		Model:      "Thermal Receipt Printer",
		Transport:  TransportUSB,
		CommandSet: FamilyESCPOS,
	}.WithDefaults()
}

// WithDefaults returns a copy of the profile with zero fields set to their defaults
func (p DeviceProfile) WithDefaults() DeviceProfile {
	if p.Class == "" {
		p.Class = ClassThermal
	}
	if p.CommandSet == "" {
		p.CommandSet = FamilyESCPOS
	}
	if p.PaperWidth == 0 {
		p.PaperWidth = DefaultPaperWidth
	}
	if p.CharacterSet == "" {
		p.CharacterSet = DefaultCharacterSet
	}
	switch {
	case p.Transport == TransportSerial && p.BaudRate == 0:
		p.BaudRate = DefaultBaudRate
	case p.Transport.IsNetwork() && p.Port == 0:
		p.Port = DefaultNetworkPort
	}
	return p
}

// Validate checks that the profile can drive a printer
func (p DeviceProfile) Validate() error {
	if !p.Transport.Valid() {
		return NewConfigurationError("transport", "unknown transport kind %q", p.Transport)
	}
	switch p.CommandSet {
	case FamilyESCPOS, FamilyStar:
	default:
		return NewConfigurationError("command_set", "unsupported command set family %q", p.CommandSet)
	}
	if p.PaperWidth <= 0 {
		return NewConfigurationError("paper_width", "paper width must be positive, got %d", p.PaperWidth)
	}

	switch {
	case p.Transport == TransportSerial:
		if p.SerialPort == "" {
			return NewConfigurationError("serial_port", "serial port path is required")
		}
		if p.BaudRate <= 0 {
			return NewConfigurationError("baud_rate", "invalid baud rate: %d", p.BaudRate)
		}
	case p.Transport.IsNetwork():
		if p.IPAddress == "" {
			return NewConfigurationError("ip_address", "network printers require an explicit IP address")
		}
		if p.Port < 1 || p.Port > 65535 {
			return NewConfigurationError("port", "invalid port number: %d", p.Port)
		}
	}

	return nil
}

// Address returns a display address for the profile
func (p DeviceProfile) Address() string {
	switch {
	case p.Transport == TransportSerial:
		return fmt.Sprintf("%s@%d", p.SerialPort, p.BaudRate)
	case p.Transport.IsNetwork():
		return fmt.Sprintf("%s:%d", p.IPAddress, p.Port)
	case p.Transport == TransportUSB && p.USBVendorID != 0:
		return fmt.Sprintf("usb:%04X", p.USBVendorID)
	default:
		return strings.ToLower(string(p.Transport))
	}
}

// Value stores the profile as JSONB
func (p DeviceProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan loads the profile from a JSONB column
func (p *DeviceProfile) Scan(value interface{}) error {
	if value == nil {
		*p = DeviceProfile{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unexpected profile column type %T", value)
	}
	return json.Unmarshal(bytes, p)
}
