// internal/discovery/database.go
package discovery

import (
	"sort"
	"sync"

	"kitchen-print-service/internal/model"
)

// Preset is the best-guess profile for a printer vendor
type Preset struct {
	VendorID uint16
	Name     string
	Profile  model.DeviceProfile
	products map[uint16]string
}

// Model returns the known model name for a product id
func (p *Preset) Model(productID uint16) (string, bool) {
	name, ok := p.products[productID]
	return name, ok
}

// PresetDatabase maps USB vendor ids to printer presets
type PresetDatabase struct {
	mutex   sync.RWMutex
	presets map[uint16]*Preset
}

// NewPresetDatabase creates the database populated with the known receipt printer vendors
func NewPresetDatabase() *PresetDatabase {
	db := &PresetDatabase{
		presets: make(map[uint16]*Preset),
	}
	db.initialize()
	return db
}

func (db *PresetDatabase) initialize() {
	// EPSON (0x04B8)
	db.AddPreset(&Preset{
		VendorID: 0x04B8,
		Name:     "Seiko Epson Corporation",
		Profile:  usbPreset("Epson", "TM-T88", model.FamilyESCPOS, 48),
		products: map[uint16]string{
			0x0202: "TM-T88IV",
			0x0203: "TM-T88V",
			0x0214: "TM-T88VI",
			0x0215: "TM-T20III",
			0x0216: "TM-T82III",
			0x0217: "TM-M30",
		},
	})

	// STAR (0x0519)
	db.AddPreset(&Preset{
		VendorID: 0x0519,
		Name:     "Star Micronics Co., Ltd.",
		Profile:  usbPreset("Star", "TSP100", model.FamilyStar, 48),
		products: map[uint16]string{
			0x0001: "TSP143III",
			0x0002: "TSP143IIIU",
			0x0003: "TSP654II",
		},
	})

	// BIXOLON (0x1504)
	db.AddPreset(&Preset{
		VendorID: 0x1504,
		Name:     "BIXOLON Co., Ltd.",
		Profile:  usbPreset("Bixolon", "SRP-350", model.FamilyESCPOS, 42),
		products: map[uint16]string{
			0x0006: "SRP-330II",
			0x0007: "SRP-350III",
		},
	})

	// CITIZEN (0x1D90)
	db.AddPreset(&Preset{
		VendorID: 0x1D90,
		Name:     "Citizen Systems Japan Co., Ltd.",
		Profile:  usbPreset("Citizen", "CT-S310", model.FamilyESCPOS, 48),
		products: map[uint16]string{
			0x2060: "CT-S310II",
			0x2168: "CT-S4000",
		},
	})

	// Unbranded POS-58/POS-80 boards
	db.AddPreset(&Preset{
		VendorID: 0x0416,
		Name:     "Winbond Electronics Corp.",
		Profile:  usbPreset("Generic", "POS-58", model.FamilyESCPOS, 32),
	})
	db.AddPreset(&Preset{
		VendorID: 0x0FE6,
		Name:     "ICS Advent",
		Profile:  usbPreset("Generic", "POS-80", model.FamilyESCPOS, 48),
	})
	db.AddPreset(&Preset{
		VendorID: 0x28E9,
		Name:     "GigaDevice Semiconductor",
		Profile:  usbPreset("Generic", "POS-80", model.FamilyESCPOS, 48),
	})
}

func usbPreset(vendor, modelName string, family model.CommandFamily, width int) model.DeviceProfile {
	return model.DeviceProfile{
		Class:      model.ClassThermal,
		Vendor:     vendor,
		Model:      modelName,
		Transport:  model.TransportUSB,
		PaperWidth: width,
		CommandSet: family,
	}.WithDefaults()
}

// AddPreset registers or replaces the preset for its vendor id
func (db *PresetDatabase) AddPreset(preset *Preset) {
	if preset.products == nil {
		preset.products = make(map[uint16]string)
	}
	preset.Profile.USBVendorID = preset.VendorID

	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.presets[preset.VendorID] = preset
}

// Lookup returns the preset for a vendor id
func (db *PresetDatabase) Lookup(vendorID uint16) (*Preset, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	preset, ok := db.presets[vendorID]
	return preset, ok
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *PresetDatabase) IsKnownVendor(vendorID uint16) bool {
	_, ok := db.Lookup(vendorID)
	return ok
}

// Vendors returns the known vendor ids in ascending order
func (db *PresetDatabase) Vendors() []uint16 {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	vendors := make([]uint16, 0, len(db.presets))
	for id := range db.presets {
		vendors = append(vendors, id)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
	return vendors
}

// Match returns the preset profile for a device, refined with the product's model name
func (db *PresetDatabase) Match(vendorID, productID uint16) (model.DeviceProfile, bool) {
	preset, ok := db.Lookup(vendorID)
	if !ok {
		return model.DeviceProfile{}, false
	}
	profile := preset.Profile
	if name, ok := preset.Model(productID); ok {
		profile.Model = name
	}
	return profile, true
}
