package audit

// Settings contains the trust rules packages and modules are audited against
type Settings struct {
	// Licenses is the ordered allow-list of license names accepted for packages and modules
	Licenses []string
	// VendorTokens are the supported-flag values accepted for a module shipped in a package (default: external)
	VendorTokens []string
	// LiveTokens are the supported-flag values accepted for a module found on a running system (default: yes, external)
	LiveTokens []string
	// KernelFlavor restricts symbol requirements to one kernel flavor; empty keeps all flavors
	KernelFlavor string
	// PatternCacheSize bounds the number of compiled hardware patterns kept in memory (default: 1024)
	PatternCacheSize int
}

const (
	// SupportedExternal marks modules supported jointly by the OS vendor and the hardware vendor.
	SupportedExternal = "external"
	// SupportedInHouse marks modules supported by the OS vendor only.
	SupportedInHouse = "yes"
)

// DefaultSettings returns the default configuration for package audits
func DefaultSettings() Settings {
	return Settings{
		Licenses: []string{
			"GPL",
			"GPL v2",
			"GPL and additional rights",
			"Dual BSD/GPL",
			"Dual MIT/GPL",
			"Dual MPL/GPL",
			"GPL-2.0",
			"GPL-2.0-only",
			"GPL-2.0-or-later",
			"GPL-2.0+",
			"GPLv2",
			"GPLv2+",
			"LGPL-2.1-only",
			"LGPL-2.1-or-later",
			"BSD-3-Clause",
			"MIT",
		},
		VendorTokens:     []string{SupportedExternal},
		LiveTokens:       []string{SupportedInHouse, SupportedExternal},
		PatternCacheSize: 1024,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Licenses == nil {
		s.Licenses = def.Licenses
	}
	if s.VendorTokens == nil {
		s.VendorTokens = def.VendorTokens
	}
	if s.LiveTokens == nil {
		s.LiveTokens = def.LiveTokens
	}
	if s.PatternCacheSize <= 0 {
		s.PatternCacheSize = def.PatternCacheSize
	}
	return s
}
