package hardware

import "strings"

// parseWMIC reads `wmic ... /format:csv` output with columns
// Node,AdapterRAM,Name,PNPDeviceID.
func parseWMIC(out string) GPUList {
	var gpus GPUList
	idx := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Node,") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		name := strings.TrimSpace(parts[2])
		if name == "" || name == "Name" {
			continue
		}

		// Skip Microsoft Basic Display
		lower := strings.ToLower(name)
		if strings.Contains(lower, "microsoft") || strings.Contains(lower, "basic") {
			continue
		}

		vendor := detectVendorFromName(name)
		gpus = append(gpus, &GPU{
			Index:    idx,
			Name:     name,
			Vendor:   vendor,
			Encoders: encodersForVendor(vendor),
		})
		idx++
	}
	return gpus
}

func detectVendorFromName(name string) Vendor {
	nameLower := strings.ToLower(name)
	switch {
	case strings.Contains(nameLower, "nvidia") || strings.Contains(nameLower, "geforce") ||
		strings.Contains(nameLower, "rtx") || strings.Contains(nameLower, "gtx"):
		return VendorNVIDIA
	case strings.Contains(nameLower, "amd") || strings.Contains(nameLower, "radeon") ||
		strings.Contains(nameLower, "rx "):
		return VendorAMD
	case strings.Contains(nameLower, "intel") || strings.Contains(nameLower, "iris") ||
		strings.Contains(nameLower, "uhd"):
		return VendorIntel
	}
	return VendorUnknown
}
