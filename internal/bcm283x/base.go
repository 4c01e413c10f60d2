package bcm283x

import (
	"strings"

	"periph.io/x/host/v3/distro"
)

// Peripheral base addresses as seen from the ARM cores.
const (
	BaseBCM2835 uint64 = 0x20000000 // Pi 1, Zero
	BaseBCM2836 uint64 = 0x3F000000 // Pi 2, Pi 3, Zero 2
	BaseBCM2711 uint64 = 0xFE000000 // Pi 4, CM4, Pi 400
)

// PeripheralBase detects the SoC from the device tree. It falls back to
// BaseBCM2836 when nothing matches.
func PeripheralBase() uint64 {
	return baseFor(distro.DTCompatible())
}

func baseFor(compatible []string) uint64 {
	for _, c := range compatible {
		switch {
		case strings.Contains(c, "bcm2711"):
			return BaseBCM2711
		case strings.Contains(c, "bcm2837"), strings.Contains(c, "bcm2836"),
			strings.Contains(c, "bcm2710"), strings.Contains(c, "bcm2709"):
			return BaseBCM2836
		case strings.Contains(c, "bcm2835"), strings.Contains(c, "bcm2708"):
			return BaseBCM2835
		}
	}
	return BaseBCM2836
}
