package ble

// AD structure types we care about from the advertising payload.
// See Bluetooth Core Specification Supplement, Part A.
const (
	adTypeFlags              = 0x01
	adTypeIncomplete16       = 0x02
	adTypeComplete16         = 0x03
	adTypeIncomplete32       = 0x04
	adTypeComplete32         = 0x05
	adTypeIncomplete128      = 0x06
	adTypeComplete128        = 0x07
	adTypeServiceData16      = 0x16
	flagsLimitedDiscoverable = 0x01
	flagsGeneralDiscoverable = 0x02
)

// advSummary is what we extract from a raw advertising payload.
type advSummary struct {
	serviceCount int
	discoverable bool
	serviceData  []byte
}

// parseAdvPayload walks the length/type/value AD structures of a raw
// advertising payload. Truncated structures end the walk; whatever was
// parsed up to that point is returned.
func parseAdvPayload(raw []byte) advSummary {
	var sum advSummary
	for len(raw) >= 2 {
		length := int(raw[0])
		if length == 0 || length+1 > len(raw) {
			break
		}
		adType := raw[1]
		value := raw[2 : length+1]

		switch adType {
		case adTypeFlags:
			if len(value) >= 1 {
				sum.discoverable = value[0]&(flagsLimitedDiscoverable|flagsGeneralDiscoverable) != 0
			}
		case adTypeIncomplete16, adTypeComplete16:
			sum.serviceCount += len(value) / 2
		case adTypeIncomplete32, adTypeComplete32:
			sum.serviceCount += len(value) / 4
		case adTypeIncomplete128, adTypeComplete128:
			sum.serviceCount += len(value) / 16
		case adTypeServiceData16:
			if len(value) > 2 {
				sum.serviceData = append([]byte(nil), value[2:]...)
			}
		}

		raw = raw[length+1:]
	}
	return sum
}
