package config

const (
	// OrientationLandscape is the engine's default page layout (-l).
	OrientationLandscape = "landscape"

	// OrientationPortrait selects the portrait page layout (-p).
	OrientationPortrait = "portrait"
)

// NormalizeOrientation maps short and legacy orientation names to the
// canonical values.
//
// Mappings:
//   - "", "l", "land" -> "landscape"
//   - "p", "port" -> "portrait"
func NormalizeOrientation(orientation string) string {
	switch orientation {
	case "", "l", "land":
		return OrientationLandscape
	case "p", "port":
		return OrientationPortrait
	default:
		return orientation
	}
}
