package config

// Specification of cover image resizing mode.
// Stored in configuration as a number (yaml.v3 does not do TextUnmarshaler).
type ImageResizeMode int

const (
	ImageResizeModeNone ImageResizeMode = iota
	ImageResizeModeKeepAR
	ImageResizeModeStretch
)

func (m ImageResizeMode) String() string {
	switch m {
	case ImageResizeModeKeepAR:
		return "keepAR"
	case ImageResizeModeStretch:
		return "stretch"
	default:
		return "none"
	}
}

func ImageResizeModeNames() []string {
	return []string{ImageResizeModeNone.String(), ImageResizeModeKeepAR.String(), ImageResizeModeStretch.String()}
}
