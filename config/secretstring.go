package config

// SecretStringValue replaces real secrets in any marshaled output. Exported
// so tests can assert masking.
const SecretStringValue = "<secret>"

// SecretString holds values which must never surface in logs, dumped
// configurations or debug reports, the Notion integration token being the
// prime example. Marshaling of any kind produces the mask, never the value.
type SecretString string

// String masks non-empty values for all fmt verbs.
func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(`"` + SecretStringValue + `"`), nil
}

func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}
