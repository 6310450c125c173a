package config

// secretPlaceholder replaces sensitive values wherever configuration is
// printed or dumped.
const secretPlaceholder = "<secret>"

// SecretString holds a sensitive configuration value such as an access
// token. It formats and dumps as a fixed placeholder so the value never
// ends up in logs or debug reports, the real value is only reachable
// through an explicit string conversion.
type SecretString string

// String implements fmt.Stringer, masking the value.
func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return secretPlaceholder
}

// MarshalYAML implements yaml.Marshaler, masking the value in dumps.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return secretPlaceholder, nil
}
