package version

// Version is the current fmsearch release.
const Version = "0.4.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "fmsearch version " + Version
}

// UserAgent is sent on outgoing webhook requests.
func UserAgent() string {
	return "fmsearch/" + Version
}
