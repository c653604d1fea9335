package domain

// PingResponse represents the response from a ping.
type PingResponse struct {
	APIVersion     string
	OSType         string
	Experimental   bool
	BuilderVersion string
}

// Version represents engine version information.
type Version struct {
	Version       string
	APIVersion    string
	MinAPIVersion string
	Os            string
	Arch          string
	KernelVersion string
}
