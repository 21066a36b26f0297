package domain

// Device describes one network device in the fleet. The fields mirror the
// connection parameters consumed by the transport layer; beyond presence
// checks they are treated as opaque.
type Device struct {
	DeviceType string `json:"device_type"`
	Host       string `json:"host"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Secret     string `json:"secret,omitempty"` // privileged-mode credential
}

// ID returns the device identity key. Hosts are unique within a fleet;
// DeviceType is carried alongside for heterogeneous inventories.
func (d Device) ID() string {
	return d.Host
}
