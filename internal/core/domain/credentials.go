package domain

// Credentials holds the tokens for the sync service. The device token is
// long-lived and issued at registration; the user token is short-lived
// and exchanged from the device token before each session.
type Credentials struct {
	DeviceToken string `json:"devicetoken"`
	UserToken   string `json:"usertoken"`
}

// Registered reports whether the device has been registered.
func (c Credentials) Registered() bool {
	return c.DeviceToken != ""
}
