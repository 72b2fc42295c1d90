package display

// NetworkInfo is what the network screen can show
type NetworkInfo struct {
	Address     string
	SSID        string
	AccessPoint bool
	Encrypted   bool
	Password    string

	ShowIP          bool
	ShowSSID        bool
	ExhibitPassword bool
}

// ShowNetworkInfo draws the address, network name and, for an access
// point, its password. force shows address and name regardless of the
// boot screen preferences.
func ShowNetworkInfo(d Display, info NetworkInfo, force bool) error {
	d.Clear()

	if force || info.ShowIP {
		d.DrawText(10, 12, info.Address)
	}
	if force || info.ShowSSID {
		d.DrawText(10, 32, info.SSID)
	}
	if info.AccessPoint && info.ExhibitPassword {
		if info.Encrypted {
			d.DrawText(10, 52, info.Password)
		} else {
			d.DrawText(10, 52, "no pw required")
		}
	}

	return d.Present()
}
