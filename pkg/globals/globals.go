package globals

import "time"

// FirmwareVersion is set at build time via -ldflags
var FirmwareVersion = "dev"

// ProjectTitle is shown in page titles
const ProjectTitle = "Tobi's General Display"

// Writable data directory
var DataDir = "/data"

// Images available for display and slideshow
var ImagesPath = DataDir + "/images"

// Firmware data
var FirmwareDataDir = DataDir + "/.firmware-data"

// Runtime config
var ConfigPath = FirmwareDataDir + "/config.json"

// Durable settings record (emulated EEPROM region)
var SettingsPath = FirmwareDataDir + "/settings.bin"

// Logs
var LogsPath = FirmwareDataDir + "/display.log"

// WpaSupplicantPath for station credentials
var WpaSupplicantPath = "/etc/wpa_supplicant/wpa_supplicant-display.conf"

// SoftAP addressing
const (
	APAddress = "192.168.4.1"
	APNetmask = "255.255.255.0"
	APCIDR    = APAddress + "/24"
	DHCPRange = "192.168.4.2,192.168.4.20,255.255.255.0,24h"
)

// RebootDelay is how long a requested reboot waits so the response can be flushed
const RebootDelay = 5 * time.Second
