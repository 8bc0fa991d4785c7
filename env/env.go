package env

import (
	"os"
	"strings"
)

// Args are the command line switches shared by the station commands.
type Args struct {
	ConfigPath string
	Verbose    bool
	Test       bool // no uploads leave the station
	Listen     string
	Cycles     int // stop after this many wakes, 0 runs forever
}

// Endpoints are the deployment specific secrets, read from the environment so
// they never land in the site config file.
type Endpoints struct {
	MQTTBroker   string
	MQTTUser     string
	MQTTPassword string
	WowSiteID    string
	WowPin       string
	ArchiveDSN   string
	SendProm     bool
}

func LookupEndpoints() Endpoints {
	return Endpoints{
		MQTTBroker:   lookup("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTUser:     lookup("MQTT_USER", ""),
		MQTTPassword: lookup("MQTT_PASSWORD", ""),
		WowSiteID:    lookup("WOWSITEID", ""),
		WowPin:       lookup("WOWPIN", ""),
		ArchiveDSN:   lookup("ARCHIVE_DSN", ""),
		SendProm:     lookup("SENDPROMDATA", "") == "true",
	}
}

func lookup(key, def string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
