package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

// Config points the suite at a running server seeded with one order and one
// vendor (see cmd/seed). Without E2E_API_URL the suite is skipped.
type Config struct {
	APIURL    string `envconfig:"E2E_API_URL"`
	FeedAddr  string `envconfig:"E2E_FEED_ADDR" default:"localhost:9090"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	OrderID   string `envconfig:"E2E_ORDER_ID" default:"1001"`
	VendorID  string `envconfig:"E2E_VENDOR_ID" default:"vendor-a"`
	// E2E_DEBUG_JSON dumps every feed frame as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
