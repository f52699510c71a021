package mongo

import (
	"testing"
	"time"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}.withDefaults()

	if opts.URI != "mongodb://localhost:27017" || opts.Database != "voicebook" {
		t.Errorf("Unexpected defaults %+v", opts)
	}
	if opts.ConnectTimeout != 10*time.Second {
		t.Errorf("Expected 10s connect timeout, got %v", opts.ConnectTimeout)
	}

	driver := opts.driverOptions()
	if driver.MaxPoolSize == nil || *driver.MaxPoolSize != 4 {
		t.Errorf("Expected pool of 4, got %v", driver.MaxPoolSize)
	}
	if driver.ServerSelectionTimeout == nil || *driver.ServerSelectionTimeout != 5*time.Second {
		t.Errorf("Expected 5s server selection timeout, got %v", driver.ServerSelectionTimeout)
	}
}

func TestOptions_KeepsExplicitValues(t *testing.T) {
	opts := Options{URI: "mongodb://cache:27017", Database: "kiosk", ConnectTimeout: 2 * time.Second}.withDefaults()

	if opts.URI != "mongodb://cache:27017" || opts.Database != "kiosk" || opts.ConnectTimeout != 2*time.Second {
		t.Errorf("Expected explicit values to be kept, got %+v", opts)
	}
}
