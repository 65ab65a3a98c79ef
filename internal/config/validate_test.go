package config

import "testing"

func baseCast() CastConfig {
	return CastConfig{
		Name:        "desk0",
		Kind:        "desktop",
		RateFPS:     30,
		ScaleWidth:  64,
		ScaleHeight: 32,
		Protocol:    "ddp",
		Host:        "192.0.2.10",
	}
}

func TestValidateTieredMissingDestinationsIsFatal(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Host = ""
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for empty destinations")
	}
}

func TestValidateTieredInvalidIPIsFatal(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Host = "not-an-ip"
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for invalid destination IP")
	}
}

func TestValidateTieredMulticastTileMismatchIsFatal(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Multicast = true
	cast.TileX, cast.TileY = 2, 1
	cast.Devices = []DeviceTarget{{Index: 0, Addr: "10.0.0.1"}}
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for tile/device count mismatch")
	}
}

func TestValidateTieredSingleTileReplicatesWithoutError(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Multicast = true
	cast.TileX, cast.TileY = 1, 1
	cast.Devices = []DeviceTarget{{Index: 0, Addr: "10.0.0.1"}, {Index: 1, Addr: "10.0.0.2"}}
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("1x1 tile with multiple destinations should replicate, not fatal: %v", result.Fatals)
	}
}

func TestValidateTieredGammaOutOfRangeIsFatal(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Filters.Gamma = 5
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for out-of-range gamma")
	}
}

func TestValidateTieredScaleClampedToDefault(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.ScaleWidth = 0
	cast.ScaleHeight = 0
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("unexpected fatals: %v", result.Fatals)
	}
	if cfg.Casts[0].ScaleWidth != cfg.DefaultScaleWidth {
		t.Fatalf("expected scale_width defaulted to %d, got %d", cfg.DefaultScaleWidth, cfg.Casts[0].ScaleWidth)
	}
}

func TestValidateTieredDuplicateCastNameIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Casts = []CastConfig{baseCast(), baseCast()}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for duplicate cast name")
	}
}

func TestValidateTieredInvalidRecordSinkIsFatal(t *testing.T) {
	cfg := Default()
	cast := baseCast()
	cast.Record.Enabled = true
	cast.Record.Sink = "ftp"
	cfg.Casts = []CastConfig{cast}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected fatal for invalid record sink")
	}
}

func TestHasFatals(t *testing.T) {
	r := &ValidateResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.fatal("boom")
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}
