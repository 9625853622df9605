/*

This file contains the default protection configuration attached to newly
initialized pools. These values are used until governance tunes a pool
through the admin surface, and as the fallback when no active configuration
is found in the database during startup.

*/

package config

import (
	"github.com/meridian-dex/mevshield/internal/types"
)

// DefaultProtectionConfig provides a baseline configuration for pool
// protection. Dynamic fees are enabled everywhere; the fee ceiling starts at
// 2x and governance can raise it per pool up to the 5x validation cap.
var DefaultProtectionConfig = types.MEVProtectionConfig{
	VolatilityThreshold: 3000, // Volatility above 30% is treated as elevated.
	BaseFeeMultiplier:   100,  // 1.0x: no standing markup on quiet pools.
	MaxFeeMultiplier:    200,  // 2.0x ceiling.
	MEVDetectionWindow:  300,  // Five minutes of lookback for burst detection.
	IsEnabled:           true,
}
