package prepaid

import (
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	JPY  = types.JPY
	CAD  = types.CAD
	AUD  = types.AUD
	SGD  = types.SGD
	MYR  = types.MYR
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// Re-export package pricing helpers
var (
	LineTotal   = pack.LineTotal
	BundleTotal = pack.BundleTotal
)
