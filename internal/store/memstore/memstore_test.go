package memstore

import (
	"testing"

	"ffarm/internal/farm"
	"ffarm/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) farm.Store { return New() })
}
