package farm

import (
	"fmt"
	"time"
)

// PlantLookup resolves plant definitions; *Catalog satisfies it.
type PlantLookup interface {
	Plant(id int64) (PlantDefinition, bool)
}

func ReadyAt(b CropBatch, p PlantDefinition) time.Time {
	return b.PlantedAt.Add(p.HarvestDuration)
}

// DueForHarvest reports whether a Planted batch has reached its ready time.
func DueForHarvest(b CropBatch, p PlantDefinition, now time.Time) bool {
	return b.Status == StatusPlanted && !now.Before(ReadyAt(b, p))
}

// MinutesRemaining is ceil(remaining seconds / 60), 0 once ready.
func MinutesRemaining(b CropBatch, p PlantDefinition, now time.Time) int64 {
	remaining := ReadyAt(b, p).Sub(now)
	if remaining <= 0 {
		return 0
	}
	secs := int64((remaining + time.Second - 1) / time.Second)
	return (secs + 59) / 60
}

// PlanReadiness splits Planted batches into those due for promotion and
// those whose plant is unknown. Batches not yet due appear in neither.
func PlanReadiness(batches []CropBatch, plants PlantLookup, now time.Time) (due []CropBatch, missing []CropBatch) {
	for _, b := range batches {
		if b.Status != StatusPlanted {
			continue
		}
		p, ok := plants.Plant(b.PlantID)
		if !ok {
			missing = append(missing, b)
			continue
		}
		if DueForHarvest(b, p, now) {
			due = append(due, b)
		}
	}
	return due, missing
}

func viewBatch(b CropBatch, plants PlantLookup, now time.Time) BatchView {
	v := BatchView{
		BatchID:  b.ID,
		PlantID:  b.PlantID,
		Quantity: b.Quantity,
		Status:   b.Status,
	}
	p, ok := plants.Plant(b.PlantID)
	if !ok {
		v.Label = fmt.Sprintf("plant %d - %s (plant details not found)", b.PlantID, b.Status)
		return v
	}
	v.PlantName = p.Name
	v.Emoji = p.Emoji
	switch {
	case b.Status == StatusReady:
		v.Label = "ready"
	case b.Status == StatusPlanted:
		v.MinutesRemaining = MinutesRemaining(b, p, now)
		v.Label = fmt.Sprintf("%d mins left", v.MinutesRemaining)
	default:
		v.Label = string(b.Status)
	}
	return v
}
