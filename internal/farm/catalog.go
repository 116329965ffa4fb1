package farm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CatalogSource produces the plant and upgrade tables.
type CatalogSource interface {
	ListPlants(ctx context.Context) ([]PlantDefinition, error)
	ListUpgrades(ctx context.Context) ([]UpgradeDefinition, error)
}

// Catalog is a read-only lookup of plant and upgrade definitions. Reload
// swaps both tables at once; readers never observe a half-loaded catalog.
type Catalog struct {
	mu       sync.RWMutex
	plants   map[int64]PlantDefinition
	upgrades map[int64]UpgradeDefinition
}

func NewCatalog(plants []PlantDefinition, upgrades []UpgradeDefinition) *Catalog {
	c := &Catalog{}
	c.replace(plants, upgrades)
	return c
}

func LoadCatalog(ctx context.Context, src CatalogSource) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Reload(ctx, src); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Reload(ctx context.Context, src CatalogSource) error {
	upgrades, err := src.ListUpgrades(ctx)
	if err != nil {
		return fmt.Errorf("load upgrades: %w", err)
	}
	plants, err := src.ListPlants(ctx)
	if err != nil {
		return fmt.Errorf("load plants: %w", err)
	}
	c.replace(plants, upgrades)
	return nil
}

func (c *Catalog) replace(plants []PlantDefinition, upgrades []UpgradeDefinition) {
	pm := make(map[int64]PlantDefinition, len(plants))
	for _, p := range plants {
		pm[p.ID] = p
	}
	um := make(map[int64]UpgradeDefinition, len(upgrades))
	for _, u := range upgrades {
		um[u.ID] = u
	}
	c.mu.Lock()
	c.plants = pm
	c.upgrades = um
	c.mu.Unlock()
}

func (c *Catalog) Plant(id int64) (PlantDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plants[id]
	return p, ok
}

func (c *Catalog) Upgrade(id int64) (UpgradeDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.upgrades[id]
	return u, ok
}

// Plants returns every plant ordered by category, then id.
func (c *Catalog) Plants() []PlantDefinition {
	c.mu.RLock()
	out := make([]PlantDefinition, 0, len(c.plants))
	for _, p := range c.plants {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Catalog) PlantsInCategory(category string) []PlantDefinition {
	out := []PlantDefinition{}
	for _, p := range c.Plants() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) PlantsUnlockedBy(upgradeID int64) []PlantDefinition {
	out := []PlantDefinition{}
	for _, p := range c.Plants() {
		if p.UnlockUpgradeID == upgradeID {
			out = append(out, p)
		}
	}
	return out
}

// Upgrades returns every upgrade ordered by category, level, then id.
func (c *Catalog) Upgrades() []UpgradeDefinition {
	c.mu.RLock()
	out := make([]UpgradeDefinition, 0, len(c.upgrades))
	for _, u := range c.upgrades {
		out = append(out, u)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Catalog) UpgradesInCategory(category UpgradeCategory) []UpgradeDefinition {
	out := []UpgradeDefinition{}
	for _, u := range c.Upgrades() {
		if u.Category == category {
			out = append(out, u)
		}
	}
	return out
}

// UpgradeAt finds the upgrade with the given level in category.
func (c *Catalog) UpgradeAt(category UpgradeCategory, level int) (UpgradeDefinition, bool) {
	for _, u := range c.UpgradesInCategory(category) {
		if u.Level == level {
			return u, true
		}
	}
	return UpgradeDefinition{}, false
}

// resolveOwned maps owned upgrade ids to definitions, dropping ids the
// catalog no longer knows.
func (c *Catalog) resolveOwned(ids []int64) []UpgradeDefinition {
	out := make([]UpgradeDefinition, 0, len(ids))
	for _, id := range ids {
		if u, ok := c.Upgrade(id); ok {
			out = append(out, u)
		}
	}
	return out
}

// DefaultUpgrades and DefaultPlants seed an empty store.
func DefaultUpgrades() []UpgradeDefinition {
	return []UpgradeDefinition{
		{ID: 1, Level: 1, Category: CategoryPlot, Description: "1,000 plot slots", Price: 2_000},
		{ID: 2, Level: 2, Category: CategoryPlot, Description: "10,000 plot slots", Price: 50_000},
		{ID: 3, Level: 3, Category: CategoryPlot, Description: "100,000 plot slots", Price: 1_000_000},
		{ID: 4, Level: 4, Category: CategoryPlot, Description: "1,000,000 plot slots", Price: 25_000_000},
		{ID: 5, Level: 5, Category: CategoryPlot, Description: "10,000,000 plot slots", Price: 500_000_000},
		{ID: 6, Level: 1, Category: CategoryManager, Description: "Hire a farm manager", Price: 10_000},
		{ID: 7, Level: 1, Category: CategoryCrops, Description: "Unlock strawberries", Price: 5_000},
		{ID: 8, Level: 1, Category: CategoryCrops, Description: "Unlock grapes", Price: 40_000},
		{ID: 9, Level: 1, Category: CategoryCrops, Description: "Unlock truffles", Price: 750_000},
	}
}

func DefaultPlants() []PlantDefinition {
	return []PlantDefinition{
		{ID: 1, Name: "Wheat", Category: "grains", Emoji: "🌾", SeedCost: 1, SellPrice: 1, HarvestDuration: 2 * time.Minute, MinRatio: 1.2, MaxRatio: 2.0},
		{ID: 2, Name: "Corn", Category: "grains", Emoji: "🌽", SeedCost: 3, SellPrice: 2, HarvestDuration: 5 * time.Minute, MinRatio: 1.5, MaxRatio: 2.5},
		{ID: 3, Name: "Carrot", Category: "vegetables", Emoji: "🥕", SeedCost: 2, SellPrice: 2, HarvestDuration: 3 * time.Minute, MinRatio: 1.1, MaxRatio: 1.8},
		{ID: 4, Name: "Potato", Category: "vegetables", Emoji: "🥔", SeedCost: 5, SellPrice: 4, HarvestDuration: 10 * time.Minute, MinRatio: 1.3, MaxRatio: 2.2},
		{ID: 5, Name: "Tomato", Category: "vegetables", Emoji: "🍅", SeedCost: 8, SellPrice: 6, HarvestDuration: 15 * time.Minute, MinRatio: 1.2, MaxRatio: 2.0},
		{ID: 6, Name: "Strawberry", Category: "fruits", Emoji: "🍓", SeedCost: 20, SellPrice: 15, HarvestDuration: 30 * time.Minute, MinRatio: 1.2, MaxRatio: 2.4, UnlockUpgradeID: 7},
		{ID: 7, Name: "Grapes", Category: "fruits", Emoji: "🍇", SeedCost: 60, SellPrice: 45, HarvestDuration: 60 * time.Minute, MinRatio: 1.3, MaxRatio: 2.5, UnlockUpgradeID: 8},
		{ID: 8, Name: "Truffle", Category: "specialty", Emoji: "🍄", SeedCost: 400, SellPrice: 300, HarvestDuration: 3 * time.Hour, MinRatio: 1.1, MaxRatio: 3.0, UnlockUpgradeID: 9},
	}
}
