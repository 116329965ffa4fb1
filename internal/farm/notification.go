package farm

import "context"

type NotificationKind string

const (
	KindHarvestEvent        NotificationKind = "harvest_event"
	KindHarvested           NotificationKind = "harvested"
	KindManagerHarvested    NotificationKind = "manager_harvested"
	KindPayroll             NotificationKind = "payroll"
	KindCropsReady          NotificationKind = "crops_ready"
	KindPlanted             NotificationKind = "planted"
	KindInsufficientBalance NotificationKind = "insufficient_balance"
	KindInsufficientSlots   NotificationKind = "insufficient_slots"
	KindUpgradePurchased    NotificationKind = "upgrade_purchased"
	KindUpgradeFailed       NotificationKind = "upgrade_failed"
	KindRegistered          NotificationKind = "registered"
	KindDataError           NotificationKind = "data_error"
	KindAnnouncement        NotificationKind = "announcement"
)

// Notification is an abstract event. Sinks decide how to render it.
type Notification struct {
	AccountID int64            `json:"account_id"`
	ChatID    string           `json:"chat_id"`
	Kind      NotificationKind `json:"kind"`
	Event     HarvestEvent     `json:"event,omitempty"`
	PlantName string           `json:"plant_name,omitempty"`
	Emoji     string           `json:"emoji,omitempty"`
	Quantity  int64            `json:"quantity,omitempty"`
	Amount    int64            `json:"amount,omitempty"`
	Category  UpgradeCategory  `json:"category,omitempty"`
	Level     int              `json:"level,omitempty"`
	Text      string           `json:"text,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, Notification) error { return nil }
