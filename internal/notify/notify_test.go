package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
)

func TestRender(t *testing.T) {
	tests := []struct {
		n    farm.Notification
		want string
	}{
		{
			n:    farm.Notification{Kind: farm.KindHarvestEvent, Event: farm.EventGoodSeason},
			want: "🌾 Good season! Your crops have been grown at a good rate.",
		},
		{
			n:    farm.Notification{Kind: farm.KindHarvested, PlantName: "Wheat", Quantity: 1500, Amount: 1500},
			want: "You have successfully harvested 1,500 Wheat(s) for $1,500! Happy harvesting! 🌾",
		},
		{
			n:    farm.Notification{Kind: farm.KindManagerHarvested, PlantName: "Corn", Quantity: 75, Amount: 150},
			want: "Manager has directed to harvest 75 Corn(s) and sell them for $150!",
		},
		{
			n:    farm.Notification{Kind: farm.KindPayroll, Amount: 12},
			want: "Manager payroll of $12 has been deducted from your account.",
		},
		{
			n:    farm.Notification{Kind: farm.KindUpgradePurchased, Category: farm.CategoryPlot, Level: 2, Text: "10,000 plot slots"},
			want: "Congratulations! You have successfully upgraded your plot to level 2 - 10,000 plot slots! 🎉",
		},
		{
			n:    farm.Notification{Kind: farm.KindAnnouncement, Text: "Rain tomorrow"},
			want: "📢 Rain tomorrow",
		},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Render(tc.n), "kind %s", tc.n.Kind)
	}
}

func TestCommas(t *testing.T) {
	assert.Equal(t, "0", commas(0))
	assert.Equal(t, "100", commas(100))
	assert.Equal(t, "1,000", commas(1000))
	assert.Equal(t, "10,000,000", commas(10_000_000))
	assert.Equal(t, "-12,345", commas(-12345))
}

type fakeDiscord struct {
	opened  int
	sent    map[string][]string
	sendErr error
}

func (f *fakeDiscord) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.opened++
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeDiscord) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestDiscordSinkCachesChannels(t *testing.T) {
	api := &fakeDiscord{}
	sink := newDiscordSink(api, nil)
	ctx := context.Background()

	require.NoError(t, sink.Notify(ctx, farm.Notification{AccountID: 1, ChatID: "42", Kind: farm.KindCropsReady}))
	require.NoError(t, sink.Notify(ctx, farm.Notification{AccountID: 1, ChatID: "42", Kind: farm.KindPayroll, Amount: 3}))

	assert.Equal(t, 1, api.opened)
	assert.Equal(t, []string{
		"Your crops are ready for harvest! 🌾",
		"Manager payroll of $3 has been deducted from your account.",
	}, api.sent["dm-42"])

	assert.Error(t, sink.Notify(ctx, farm.Notification{AccountID: 2, Kind: farm.KindCropsReady}))
}

func TestDiscordSinkReportsSendFailure(t *testing.T) {
	api := &fakeDiscord{sendErr: errors.New("403 forbidden")}
	sink := newDiscordSink(api, nil)
	err := sink.Notify(context.Background(), farm.Notification{AccountID: 5, ChatID: "9", Kind: farm.KindCropsReady})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account 5")
}

func TestFanoutJoinsErrors(t *testing.T) {
	var delivered int
	ok := farm.NotifierFunc(func(context.Context, farm.Notification) error {
		delivered++
		return nil
	})
	failing := farm.NotifierFunc(func(context.Context, farm.Notification) error {
		return errors.New("down")
	})
	err := Fanout{ok, failing, NewLogSink(nil), ok}.Notify(context.Background(), farm.Notification{Kind: farm.KindCropsReady})
	require.Error(t, err)
	assert.Equal(t, 2, delivered)
}
