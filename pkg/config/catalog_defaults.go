package config

import (
	"time"

	"github.com/fatflowers/gachapon/pkg/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultCatalog is the development fixture used when the config file carries no catalog.
func DefaultCatalog() CatalogConfig {
	prizes := []*types.Prize{
		{ID: "prize_001", Name: "Limited Edition Plushie", Description: "Rare collectible plushie - Series 1", Type: types.PrizeTypePhysical, Rarity: types.RarityLegendary, Status: types.PrizeStatusActive},
		{ID: "prize_002", Name: "Coffee Shop Voucher", Description: "RM 20 voucher for participating cafes", Type: types.PrizeTypeEVoucher, Rarity: types.RarityCommon, Status: types.PrizeStatusActive},
		{ID: "prize_003", Name: "Free Play Token", Description: "One free play on any machine", Type: types.PrizeTypeFreePlay, Rarity: types.RarityRare, Status: types.PrizeStatusActive},
		{ID: "prize_004", Name: "Anime Keychain", Description: "Popular anime character keychain", Type: types.PrizeTypePhysical, Rarity: types.RarityCommon, Status: types.PrizeStatusActive},
		{ID: "prize_005", Name: "Restaurant Voucher", Description: "RM 50 dining voucher", Type: types.PrizeTypeEVoucher, Rarity: types.RarityRare, Status: types.PrizeStatusActive},
		{ID: "prize_006", Name: "Mystery Figure", Description: "Blind box collectible figure", Type: types.PrizeTypePhysical, Rarity: types.RarityLegendary, Status: types.PrizeStatusActive},
		{ID: "prize_007", Name: "Sticker Pack", Description: "Cute character sticker collection", Type: types.PrizeTypePhysical, Rarity: types.RarityCommon, Status: types.PrizeStatusActive},
		{ID: "prize_008", Name: "Game Store Credit", Description: "RM 30 credit for game purchases", Type: types.PrizeTypeEVoucher, Rarity: types.RarityRare, Status: types.PrizeStatusActive},
	}
	machines := []*types.Machine{
		{ID: "machine_001", Name: "Anime Paradise", SerialNumber: "GCH-0001", Location: "Pavilion KL - Ground Floor", Status: types.MachineStatusAvailable, DrawCost: "5.00", PrizeIDs: []string{"prize_001", "prize_003", "prize_006", "prize_004", "prize_007"}},
		{ID: "machine_002", Name: "Foodie Rewards", SerialNumber: "GCH-0002", Location: "KLCC - Suria Mall Level 2", Status: types.MachineStatusAvailable, DrawCost: "3.00", PrizeIDs: []string{"prize_002", "prize_005"}},
		{ID: "machine_003", Name: "Gaming Zone", SerialNumber: "GCH-0003", Location: "Mid Valley Megamall - LG Floor", Status: types.MachineStatusAvailable, DrawCost: "4.00", PrizeIDs: []string{"prize_003", "prize_008", "prize_004"}},
		{ID: "machine_004", Name: "Cute Collection", SerialNumber: "GCH-0004", Location: "1 Utama - New Wing Level 3", Status: types.MachineStatusInUse, DrawCost: "3.50", PrizeIDs: []string{"prize_004", "prize_007"}},
		{ID: "machine_005", Name: "Premium Prizes", SerialNumber: "GCH-0005", Location: "Sunway Pyramid - Blue Concourse", Status: types.MachineStatusMaintenance, DrawCost: "10.00", PrizeIDs: []string{"prize_001", "prize_006"}},
		{ID: "machine_006", Name: "Mystery Box", SerialNumber: "GCH-0006", Location: "The Gardens Mall - Ground Floor", Status: types.MachineStatusAvailable, DrawCost: "6.00", PrizeIDs: []string{"prize_006", "prize_001", "prize_003", "prize_007"}},
	}
	events := []*types.Event{
		{ID: "event_001", Title: "Grand Opening Special", RewardType: types.EventRewardTypeExtraSpin, JoinMode: types.EventJoinModeAuto, Status: types.EventStatusActive,
			StartDate: date(2024, time.November, 1), EndDate: date(2027, time.December, 31), MachineIDs: []string{"machine_001"},
			MinimumDrawCount: 3, MinimumPurchaseSpin: 3, RewardValue: "1"},
		{ID: "event_002", Title: "Weekend Bonus", RewardType: types.EventRewardTypeExtraSpin, JoinMode: types.EventJoinModeAuto, Status: types.EventStatusActive,
			StartDate: date(2024, time.November, 1), EndDate: date(2027, time.December, 31),
			MinimumDrawCount: 5, MinimumPurchaseSpin: 5, RewardValue: "2"},
		{ID: "event_003", Title: "Legendary Hunt", RewardType: types.EventRewardTypeVoucher, JoinMode: types.EventJoinModeManual, Status: types.EventStatusActive,
			StartDate: date(2024, time.November, 15), EndDate: date(2027, time.December, 31), MachineIDs: []string{"machine_001", "machine_006"},
			MinimumDrawCount: 10, MinimumPurchaseSpin: 10, RewardValue: "100.00"},
		{ID: "event_004", Title: "First Timer Bonus", RewardType: types.EventRewardTypeExtraSpin, JoinMode: types.EventJoinModeAuto, Status: types.EventStatusActive,
			StartDate: date(2024, time.November, 1), EndDate: date(2027, time.December, 31),
			MinimumDrawCount: 1, MinimumPurchaseSpin: 1, RewardValue: "1"},
		{ID: "event_005", Title: "Foodie Rewards", RewardType: types.EventRewardTypeVoucher, JoinMode: types.EventJoinModeAuto, Status: types.EventStatusActive,
			StartDate: date(2024, time.November, 1), EndDate: date(2027, time.December, 31), MachineIDs: []string{"machine_002"},
			MinimumDrawCount: 5, MinimumPurchaseSpin: 5, RewardValue: "20.00"},
	}
	return CatalogConfig{Machines: machines, Prizes: prizes, Events: events}
}

// DefaultMockUsers maps the development tokens handed out by the mobile shell.
func DefaultMockUsers() map[string]MockUser {
	return map[string]MockUser{
		"dev_player_token": {UserID: "player_456", Email: "player@example.com", Name: "Test Player", Roles: []string{"player"}, OrganizationID: "org_gachapon"},
		"dev_test_token":   {UserID: "player_789", Email: "test@example.com", Name: "Second Player", Roles: []string{"player"}, OrganizationID: "org_gachapon"},
		"dev_admin_token":  {UserID: "admin_001", Email: "admin@example.com", Name: "Operator", Roles: []string{"admin"}, OrganizationID: "org_gachapon"},
	}
}
