package service

import (
	"context"
	"fmt"

	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/storage"
)

// Catalog is the fixed list of accessories for sale.
var Catalog = []internal.Item{
	{ID: "red-collar", Name: "Red Collar", Price: 10},
	{ID: "yarn", Name: "Yarn", Price: 10},
	{ID: "frog", Name: "Frog", Price: 10},
	{ID: "green-bandana", Name: "Green Bandana", Price: 20},
	{ID: "scarf", Name: "Scarf", Price: 25},
	{ID: "yellow-bandana", Name: "Yellow Bandana", Price: 20},
	{ID: "cool-cat", Name: "Cool Cat", Price: 30},
	{ID: "balloon", Name: "Balloon", Price: 20},
}

type PurchaseRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

func ValidatePurchaseRequest(req *PurchaseRequest) error {
	return validate.Struct(req)
}

type CatalogEntry struct {
	internal.Item
	Owned bool `json:"owned"`
}

type Shop struct {
	coins storage.CoinRepository
}

func NewShop(coins storage.CoinRepository) *Shop {
	return &Shop{coins: coins}
}

func FindItem(id string) (internal.Item, bool) {
	for _, it := range Catalog {
		if it.ID == id {
			return it, true
		}
	}
	return internal.Item{}, false
}

func (s *Shop) Catalog(ctx context.Context, userID string) ([]CatalogEntry, error) {
	owned, err := s.coins.ListOwnedItems(ctx, userID)
	if err != nil {
		return nil, internal.StoreFailure("list owned items", err)
	}
	have := make(map[string]bool, len(owned))
	for _, o := range owned {
		have[o.ItemID] = true
	}
	out := make([]CatalogEntry, 0, len(Catalog))
	for _, it := range Catalog {
		out = append(out, CatalogEntry{Item: it, Owned: have[it.ID]})
	}
	return out, nil
}

func (s *Shop) Balance(ctx context.Context, userID string) (*internal.CoinBalance, error) {
	b, err := s.coins.GetBalance(ctx, userID)
	if err != nil {
		return nil, internal.StoreFailure("get balance", err)
	}
	return b, nil
}

func (s *Shop) Purchase(ctx context.Context, userID, itemID string) (*internal.CoinBalance, error) {
	item, ok := FindItem(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal.ErrItemNotFound, itemID)
	}
	b, err := s.coins.Purchase(ctx, userID, item)
	if err != nil {
		return nil, internal.StoreFailure("purchase", err)
	}
	return b, nil
}
