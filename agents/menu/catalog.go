package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	server "github.com/inference-gateway/menu-agents/server"
)

// Item is one dish or product on a store's menu
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	Available   bool    `json:"available"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Validate checks the fields every stored item needs
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.Contains(i.ID, "/") {
		return fmt.Errorf("id must not contain '/'")
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if i.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

func (i Item) matches(query string) bool {
	query = strings.ToLower(query)
	return strings.Contains(strings.ToLower(i.Name), query) ||
		strings.Contains(strings.ToLower(i.Description), query) ||
		strings.Contains(strings.ToLower(i.Category), query)
}

// catalog stores menu items under "menu/{agentId}/items/{itemId}"
type catalog struct {
	repo server.Repository
}

func itemPrefix(agentID string) string {
	return AgentType + "/" + agentID + "/items/"
}

func (c *catalog) get(ctx context.Context, agentID, itemID string) (*Item, error) {
	data, err := c.repo.Get(ctx, itemPrefix(agentID)+itemID)
	if err != nil {
		if errors.Is(err, server.ErrNotFound) {
			return nil, errItemNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to load menu item: %w", err)
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode menu item %s: %w", itemID, err)
	}
	return &item, nil
}

func (c *catalog) put(ctx context.Context, agentID string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode menu item: %w", err)
	}
	return c.repo.Set(ctx, itemPrefix(agentID)+item.ID, data)
}

// list returns items in key order
func (c *catalog) list(ctx context.Context, agentID string) ([]Item, error) {
	entries, err := c.repo.List(ctx, itemPrefix(agentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		var item Item
		if err := json.Unmarshal(entry.Value, &item); err != nil {
			return nil, fmt.Errorf("failed to decode menu item %s: %w", entry.Key, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *catalog) search(ctx context.Context, agentID, query string) ([]Item, error) {
	items, err := c.list(ctx, agentID)
	if err != nil {
		return nil, err
	}

	matches := make([]Item, 0, len(items))
	for _, item := range items {
		if item.matches(query) {
			matches = append(matches, item)
		}
	}
	return matches, nil
}
