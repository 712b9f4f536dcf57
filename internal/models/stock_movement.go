package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement reasons.
const (
	StockBasketAdd    = "basket_add"
	StockBasketUpdate = "basket_update"
	StockBasketRemove = "basket_remove"
	StockBasketDelete = "basket_delete"
	StockOrderCommit  = "order_commit"
	StockAdminSet     = "admin_set"
)

// StockMovement is one audited change to a variant's stock.
type StockMovement struct {
	ID        int64      `json:"id"`
	VariantID uuid.UUID  `json:"variant_id"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	BasketID  *uuid.UUID `json:"basket_id"`
	OrderID   *uuid.UUID `json:"order_id"`
	CreatedAt time.Time  `json:"created_at"`
}
