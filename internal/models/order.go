// internal/models/order.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemType is a kind of item players submit toward an order.
type ItemType string

const (
	ItemApple  ItemType = "apple"
	ItemBanana ItemType = "banana"
	ItemPear   ItemType = "pear"
	ItemGrape  ItemType = "grape"
)

// ItemTypes lists every item type. Every order carries a count for each of them.
var ItemTypes = []ItemType{ItemApple, ItemBanana, ItemPear, ItemGrape}

// ParseItemType resolves a client supplied name, ignoring case and surrounding space.
func ParseItemType(name string) (ItemType, bool) {
	n := ItemType(strings.ToLower(strings.TrimSpace(name)))
	for _, it := range ItemTypes {
		if it == n {
			return it, true
		}
	}
	return "", false
}

// OrderStatus is the outcome of an order.
type OrderStatus string

const (
	OrderActive       OrderStatus = "Active"
	OrderSuccessExact OrderStatus = "SuccessExact"
	OrderFailOver     OrderStatus = "FailOver"
	OrderFailTimeout  OrderStatus = "FailTimeout"
)

// Order is one timed fulfillment round.
type Order struct {
	ID        uuid.UUID        `json:"orderId"`
	Required  map[ItemType]int `json:"required"`
	Submitted map[ItemType]int `json:"submitted"`
	StartsAt  time.Time        `json:"startsAt"`
	EndsAt    time.Time        `json:"endsAt"`
	Status    OrderStatus      `json:"status"`
}

// NewOrder builds an active order from a required map. Missing item types are filled
// with zero and the submitted map starts at zero for every type.
func NewOrder(required map[ItemType]int, startsAt time.Time, duration time.Duration) (*Order, error) {
	o := &Order{
		ID:        uuid.New(),
		Required:  make(map[ItemType]int, len(ItemTypes)),
		Submitted: make(map[ItemType]int, len(ItemTypes)),
		StartsAt:  startsAt,
		EndsAt:    startsAt.Add(duration),
		Status:    OrderActive,
	}
	total := 0
	for _, it := range ItemTypes {
		n := required[it]
		if n < 0 {
			return nil, fmt.Errorf("negative requirement %d for %s", n, it)
		}
		o.Required[it] = n
		o.Submitted[it] = 0
		total += n
	}
	for it := range required {
		if _, ok := o.Required[it]; !ok {
			return nil, fmt.Errorf("unknown item type %q in requirement", it)
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("order requires no items")
	}
	return o, nil
}

// Overflowed reports whether the submitted count of it went past its requirement.
func (o *Order) Overflowed(it ItemType) bool {
	return o.Submitted[it] > o.Required[it]
}

// Complete reports whether every submitted count equals its requirement.
func (o *Order) Complete() bool {
	for it, want := range o.Required {
		if o.Submitted[it] != want {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand to serialisers outside the room lock.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Required = copyCounts(o.Required)
	cp.Submitted = copyCounts(o.Submitted)
	return &cp
}

func copyCounts(m map[ItemType]int) map[ItemType]int {
	out := make(map[ItemType]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HitResult is the outcome of a single reported hit.
type HitResult int

const (
	HitCounted HitResult = iota
	HitOrderSuccessImmediate
	HitOrderFailedImmediate
	HitAlreadyProcessed
	HitInvalidState
	HitNoActiveOrder
)

func (h HitResult) String() string {
	switch h {
	case HitCounted:
		return "Counted"
	case HitOrderSuccessImmediate:
		return "OrderSuccessImmediate"
	case HitOrderFailedImmediate:
		return "OrderFailedImmediate"
	case HitAlreadyProcessed:
		return "AlreadyProcessed"
	case HitInvalidState:
		return "InvalidState"
	case HitNoActiveOrder:
		return "NoActiveOrder"
	}
	return fmt.Sprintf("HitResult(%d)", int(h))
}
