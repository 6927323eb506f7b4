// Package order provides domain entities and business logic for shop-side
// order management in the dispatch engine. It implements the Order aggregate
// root with its ShopOrder children and their lifecycle state machine.
//
// The package includes:
//   - Order: The aggregate root holding payment details and one or more shop orders
//   - ShopOrder: A per-shop slice of the order with its own status lifecycle
//   - Status: A state machine that enforces valid shop-order status transitions
//
// Key business rules:
//   - Shop orders must have valid identifiers and a creation timestamp
//   - Status follows pending -> preparing -> out_for_delivery -> delivered
//   - Cancellation is reachable only from pending or preparing, and only
//     before the order has been picked up
//   - Status records are owned by the backing store; the engine reflects and
//     reacts to them but never overrides them locally
//
// The package follows Domain-Driven Design principles, providing rich domain
// behavior, encapsulation, and validation to ensure business rules are enforced.
package order
