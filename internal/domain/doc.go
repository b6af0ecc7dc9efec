// Package domain defines the core types and contracts of the plant event hub.
//
// Files are concept-oriented (actor.go, group.go, inventory.go, movement.go, ...).
// Besides plain types it holds the pure rules every adapter must agree on: group
// derivation, severity classification and movement arithmetic. No I/O lives here.
package domain
