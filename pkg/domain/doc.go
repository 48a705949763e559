/*
Package domain contains the core domain models for the Canopy state container.

It defines the fundamental entities of the store: the state Tree, transition
Actions, handler and side-effect declarations, and the read-only Snapshot
handed to observers. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Tree: the string-keyed state tree; branches are nested mappings, leaves
    hold application values.
  - Action: a transition request (type tag plus optional payload).
  - Declaration: binds a type tag and a dotted-path selector to a pure
    transition handler.
  - Snapshot: a read-only view over a published tree, safe to hand to
    side effects and subscribers.
*/
package domain
