// File: state/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package state provides a bounded registry of named states and the finite
// state machines built on top of it. Machines are permissive by default:
// a transition without an explicit rule is allowed. Rules may attach a
// validator and a callback; generic change callbacks observe every
// successful transition in registration order.
package state
