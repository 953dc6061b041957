// Package hierarchy
// Author: momentics <momentics@gmail.com>
//
// Tree of worker threads placed on the clock lattice. A Pool owns every
// thread in an arena indexed by id; parent, child and neighbor links are
// stored as ids. Neighbors exchange data through kissing boundaries that the
// pool creates lazily per unordered pair, and every thread region is indexed
// in the pool rainbow table.
package hierarchy
