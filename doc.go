/*
Package pst provides persistent and mergeable segment trees: range
aggregation over a fixed index domain [1, n] where every update yields a
new version and leaves the old one intact, and where two trees over the
same domain can be merged leaf by leaf.

Versions share structure. An update copies only the nodes on the path from
the root to the changed leaf, so each version costs O(log n) nodes on top
of its predecessor, and any number of versions stay queryable at once.
Nodes live in an Arena and are addressed by NodeRef; a Root names one
version.

Uses

- Order statistics over subarrays: one count tree per array prefix
(PrefixIndex), with the k-th smallest value of values[l..r] found by
walking the versions for prefixes r and l-1 side by side (Kth).

- Aggregates over every subtree of a rooted tree: each node's tree is its
own seed merged with its children's trees (SubtreeVersions). With the
destructive Merge the whole pass costs O(total nodes).

- Historical queries: versions keyed by time or sequence number in a
Versions table.

Merging

Merge reuses whichever side has a subtree and only recurses where both
sides are present. It rewrites the first tree's nodes in place, so its
inputs are consumed. MergeCopy allocates instead and leaves both inputs
valid.

Range updates

With Monoid.Lazy, RangeAdd tags the O(log n) nodes covering a range
instead of visiting every leaf. Tags stay on their nodes and are applied on
the way down by queries ("permanent marking"), so no existing node is ever
modified. Merge and Kth do not support tagged trees.

Snapshots

Versions can be saved to immutable, content-addressed storage (Persist),
such as a directory (persist/file) or an S3 bucket (persist/s3), and loaded
back into an arena. Versions that share nodes share stored objects too, and
DiffIter reports the indexes at which two versions differ while skipping
the subtrees they share.

Concurrency

A Tree and its Arena are single-writer. Queries, Iter and DiffIter never
write and may run concurrently with one another, but not with updates,
merges or loads on the same arena.
*/
package pst
