// Package agent implements the cooperative worker loop at the heart of
// InkMesh. An Agent owns one bus queue and one task registry, dispatches
// incoming messages by task kind (explicit field first, keyword inference as
// legacy fallback), isolates handler failures at the dispatch boundary, and
// turns negative feedback into causally linked refinement tasks.
//
// Concrete content roles (outline, narrative, linguistic, visual) are built
// on top of the generic Agent by registering handler tables that drive a
// generation provider through the retry executor and persist artifacts in a
// component store.
package agent
