package schema

// Cardinality is the multiplicity of a relation as seen from its owning table.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// JoinPair pairs an owning-table column with the column it references on the
// target table. Composite joins list more than one pair.
type JoinPair struct {
	OwningColumn string
	TargetColumn string
}

// Relation describes one named relation from an owning Table to a target
// Table. Relations form a directed graph and may cycle (Users -> Posts,
// Posts -> Users); nothing in the compiler assumes acyclicity.
type Relation struct {
	Name        string
	TargetTable string
	Cardinality Cardinality
	Join        []JoinPair
}
