package vectorindex

// New constructs the default (library-free) Vector Index backend. Callers
// that want durable SQLite-backed storage should construct a SQLiteIndex
// directly via OpenSQLiteIndex.
func New() Index {
	return NewLinearIndex()
}
