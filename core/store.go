package core

// ComponentStore persists generated book components (outline, chapters,
// cover image, ...) addressed by logical key. Implementations should be
// thread-safe and scope components by book identifier. The engine never
// interprets the stored bytes; on-disk layout, formats and naming belong to
// the implementation.
type ComponentStore interface {
	Save(bookID, component string, data []byte) error
	Load(bookID, component string) ([]byte, error)
	List(bookID string) ([]string, error)
	Delete(bookID, component string) error
}
