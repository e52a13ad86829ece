package docpath

// AliasTable maps alternate leaf spellings to one canonical spelling. Some
// producers emit "totalIVA" where others emit "totalIva"; reading through the
// table makes both land in the same column.
type AliasTable struct {
	canonical map[string]string
	synonyms  map[string][]string
}

// DefaultAliases is the table used by discovery and projection.
var DefaultAliases = NewAliasTable(map[string]string{
	"totalIVA": "totalIva",
})

// NewAliasTable builds a table from synonym -> canonical leaf pairs.
func NewAliasTable(pairs map[string]string) *AliasTable {
	t := &AliasTable{
		canonical: make(map[string]string, len(pairs)),
		synonyms:  make(map[string][]string),
	}
	for alias, canon := range pairs {
		t.canonical[alias] = canon
		t.synonyms[canon] = append(t.synonyms[canon], alias)
	}
	return t
}

// Canonical rewrites the leaf of path to its canonical spelling.
func (t *AliasTable) Canonical(path string) string {
	if t == nil {
		return path
	}
	leaf := Leaf(path)
	canon, ok := t.canonical[leaf]
	if !ok {
		return path
	}
	return path[:len(path)-len(leaf)] + canon
}

// Get reads path from doc, falling back to every other spelling of its leaf.
// The spelling as written wins when several are present.
func (t *AliasTable) Get(doc any, path string) any {
	if v := Get(doc, path); v != nil {
		return v
	}
	if t == nil {
		return nil
	}

	canon := t.Canonical(path)
	if canon != path {
		if v := Get(doc, canon); v != nil {
			return v
		}
	}

	base := canon[:len(canon)-len(Leaf(canon))]
	for _, alias := range t.synonyms[Leaf(canon)] {
		candidate := base + alias
		if candidate == path {
			continue
		}
		if v := Get(doc, candidate); v != nil {
			return v
		}
	}
	return nil
}
