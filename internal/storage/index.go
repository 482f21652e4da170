package storage

// Document is a stored JSON body plus the insertion sequence number used as
// the stable tie-breaker when ranking search hits.
type Document struct {
	Body map[string]any
	seq  uint64
}

// Index is a named collection of documents with advisory mappings and
// settings. It is not safe for concurrent use on its own; the Storage lock
// guards all access.
type Index struct {
	Name     string
	Settings map[string]any
	Mappings map[string]any

	docs    map[string]*Document
	nextSeq uint64
}

func newIndex(name string, settings, mappings map[string]any) *Index {
	return &Index{
		Name:     name,
		Settings: settings,
		Mappings: mappings,
		docs:     make(map[string]*Document),
	}
}

// put stores or replaces a document body and reports whether it was created.
func (idx *Index) put(id string, body map[string]any) bool {
	existing, present := idx.docs[id]
	if present {
		existing.Body = body
		return false
	}
	idx.docs[id] = &Document{Body: body, seq: idx.nextSeq}
	idx.nextSeq++
	return true
}

func (idx *Index) get(id string) (*Document, bool) {
	doc, ok := idx.docs[id]
	return doc, ok
}

func (idx *Index) delete(id string) bool {
	if _, ok := idx.docs[id]; !ok {
		return false
	}
	delete(idx.docs, id)
	return true
}

func (idx *Index) docCount() int { return len(idx.docs) }

// copyObject deep-copies the object structure of a JSON value. Scalars and
// arrays are shared; merge logic never mutates them in place.
func copyObject(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if obj, ok := v.(map[string]any); ok {
			dst[k] = copyObject(obj)
			continue
		}
		dst[k] = v
	}
	return dst
}

// deepMerge merges src into dst: object values merge recursively, any other
// type pair overwrites. dst is modified in place and returned; a nil dst
// starts from an empty object. src values are referenced, not copied.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		srcObj, srcIsObj := value.(map[string]any)
		dstObj, dstIsObj := dst[key].(map[string]any)
		if srcIsObj && dstIsObj {
			dst[key] = deepMerge(dstObj, srcObj)
			continue
		}
		dst[key] = value
	}
	return dst
}
